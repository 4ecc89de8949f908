package paths

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/mitool/mi/internal/thoughtdb"
)

func TestProjectIDForRoot(t *testing.T) {
	root := t.TempDir()

	id := ProjectIDForRoot(root)
	if len(id) != 12 {
		t.Fatalf("ProjectIDForRoot() length = %d, want 12", len(id))
	}
	if !regexp.MustCompile(`^[0-9a-f]{12}$`).MatchString(id) {
		t.Errorf("ProjectIDForRoot() = %q, want lowercase hex", id)
	}
	if again := ProjectIDForRoot(root); again != id {
		t.Errorf("ProjectIDForRoot() unstable: %q then %q", id, again)
	}
	if other := ProjectIDForRoot(filepath.Join(root, "subdir")); other == id {
		t.Error("distinct roots map to the same project id")
	}
}

func TestDefaultHomeDirEnvOverride(t *testing.T) {
	t.Setenv("MI_HOME", "/custom/mi-home")
	if got := DefaultHomeDir(); got != "/custom/mi-home" {
		t.Errorf("DefaultHomeDir() = %q", got)
	}
}

func TestLayout(t *testing.T) {
	home := t.TempDir()
	root := t.TempDir()
	p, err := New(home, root)
	if err != nil {
		t.Fatal(err)
	}

	projDir := filepath.Join(home, "projects", p.ProjectID)
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"project dir", p.ProjectDir(), projDir},
		{"project claims", p.ClaimsPath(thoughtdb.ScopeProject), filepath.Join(projDir, "thoughtdb", "claims.jsonl")},
		{"project edges", p.EdgesPath(thoughtdb.ScopeProject), filepath.Join(projDir, "thoughtdb", "edges.jsonl")},
		{"project nodes", p.NodesPath(thoughtdb.ScopeProject), filepath.Join(projDir, "thoughtdb", "nodes.jsonl")},
		{"project snapshot", p.SnapshotPath(thoughtdb.ScopeProject), filepath.Join(projDir, "thoughtdb", "view.snapshot.json")},
		{"global claims", p.ClaimsPath(thoughtdb.ScopeGlobal), filepath.Join(home, "thoughtdb", "global", "claims.jsonl")},
		{"global snapshot", p.SnapshotPath(thoughtdb.ScopeGlobal), filepath.Join(home, "thoughtdb", "global", "view.snapshot.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestScopeProjectID(t *testing.T) {
	p, err := New(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got := p.ScopeProjectID(thoughtdb.ScopeProject); got != p.ProjectID {
		t.Errorf("project scope id = %q, want %q", got, p.ProjectID)
	}
	if got := p.ScopeProjectID(thoughtdb.ScopeGlobal); got != "" {
		t.Errorf("global scope id = %q, want empty", got)
	}
}

func TestEnvMetasZeroForMissingLogs(t *testing.T) {
	p, err := New(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	env := p.Env()
	if metas := env.ScopeMetas(thoughtdb.ScopeProject); metas != (thoughtdb.LogMetas{}) {
		t.Errorf("metas for missing logs = %+v, want zero", metas)
	}
	if err := env.EnsureScopeDirs(thoughtdb.ScopeProject); err != nil {
		t.Fatal(err)
	}
	if got := env.ClaimsPath(thoughtdb.ScopeProject); got != p.ClaimsPath(thoughtdb.ScopeProject) {
		t.Errorf("env claims path = %q", got)
	}
}
