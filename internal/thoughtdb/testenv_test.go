package thoughtdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mitool/mi/internal/storage"
)

const testProjectID = "p123456789ab"

// newTestEnv lays out both scopes under a temp dir.
func newTestEnv(t *testing.T) Env {
	t.Helper()
	dir := t.TempDir()
	scopeDir := func(scope Scope) string {
		return filepath.Join(dir, string(NormalizeScope(scope)))
	}
	env := Env{
		ClaimsPath:   func(s Scope) string { return filepath.Join(scopeDir(s), "claims.jsonl") },
		EdgesPath:    func(s Scope) string { return filepath.Join(scopeDir(s), "edges.jsonl") },
		NodesPath:    func(s Scope) string { return filepath.Join(scopeDir(s), "nodes.jsonl") },
		SnapshotPath: func(s Scope) string { return filepath.Join(scopeDir(s), "view.snapshot.json") },
		ProjectID: func(s Scope) string {
			if NormalizeScope(s) == ScopeGlobal {
				return ""
			}
			return testProjectID
		},
		EnsureScopeDirs: func(s Scope) error { return storage.EnsureDir(scopeDir(s)) },
	}
	env.ScopeMetas = func(s Scope) LogMetas {
		return LogMetas{
			Claims: storage.Meta(env.ClaimsPath(s)),
			Edges:  storage.Meta(env.EdgesPath(s)),
			Nodes:  storage.Meta(env.NodesPath(s)),
		}
	}
	return env
}

// fakeClock hands out strictly increasing RFC3339 seconds.
type fakeClock struct {
	n int
}

func (c *fakeClock) now() string {
	c.n++
	return timestampAt(c.n)
}

func timestampAt(sec int) string {
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(sec) * time.Second).Format("2006-01-02T15:04:05Z")
}

// newTestStores wires an append store and view store over one env with a
// deterministic clock, the same composition production uses.
func newTestStores(t *testing.T) (Env, *AppendStore, *ViewStore) {
	t.Helper()
	env := newTestEnv(t)
	view := NewViewStore(env)
	appendStore := NewAppendStore(env, view.UpdateCacheAfterAppend)
	clock := &fakeClock{}
	appendStore.now = clock.now
	return env, appendStore, view
}
