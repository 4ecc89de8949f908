// Package paths maps the mi home directory and a project root onto the
// on-disk layout used by the stores.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitool/mi/internal/storage"
	"github.com/mitool/mi/internal/thoughtdb"
)

// DefaultHomeDir returns MI_HOME if set, otherwise ~/.mi.
func DefaultHomeDir() string {
	if h := os.Getenv("MI_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mi"
	}
	return filepath.Join(home, ".mi")
}

// ProjectIDForRoot derives a project id from the absolute root path.
// Stable only as long as the path is stable.
func ProjectIDForRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:12]
}

// Paths resolves every store location for one (home, project) pair.
type Paths struct {
	HomeDir     string
	ProjectRoot string
	ProjectID   string
}

// New resolves homeDir and projectRoot to absolute paths and computes
// the project id. Empty homeDir falls back to DefaultHomeDir.
func New(homeDir, projectRoot string) (*Paths, error) {
	if homeDir == "" {
		homeDir = DefaultHomeDir()
	}
	absHome, err := filepath.Abs(homeDir)
	if err != nil {
		return nil, fmt.Errorf("resolving home dir: %w", err)
	}
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	return &Paths{
		HomeDir:     absHome,
		ProjectRoot: absRoot,
		ProjectID:   ProjectIDForRoot(absRoot),
	}, nil
}

// ProjectsDir holds one subdirectory per known project.
func (p *Paths) ProjectsDir() string {
	return filepath.Join(p.HomeDir, "projects")
}

// ProjectDir is this project's slice of the home directory.
func (p *Paths) ProjectDir() string {
	return filepath.Join(p.ProjectsDir(), p.ProjectID)
}

// ThoughtDBDir returns the directory holding a scope's logs and snapshot.
// Project stores live under projects/<id>/thoughtdb, the global store
// under <home>/thoughtdb/global.
func (p *Paths) ThoughtDBDir(scope thoughtdb.Scope) string {
	if thoughtdb.NormalizeScope(scope) == thoughtdb.ScopeGlobal {
		return filepath.Join(p.HomeDir, "thoughtdb", "global")
	}
	return filepath.Join(p.ProjectDir(), "thoughtdb")
}

func (p *Paths) ClaimsPath(scope thoughtdb.Scope) string {
	return filepath.Join(p.ThoughtDBDir(scope), "claims.jsonl")
}

func (p *Paths) EdgesPath(scope thoughtdb.Scope) string {
	return filepath.Join(p.ThoughtDBDir(scope), "edges.jsonl")
}

func (p *Paths) NodesPath(scope thoughtdb.Scope) string {
	return filepath.Join(p.ThoughtDBDir(scope), "nodes.jsonl")
}

func (p *Paths) SnapshotPath(scope thoughtdb.Scope) string {
	return filepath.Join(p.ThoughtDBDir(scope), "view.snapshot.json")
}

// ScopeProjectID is "" for the global scope: global records carry no
// project identity.
func (p *Paths) ScopeProjectID(scope thoughtdb.Scope) string {
	if thoughtdb.NormalizeScope(scope) == thoughtdb.ScopeGlobal {
		return ""
	}
	return p.ProjectID
}

// Env builds the store environment over this layout.
func (p *Paths) Env() thoughtdb.Env {
	return thoughtdb.Env{
		ClaimsPath:   p.ClaimsPath,
		EdgesPath:    p.EdgesPath,
		NodesPath:    p.NodesPath,
		SnapshotPath: p.SnapshotPath,
		ProjectID:    p.ScopeProjectID,
		EnsureScopeDirs: func(scope thoughtdb.Scope) error {
			return storage.EnsureDir(p.ThoughtDBDir(scope))
		},
		ScopeMetas: func(scope thoughtdb.Scope) thoughtdb.LogMetas {
			return thoughtdb.LogMetas{
				Claims: storage.Meta(p.ClaimsPath(scope)),
				Edges:  storage.Meta(p.EdgesPath(scope)),
				Nodes:  storage.Meta(p.NodesPath(scope)),
			}
		},
	}
}
