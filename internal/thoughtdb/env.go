package thoughtdb

import (
	"github.com/mitool/mi/internal/storage"
)

// LogMetas is the (size, mtime) identity of one scope's three log files.
// Two LogMetas compare equal iff no log changed, which is what the view
// cache and snapshot staleness checks rely on.
type LogMetas struct {
	Claims storage.FileMeta
	Edges  storage.FileMeta
	Nodes  storage.FileMeta
}

// Env holds the scope/identity collaborators injected into the stores:
// where each scope's logs and snapshot live, what project id a scope maps
// to, and how to stat the logs. The paths package provides the production
// implementation; tests inject their own.
type Env struct {
	ClaimsPath   func(Scope) string
	EdgesPath    func(Scope) string
	NodesPath    func(Scope) string
	SnapshotPath func(Scope) string

	ProjectID       func(Scope) string
	EnsureScopeDirs func(Scope) error
	ScopeMetas      func(Scope) LogMetas
}
