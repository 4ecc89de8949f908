package thoughtdb

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mitool/mi/internal/debug"
)

// WatchInvalidate drops cached views when another process writes the
// underlying log files, so long-lived callers pick up external appends
// without waiting for their next meta mismatch. It blocks until ctx is
// done. The per-LoadView meta check remains the correctness backstop;
// this watcher only tightens the staleness window.
func (s *ViewStore) WatchInvalidate(ctx context.Context, scopes ...Scope) error {
	if len(scopes) == 0 {
		scopes = []Scope{ScopeProject, ScopeGlobal}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the scope directories rather than the files: appends via
	// rename (compaction) would detach a file-level watch.
	dirToScope := map[string]Scope{}
	for _, sc := range scopes {
		sc = NormalizeScope(sc)
		if err := s.env.EnsureScopeDirs(sc); err != nil {
			return err
		}
		dir := filepath.Dir(s.env.ClaimsPath(sc))
		if _, ok := dirToScope[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
		dirToScope[dir] = sc
	}

	logNames := func(sc Scope) map[string]struct{} {
		return map[string]struct{}{
			filepath.Base(s.env.ClaimsPath(sc)): {},
			filepath.Base(s.env.EdgesPath(sc)):  {},
			filepath.Base(s.env.NodesPath(sc)):  {},
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			sc, watched := dirToScope[filepath.Dir(ev.Name)]
			if !watched {
				continue
			}
			if _, isLog := logNames(sc)[filepath.Base(ev.Name)]; !isLog {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debug.Logf("log change detected (%s), invalidating scope %s", ev.Op, sc)
				s.Invalidate(sc)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			debug.Logf("watch error: %v", err)
		}
	}
}
