package thoughtdb

import (
	"fmt"
	"os"
	"sync"

	"github.com/mitool/mi/internal/debug"
	"github.com/mitool/mi/internal/storage"
)

// ViewStore builds, caches, incrementally updates and snapshots the
// materialized View per scope.
//
// LoadView resolution order: in-memory cache (accepted only while the live
// file metas still match the ones recorded at caching time), then the
// on-disk snapshot (same staleness rule plus kind/version/scope checks),
// then a full replay of the three logs. Snapshot reads and writes are
// accelerators: any failure falls back to replay and affects latency only.
type ViewStore struct {
	env Env

	mu    sync.Mutex
	cache map[Scope]cachedView
}

type cachedView struct {
	view  *View
	metas LogMetas
}

// NewViewStore wires a view store over env.
func NewViewStore(env Env) *ViewStore {
	return &ViewStore{env: env, cache: map[Scope]cachedView{}}
}

// LoadView returns the materialized view for scope. The returned View is
// an immutable snapshot; later appends produce new View values instead of
// mutating it.
func (s *ViewStore) LoadView(scope Scope) (*View, error) {
	sc := NormalizeScope(scope)
	metas := s.env.ScopeMetas(sc)

	s.mu.Lock()
	if c, ok := s.cache[sc]; ok && c.metas == metas {
		s.mu.Unlock()
		return c.view, nil
	}
	s.mu.Unlock()

	if v := s.loadSnapshot(sc, metas); v != nil {
		s.put(sc, v, metas)
		return v, nil
	}

	v, err := s.replay(sc)
	if err != nil {
		return nil, err
	}
	s.put(sc, v, metas)
	if err := s.writeSnapshot(sc, metas, v); err != nil {
		debug.Logf("snapshot write failed for scope %s: %v", sc, err)
	}
	return v, nil
}

func (s *ViewStore) put(scope Scope, v *View, metas LogMetas) {
	s.mu.Lock()
	s.cache[scope] = cachedView{view: v, metas: metas}
	s.mu.Unlock()
}

// Invalidate drops the cached view for scope so the next LoadView
// re-checks disk. Used by the fsnotify watcher.
func (s *ViewStore) Invalidate(scope Scope) {
	s.mu.Lock()
	delete(s.cache, NormalizeScope(scope))
	s.mu.Unlock()
}

// replay rebuilds the full view for scope from its three logs in file
// order. Unknown record kinds are skipped (forward compatibility); corrupt
// lines fail the load.
func (s *ViewStore) replay(scope Scope) (*View, error) {
	v := NewEmptyView(scope, s.env.ProjectID(scope))

	err := storage.IterJSONL(s.env.ClaimsPath(scope), func(line []byte) error {
		rec, err := DecodeRecord(line)
		if err != nil {
			return skipUnknown(err, "claims")
		}
		switch r := rec.(type) {
		case *Claim:
			if r.ClaimID != "" {
				v.ClaimsByID[r.ClaimID] = r
			}
		case *ClaimRetract:
			if r.ClaimID != "" {
				v.RetractedIDs[r.ClaimID] = struct{}{}
			}
		case *Node, *NodeRetract, *Edge:
			debug.Logf("claims log for scope %s contains %s record, ignoring", scope, rec.RecordKind())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replaying claims: %w", err)
	}

	err = storage.IterJSONL(s.env.NodesPath(scope), func(line []byte) error {
		rec, err := DecodeRecord(line)
		if err != nil {
			return skipUnknown(err, "nodes")
		}
		switch r := rec.(type) {
		case *Node:
			if r.NodeID != "" {
				v.NodesByID[r.NodeID] = r
			}
		case *NodeRetract:
			if r.NodeID != "" {
				v.RetractedNodeIDs[r.NodeID] = struct{}{}
			}
		case *Claim, *ClaimRetract, *Edge:
			debug.Logf("nodes log for scope %s contains %s record, ignoring", scope, rec.RecordKind())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replaying nodes: %w", err)
	}

	err = storage.IterJSONL(s.env.EdgesPath(scope), func(line []byte) error {
		rec, err := DecodeRecord(line)
		if err != nil {
			return skipUnknown(err, "edges")
		}
		switch r := rec.(type) {
		case *Edge:
			applyEdge(v, r)
		case *Claim, *ClaimRetract, *Node, *NodeRetract:
			debug.Logf("edges log for scope %s contains %s record, ignoring", scope, rec.RecordKind())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replaying edges: %w", err)
	}

	v.rebuildIndices()
	return v, nil
}

// applyEdge mutates a view under construction. Only replay uses it; the
// incremental path copies containers instead.
func applyEdge(v *View, e *Edge) {
	if e.FromID == "" || e.ToID == "" {
		return
	}
	v.Edges = append(v.Edges, e)
	// Last same_as edge for a source wins: later redirects overwrite
	// earlier ones, in both this path and the incremental one.
	if e.EdgeType == EdgeSameAs {
		v.RedirectsSameAs[e.FromID] = e.ToID
	}
	if e.EdgeType == EdgeSupersedes {
		v.SupersededIDs[e.FromID] = struct{}{}
	}
}

func skipUnknown(err error, log string) error {
	if isUnknownKind(err) {
		debug.Logf("%s log: %v (skipped)", log, err)
		return nil
	}
	return err
}

// UpdateCacheAfterAppend incrementally patches the cached view for scope
// with exactly one appended record. When no view is cached yet this is a
// no-op: the next LoadView does a full load anyway. The patched view is a
// new value; the previously cached one is never mutated.
func (s *ViewStore) UpdateCacheAfterAppend(scope Scope, rec Record) {
	sc := NormalizeScope(scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache[sc]
	if !ok || rec == nil {
		return
	}

	var next *View
	switch r := rec.(type) {
	case *Claim:
		next = c.view.withClaim(r)
	case *ClaimRetract:
		next = c.view.withClaimRetract(r)
	case *Node:
		next = c.view.withNode(r)
	case *NodeRetract:
		next = c.view.withNodeRetract(r)
	case *Edge:
		next = c.view.withEdge(r)
	}
	if next == nil {
		return
	}
	s.cache[sc] = cachedView{view: next, metas: s.env.ScopeMetas(sc)}
}

func (v *View) withClaim(r *Claim) *View {
	if r.ClaimID == "" {
		return nil
	}
	next := *v

	claims := make(map[string]*Claim, len(v.ClaimsByID)+1)
	for k, c := range v.ClaimsByID {
		claims[k] = c
	}
	claims[r.ClaimID] = r
	next.ClaimsByID = claims

	byTag := make(map[string]map[string]struct{}, len(v.ClaimsByTag))
	for k, set := range v.ClaimsByTag {
		byTag[k] = set
	}
	for _, t := range r.Tags {
		set := make(map[string]struct{}, len(byTag[t])+1)
		for id := range byTag[t] {
			set[id] = struct{}{}
		}
		set[r.ClaimID] = struct{}{}
		byTag[t] = set
	}
	next.ClaimsByTag = byTag

	ids := make([]string, 0, len(v.ClaimIDsByTSDesc)+1)
	ids = append(ids, r.ClaimID)
	ids = append(ids, v.ClaimIDsByTSDesc...)
	next.ClaimIDsByTSDesc = ids
	return &next
}

func (v *View) withClaimRetract(r *ClaimRetract) *View {
	if r.ClaimID == "" {
		return nil
	}
	next := *v
	retracted := make(map[string]struct{}, len(v.RetractedIDs)+1)
	for id := range v.RetractedIDs {
		retracted[id] = struct{}{}
	}
	retracted[r.ClaimID] = struct{}{}
	next.RetractedIDs = retracted
	return &next
}

func (v *View) withNode(r *Node) *View {
	if r.NodeID == "" {
		return nil
	}
	next := *v

	nodes := make(map[string]*Node, len(v.NodesByID)+1)
	for k, n := range v.NodesByID {
		nodes[k] = n
	}
	nodes[r.NodeID] = r
	next.NodesByID = nodes

	byTag := make(map[string]map[string]struct{}, len(v.NodesByTag))
	for k, set := range v.NodesByTag {
		byTag[k] = set
	}
	for _, t := range r.Tags {
		set := make(map[string]struct{}, len(byTag[t])+1)
		for id := range byTag[t] {
			set[id] = struct{}{}
		}
		set[r.NodeID] = struct{}{}
		byTag[t] = set
	}
	next.NodesByTag = byTag

	ids := make([]string, 0, len(v.NodeIDsByTSDesc)+1)
	ids = append(ids, r.NodeID)
	ids = append(ids, v.NodeIDsByTSDesc...)
	next.NodeIDsByTSDesc = ids
	return &next
}

func (v *View) withNodeRetract(r *NodeRetract) *View {
	if r.NodeID == "" {
		return nil
	}
	next := *v
	retracted := make(map[string]struct{}, len(v.RetractedNodeIDs)+1)
	for id := range v.RetractedNodeIDs {
		retracted[id] = struct{}{}
	}
	retracted[r.NodeID] = struct{}{}
	next.RetractedNodeIDs = retracted
	return &next
}

func (v *View) withEdge(r *Edge) *View {
	if r.EdgeType == "" || r.FromID == "" || r.ToID == "" {
		return nil
	}
	next := *v

	edges := make([]*Edge, 0, len(v.Edges)+1)
	edges = append(edges, v.Edges...)
	edges = append(edges, r)
	next.Edges = edges

	byFrom := make(map[string][]*Edge, len(v.EdgesByFrom))
	for k, list := range v.EdgesByFrom {
		byFrom[k] = list
	}
	fromList := make([]*Edge, 0, len(byFrom[r.FromID])+1)
	fromList = append(fromList, byFrom[r.FromID]...)
	byFrom[r.FromID] = append(fromList, r)
	next.EdgesByFrom = byFrom

	byTo := make(map[string][]*Edge, len(v.EdgesByTo))
	for k, list := range v.EdgesByTo {
		byTo[k] = list
	}
	toList := make([]*Edge, 0, len(byTo[r.ToID])+1)
	toList = append(toList, byTo[r.ToID]...)
	byTo[r.ToID] = append(toList, r)
	next.EdgesByTo = byTo

	if r.EdgeType == EdgeSameAs {
		redirects := make(map[string]string, len(v.RedirectsSameAs)+1)
		for k, val := range v.RedirectsSameAs {
			redirects[k] = val
		}
		// Last same_as edge for a source wins, matching replay.
		redirects[r.FromID] = r.ToID
		next.RedirectsSameAs = redirects
	}
	if r.EdgeType == EdgeSupersedes {
		superseded := make(map[string]struct{}, len(v.SupersededIDs)+1)
		for id := range v.SupersededIDs {
			superseded[id] = struct{}{}
		}
		superseded[r.FromID] = struct{}{}
		next.SupersededIDs = superseded
	}
	return &next
}

// FlushSnapshots persists a snapshot for every cached scope, refreshing
// each cache entry's meta stamp. Best-effort: failures are logged and the
// remaining scopes still flush. Call this at the end of a processing run
// rather than on every write to bound disk I/O.
func (s *ViewStore) FlushSnapshots() {
	s.mu.Lock()
	scopes := make([]Scope, 0, len(s.cache))
	for sc := range s.cache {
		scopes = append(scopes, sc)
	}
	s.mu.Unlock()

	for _, sc := range scopes {
		s.mu.Lock()
		c, ok := s.cache[sc]
		s.mu.Unlock()
		if !ok {
			continue
		}
		metas := s.env.ScopeMetas(sc)
		if err := s.writeSnapshot(sc, metas, c.view); err != nil {
			debug.Logf("snapshot flush failed for scope %s: %v", sc, err)
			continue
		}
		s.put(sc, c.view, metas)
	}
}

// ExistingSignatures returns the content signatures of every claim in
// scope, aliases and inactive claims included.
func (s *ViewStore) ExistingSignatures(scope Scope) (map[string]struct{}, error) {
	v, err := s.LoadView(scope)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(v.ClaimsByID))
	for _, c := range v.ClaimsByID {
		if c.ClaimType == "" || c.Text == "" {
			continue
		}
		out[ClaimSignature(c.ClaimType, v.Scope, v.ProjectID, c.Text)] = struct{}{}
	}
	return out, nil
}

// ExistingSignatureMap returns signature -> claim id for non-alias claims
// in scope, for dedup linking. Recency order makes the winner per
// signature deterministic: the most recent non-alias claim.
func (s *ViewStore) ExistingSignatureMap(scope Scope) (map[string]string, error) {
	v, err := s.LoadView(scope)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(v.ClaimsByID))
	for _, cid := range v.ClaimIDsByTSDesc {
		c := v.ClaimsByID[cid]
		if c == nil || c.ClaimType == "" || c.Text == "" {
			continue
		}
		if _, aliased := v.RedirectsSameAs[cid]; aliased {
			continue
		}
		sig := ClaimSignature(c.ClaimType, v.Scope, v.ProjectID, c.Text)
		if _, ok := out[sig]; !ok {
			out[sig] = cid
		}
	}
	return out, nil
}

// ExistingEdgeKeys returns the (type, from, to) keys of every edge in
// scope.
func (s *ViewStore) ExistingEdgeKeys(scope Scope) (map[string]struct{}, error) {
	v, err := s.LoadView(scope)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(v.Edges))
	for _, e := range v.Edges {
		if e.EdgeType == "" || e.FromID == "" || e.ToID == "" {
			continue
		}
		out[EdgeKey(e.EdgeType, e.FromID, e.ToID)] = struct{}{}
	}
	return out, nil
}

// snapshotFile is the on-disk snapshot layout. Derived indices are not
// persisted; they are rebuilt on restore.
type snapshotFile struct {
	Kind        string        `json:"kind"`
	Version     string        `json:"version"`
	BuiltTS     string        `json:"built_ts"`
	Scope       Scope         `json:"scope"`
	ProjectID   string        `json:"project_id"`
	SourceMetas snapshotMetas `json:"source_metas"`
	View        snapshotView  `json:"view"`
}

type snapshotMetas struct {
	Claims storage.FileMeta `json:"claims"`
	Edges  storage.FileMeta `json:"edges"`
	Nodes  storage.FileMeta `json:"nodes"`
}

type snapshotView struct {
	ClaimsByID       map[string]*Claim `json:"claims_by_id"`
	NodesByID        map[string]*Node  `json:"nodes_by_id"`
	Edges            []*Edge           `json:"edges"`
	RedirectsSameAs  map[string]string `json:"redirects_same_as"`
	SupersededIDs    []string          `json:"superseded_ids"`
	RetractedIDs     []string          `json:"retracted_ids"`
	RetractedNodeIDs []string          `json:"retracted_node_ids"`
}

// loadSnapshot restores a view from the persisted snapshot iff its kind,
// version, scope and recorded source metas all match exactly. Any
// mismatch or read error means "no snapshot"; the caller replays.
func (s *ViewStore) loadSnapshot(scope Scope, metas LogMetas) *View {
	path := s.env.SnapshotPath(scope)
	var snap snapshotFile
	if err := storage.ReadJSON(path, &snap); err != nil {
		if !os.IsNotExist(err) {
			debug.Logf("snapshot read failed for scope %s: %v", scope, err)
		}
		return nil
	}
	if snap.Kind != SnapshotKind || snap.Version != SnapshotVersion || snap.Scope != scope {
		return nil
	}
	if (LogMetas{Claims: snap.SourceMetas.Claims, Edges: snap.SourceMetas.Edges, Nodes: snap.SourceMetas.Nodes}) != metas {
		return nil
	}

	v := NewEmptyView(scope, s.env.ProjectID(scope))
	for id, c := range snap.View.ClaimsByID {
		if id != "" && c != nil {
			v.ClaimsByID[id] = c
		}
	}
	for id, n := range snap.View.NodesByID {
		if id != "" && n != nil {
			v.NodesByID[id] = n
		}
	}
	for _, e := range snap.View.Edges {
		if e != nil {
			v.Edges = append(v.Edges, e)
		}
	}
	for from, to := range snap.View.RedirectsSameAs {
		if from != "" && to != "" {
			v.RedirectsSameAs[from] = to
		}
	}
	for _, id := range snap.View.SupersededIDs {
		if id != "" {
			v.SupersededIDs[id] = struct{}{}
		}
	}
	for _, id := range snap.View.RetractedIDs {
		if id != "" {
			v.RetractedIDs[id] = struct{}{}
		}
	}
	for _, id := range snap.View.RetractedNodeIDs {
		if id != "" {
			v.RetractedNodeIDs[id] = struct{}{}
		}
	}
	v.rebuildIndices()
	return v
}

func (s *ViewStore) writeSnapshot(scope Scope, metas LogMetas, v *View) error {
	snap := snapshotFile{
		Kind:      SnapshotKind,
		Version:   SnapshotVersion,
		BuiltTS:   storage.NowRFC3339(),
		Scope:     scope,
		ProjectID: v.ProjectID,
		SourceMetas: snapshotMetas{
			Claims: metas.Claims,
			Edges:  metas.Edges,
			Nodes:  metas.Nodes,
		},
		View: snapshotView{
			ClaimsByID:       v.ClaimsByID,
			NodesByID:        v.NodesByID,
			Edges:            v.Edges,
			RedirectsSameAs:  v.RedirectsSameAs,
			SupersededIDs:    sortedKeys(v.SupersededIDs),
			RetractedIDs:     sortedKeys(v.RetractedIDs),
			RetractedNodeIDs: sortedKeys(v.RetractedNodeIDs),
		},
	}
	return storage.WriteJSONAtomic(s.env.SnapshotPath(scope), &snap)
}
