package thoughtdb

import (
	"sort"
	"strings"
)

// redirectLimit bounds same_as chain walks. A chain longer than this is
// assumed to be a cycle the hop limit must terminate.
const redirectLimit = 20

// View is the materialized reduction of one scope's append-only logs into
// queryable indices. A View is immutable once returned: incremental cache
// updates build a new View sharing unchanged containers, so references
// handed to callers stay stable snapshots of "the view as of that read".
type View struct {
	Scope     Scope
	ProjectID string

	ClaimsByID map[string]*Claim
	NodesByID  map[string]*Node
	Edges      []*Edge

	RedirectsSameAs  map[string]string
	SupersededIDs    map[string]struct{}
	RetractedIDs     map[string]struct{}
	RetractedNodeIDs map[string]struct{}

	// Derived indices, rebuilt from the base maps; never serialized.
	ClaimsByTag map[string]map[string]struct{}
	NodesByTag  map[string]map[string]struct{}
	EdgesByFrom map[string][]*Edge
	EdgesByTo   map[string][]*Edge

	// Recency-sorted id lists (asserted_ts descending).
	ClaimIDsByTSDesc []string
	NodeIDsByTSDesc  []string
}

// NewEmptyView returns a view with all containers allocated.
func NewEmptyView(scope Scope, projectID string) *View {
	return &View{
		Scope:            NormalizeScope(scope),
		ProjectID:        projectID,
		ClaimsByID:       map[string]*Claim{},
		NodesByID:        map[string]*Node{},
		Edges:            []*Edge{},
		RedirectsSameAs:  map[string]string{},
		SupersededIDs:    map[string]struct{}{},
		RetractedIDs:     map[string]struct{}{},
		RetractedNodeIDs: map[string]struct{}{},
		ClaimsByTag:      map[string]map[string]struct{}{},
		NodesByTag:       map[string]map[string]struct{}{},
		EdgesByFrom:      map[string][]*Edge{},
		EdgesByTo:        map[string][]*Edge{},
	}
}

// ResolveID follows same_as redirects from id to its canonical id.
func (v *View) ResolveID(id string) string {
	return FollowRedirects(id, v.RedirectsSameAs, redirectLimit)
}

// ClaimStatus derives the lifecycle status of a claim id.
// Retraction wins over supersession.
func (v *View) ClaimStatus(claimID string) Status {
	id := strings.TrimSpace(claimID)
	if id == "" {
		return StatusUnknown
	}
	if _, ok := v.RetractedIDs[id]; ok {
		return StatusRetracted
	}
	if _, ok := v.SupersededIDs[id]; ok {
		return StatusSuperseded
	}
	return StatusActive
}

// NodeStatus derives the lifecycle status of a node id.
func (v *View) NodeStatus(nodeID string) Status {
	id := strings.TrimSpace(nodeID)
	if id == "" {
		return StatusUnknown
	}
	if _, ok := v.RetractedNodeIDs[id]; ok {
		return StatusRetracted
	}
	if _, ok := v.SupersededIDs[id]; ok {
		return StatusSuperseded
	}
	return StatusActive
}

// claimValidAt reports whether asOf falls inside the claim's
// [valid_from, valid_to) window. Unset bounds are open; an empty asOf
// skips the temporal check entirely.
func claimValidAt(c *Claim, asOf string) bool {
	t := strings.TrimSpace(asOf)
	if t == "" {
		return true
	}
	if c.ValidFrom != "" && c.ValidFrom > t {
		return false
	}
	if c.ValidTo != "" && t >= c.ValidTo {
		return false
	}
	return true
}

// ClaimFilter selects claims from a view.
type ClaimFilter struct {
	// IncludeInactive keeps superseded and retracted claims.
	IncludeInactive bool
	// IncludeAliases keeps claims that have a same_as redirect.
	IncludeAliases bool
	// AsOf, when set (RFC3339), filters by the valid_from/valid_to window.
	AsOf string
}

// ClaimInfo pairs a claim record with its derived status and canonical id.
type ClaimInfo struct {
	*Claim
	Status      Status
	CanonicalID string
}

// Claims returns claims in recency order with derived status and
// redirect info, filtered per f.
func (v *View) Claims(f ClaimFilter) []ClaimInfo {
	out := make([]ClaimInfo, 0, len(v.ClaimIDsByTSDesc))
	for _, cid := range v.ClaimIDsByTSDesc {
		c := v.ClaimsByID[cid]
		if c == nil {
			continue
		}
		if !f.IncludeAliases {
			if _, aliased := v.RedirectsSameAs[cid]; aliased {
				continue
			}
		}
		status := v.ClaimStatus(cid)
		if !f.IncludeInactive && status != StatusActive {
			continue
		}
		if !claimValidAt(c, f.AsOf) {
			continue
		}
		out = append(out, ClaimInfo{Claim: c, Status: status, CanonicalID: v.ResolveID(cid)})
	}
	return out
}

// NodeFilter selects nodes from a view.
type NodeFilter struct {
	IncludeInactive bool
	IncludeAliases  bool
}

// NodeInfo pairs a node record with its derived status and canonical id.
type NodeInfo struct {
	*Node
	Status      Status
	CanonicalID string
}

// Nodes returns nodes in recency order with derived status and redirect
// info, filtered per f.
func (v *View) Nodes(f NodeFilter) []NodeInfo {
	out := make([]NodeInfo, 0, len(v.NodeIDsByTSDesc))
	for _, nid := range v.NodeIDsByTSDesc {
		n := v.NodesByID[nid]
		if n == nil {
			continue
		}
		if !f.IncludeAliases {
			if _, aliased := v.RedirectsSameAs[nid]; aliased {
				continue
			}
		}
		status := v.NodeStatus(nid)
		if !f.IncludeInactive && status != StatusActive {
			continue
		}
		out = append(out, NodeInfo{Node: n, Status: status, CanonicalID: v.ResolveID(nid)})
	}
	return out
}

// ClaimIDsByTagName returns the claim ids carrying tag, unordered.
func (v *View) ClaimIDsByTagName(tag string) []string {
	set := v.ClaimsByTag[strings.TrimSpace(tag)]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// rebuildIndices recomputes the derived indices and recency lists from the
// base maps. Used after a full replay and after a snapshot restore; the
// snapshot persists only the base view to avoid duplicating data on disk.
func (v *View) rebuildIndices() {
	v.ClaimsByTag = map[string]map[string]struct{}{}
	for cid, c := range v.ClaimsByID {
		addTags(v.ClaimsByTag, cid, c.Tags)
	}
	v.NodesByTag = map[string]map[string]struct{}{}
	for nid, n := range v.NodesByID {
		addTags(v.NodesByTag, nid, n.Tags)
	}

	v.EdgesByFrom = map[string][]*Edge{}
	v.EdgesByTo = map[string][]*Edge{}
	for _, e := range v.Edges {
		if e.FromID != "" {
			v.EdgesByFrom[e.FromID] = append(v.EdgesByFrom[e.FromID], e)
		}
		if e.ToID != "" {
			v.EdgesByTo[e.ToID] = append(v.EdgesByTo[e.ToID], e)
		}
	}

	v.ClaimIDsByTSDesc = sortIDsByTSDesc(len(v.ClaimsByID), func(yield func(id, ts string)) {
		for cid, c := range v.ClaimsByID {
			yield(cid, c.AssertedTS)
		}
	})
	v.NodeIDsByTSDesc = sortIDsByTSDesc(len(v.NodesByID), func(yield func(id, ts string)) {
		for nid, n := range v.NodesByID {
			yield(nid, n.AssertedTS)
		}
	})
}

// sortedKeys returns the members of a string set in sorted order.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func addTags(index map[string]map[string]struct{}, id string, tags []string) {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		set := index[t]
		if set == nil {
			set = map[string]struct{}{}
			index[t] = set
		}
		set[id] = struct{}{}
	}
}

// sortIDsByTSDesc collects (id, ts) pairs and orders ids by timestamp
// descending, breaking ties by id so the order is deterministic.
func sortIDsByTSDesc(n int, collect func(yield func(id, ts string))) []string {
	type pair struct{ id, ts string }
	pairs := make([]pair, 0, n)
	collect(func(id, ts string) {
		pairs = append(pairs, pair{id: id, ts: ts})
	})
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ts != pairs[j].ts {
			return pairs[i].ts > pairs[j].ts
		}
		return pairs[i].id > pairs[j].id
	})
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.id
	}
	return out
}
