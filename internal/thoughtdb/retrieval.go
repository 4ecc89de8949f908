package thoughtdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitool/mi/internal/debug"
	"github.com/mitool/mi/internal/memory"
)

// SeedIDs are candidate graph ids produced from a text-index search,
// partitioned by scope and kind, each list deduplicated with order
// preserved. Notes carries a one-line summary for observability.
type SeedIDs struct {
	ProjectClaimIDs []string
	GlobalClaimIDs  []string
	ProjectNodeIDs  []string
	GlobalNodeIDs   []string
	Notes           string
}

// SeedIDsFromMemory uses the external text index as a candidate generator.
// Hits from other projects are dropped: only the caller's project and the
// global scope feed Thought DB context.
func SeedIDsFromMemory(mem memory.Searcher, query, projectID string, candidateK int) SeedIDs {
	q := strings.TrimSpace(query)
	pid := strings.TrimSpace(projectID)
	if q == "" {
		return SeedIDs{Notes: "skipped: empty query"}
	}
	k := candidateK
	if k == 0 {
		k = 50
	}
	if k < 5 {
		k = 5
	}
	if k > 200 {
		k = 200
	}

	items, err := mem.Search(memory.Query{
		Query:         q,
		TopK:          k,
		Kinds:         []string{"claim", "node"},
		IncludeGlobal: true,
	})
	if err != nil {
		debug.Logf("memory search failed: %v", err)
		items = nil
	}

	var kept []memory.Item
	droppedOther := 0
	for _, it := range items {
		switch {
		case it.Scope == string(ScopeGlobal):
			kept = append(kept, it)
		case it.Scope == string(ScopeProject) && pid != "" && strings.TrimSpace(it.ProjectID) == pid:
			kept = append(kept, it)
		default:
			droppedOther++
		}
	}

	var out SeedIDs
	for _, it := range kept {
		switch it.Kind {
		case "claim":
			cid := refID(it.SourceRefs, memory.RefThoughtDBClaim)
			if cid == "" {
				continue
			}
			if it.Scope == string(ScopeGlobal) {
				out.GlobalClaimIDs = append(out.GlobalClaimIDs, cid)
			} else {
				out.ProjectClaimIDs = append(out.ProjectClaimIDs, cid)
			}
		case "node":
			nid := refID(it.SourceRefs, memory.RefThoughtDBNode)
			if nid == "" {
				continue
			}
			if it.Scope == string(ScopeGlobal) {
				out.GlobalNodeIDs = append(out.GlobalNodeIDs, nid)
			} else {
				out.ProjectNodeIDs = append(out.ProjectNodeIDs, nid)
			}
		}
	}

	out.ProjectClaimIDs = dedupeKeepOrder(out.ProjectClaimIDs)
	out.GlobalClaimIDs = dedupeKeepOrder(out.GlobalClaimIDs)
	out.ProjectNodeIDs = dedupeKeepOrder(out.ProjectNodeIDs)
	out.GlobalNodeIDs = dedupeKeepOrder(out.GlobalNodeIDs)
	out.Notes = fmt.Sprintf("fts_seeds(items=%d kept=%d dropped_other=%d k=%d)",
		len(items), len(kept), droppedOther, k)
	return out
}

// refID extracts the original graph id carried in refs under kind.
func refID(refs []memory.SourceRef, kind string) string {
	for _, r := range refs {
		if r.Kind != kind {
			continue
		}
		switch kind {
		case memory.RefThoughtDBClaim:
			if id := strings.TrimSpace(r.ClaimID); id != "" {
				return id
			}
		case memory.RefThoughtDBNode:
			if id := strings.TrimSpace(r.NodeID); id != "" {
				return id
			}
		}
	}
	return ""
}

func dedupeKeepOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// OneHopExpansion is the result of expanding seeds by one graph hop.
type OneHopExpansion struct {
	ClaimIDs []string
	NodeIDs  []string
	Notes    string
}

// ExpandOneHop walks the edges adjacent to each seed in both scope views
// and admits the non-seed endpoints that are active (and, for claims,
// valid at asOf), up to independent claim and node budgets. The project
// view is scanned before the global view so project-sourced expansions
// win when budgets are tight. edgeTypes nil means all edge types.
func ExpandOneHop(vProj, vGlob *View, seeds map[string]struct{}, asOf string,
	maxNewClaims, maxNewNodes int, edgeTypes map[EdgeType]struct{}) OneHopExpansion {

	allow := edgeTypes
	if len(allow) == 0 {
		allow = make(map[EdgeType]struct{}, len(AllEdgeTypes))
		for _, et := range AllEdgeTypes {
			allow[et] = struct{}{}
		}
	}

	seedIDs := make([]string, 0, len(seeds))
	for id := range seeds {
		if id = strings.TrimSpace(id); id != "" {
			seedIDs = append(seedIDs, id)
		}
	}
	if len(seedIDs) == 0 {
		return OneHopExpansion{Notes: "expand_one_hop: skipped (no seeds)"}
	}
	sort.Strings(seedIDs)

	if maxNewClaims < 0 {
		maxNewClaims = 0
	}
	if maxNewNodes < 0 {
		maxNewNodes = 0
	}
	if maxNewClaims == 0 && maxNewNodes == 0 {
		return OneHopExpansion{Notes: "expand_one_hop: skipped (no budget)"}
	}

	isSeed := func(id string) bool {
		_, ok := seeds[id]
		return ok
	}
	classify := func(id string) string {
		if strings.HasPrefix(id, claimIDPrefix) {
			return "claim"
		}
		if strings.HasPrefix(id, nodeIDPrefix) {
			return "node"
		}
		if _, ok := vProj.ClaimsByID[id]; ok {
			return "claim"
		}
		if _, ok := vGlob.ClaimsByID[id]; ok {
			return "claim"
		}
		if _, ok := vProj.NodesByID[id]; ok {
			return "node"
		}
		if _, ok := vGlob.NodesByID[id]; ok {
			return "node"
		}
		return ""
	}
	admissible := func(id, kind string) bool {
		switch kind {
		case "claim":
			return ClaimActiveAndValid(vProj, id, asOf) || ClaimActiveAndValid(vGlob, id, asOf)
		case "node":
			return NodeActive(vProj, id) || NodeActive(vGlob, id)
		}
		return false
	}

	var addedClaims, addedNodes []string
	added := map[string]struct{}{}
	seenEdges := map[string]struct{}{}
	full := func() bool {
		return len(addedClaims) >= maxNewClaims && len(addedNodes) >= maxNewNodes
	}

	for _, view := range []*View{vProj, vGlob} {
		for _, sid := range seedIDs {
			for _, e := range EdgesAdjacent(view, sid) {
				if full() {
					break
				}
				if _, ok := allow[e.EdgeType]; !ok {
					continue
				}
				if e.FromID == "" || e.ToID == "" {
					continue
				}
				ek := fmt.Sprintf("%s:%s:%s->%s", view.Scope, e.EdgeType, e.FromID, e.ToID)
				if _, ok := seenEdges[ek]; ok {
					continue
				}
				seenEdges[ek] = struct{}{}

				var other string
				switch sid {
				case e.FromID:
					other = e.ToID
				case e.ToID:
					other = e.FromID
				}
				if other == "" || isSeed(other) {
					continue
				}
				if _, ok := added[other]; ok {
					continue
				}
				kind := classify(other)
				if kind == "" || !admissible(other, kind) {
					continue
				}
				switch {
				case kind == "claim" && len(addedClaims) < maxNewClaims:
					addedClaims = append(addedClaims, other)
					added[other] = struct{}{}
				case kind == "node" && len(addedNodes) < maxNewNodes:
					addedNodes = append(addedNodes, other)
					added[other] = struct{}{}
				}
			}
			if full() {
				break
			}
		}
		if full() {
			break
		}
	}

	return OneHopExpansion{
		ClaimIDs: addedClaims,
		NodeIDs:  addedNodes,
		Notes: fmt.Sprintf("expand_one_hop(added_claims=%d added_nodes=%d seeds=%d)",
			len(addedClaims), len(addedNodes), len(seedIDs)),
	}
}
