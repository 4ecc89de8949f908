package thoughtdb

import "strings"

// ClaimActiveAndValid reports whether claimID refers to an active,
// non-alias claim whose validity window contains asOf. An alias (a
// same_as source) is never served directly; callers resolve it first.
func ClaimActiveAndValid(v *View, claimID, asOf string) bool {
	id := strings.TrimSpace(claimID)
	if id == "" {
		return false
	}
	if _, aliased := v.RedirectsSameAs[id]; aliased {
		return false
	}
	if v.ClaimStatus(id) != StatusActive {
		return false
	}
	c := v.ClaimsByID[id]
	if c == nil {
		return false
	}
	return claimValidAt(c, asOf)
}

// NodeActive reports whether nodeID refers to an active, non-alias node.
// Nodes have no temporal validity window.
func NodeActive(v *View, nodeID string) bool {
	id := strings.TrimSpace(nodeID)
	if id == "" {
		return false
	}
	if _, aliased := v.RedirectsSameAs[id]; aliased {
		return false
	}
	return v.NodeStatus(id) == StatusActive
}

// EdgesAdjacent returns every edge touching id: outgoing first, then
// incoming.
func EdgesAdjacent(v *View, id string) []*Edge {
	i := strings.TrimSpace(id)
	if i == "" {
		return nil
	}
	out := make([]*Edge, 0, len(v.EdgesByFrom[i])+len(v.EdgesByTo[i]))
	out = append(out, v.EdgesByFrom[i]...)
	out = append(out, v.EdgesByTo[i]...)
	return out
}
