// Package thoughtdb is the persistence and retrieval core of mi: an
// event-sourced store of claims, decision/action/summary nodes and typed
// edges, with a cached materialized view per scope.
//
// Layering, leaves first: pure model functions (this file), the tagged
// record union (record.go), the materialized View (view.go), the
// append-only write path (appendstore.go), the view/snapshot cache
// (viewstore.go), derived-status predicates and graph retrieval, and the
// mined-output ingestion service (servicestore.go).
package thoughtdb

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// Version tags every record written to the per-scope logs.
	Version = "v1"

	// SnapshotKind and SnapshotVersion identify persisted view snapshots.
	SnapshotKind    = "mi.thoughtdb.view_snapshot"
	SnapshotVersion = "v1"
)

// Scope partitions the store into per-project and global halves.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeGlobal  Scope = "global"
)

// NormalizeScope maps anything that is not "global" to the project scope.
func NormalizeScope(s Scope) Scope {
	if strings.TrimSpace(string(s)) == string(ScopeGlobal) {
		return ScopeGlobal
	}
	return ScopeProject
}

// Visibility is the access label on claims, nodes and edges. The labels
// form a total order private < project < global.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityProject Visibility = "project"
	VisibilityGlobal  Visibility = "global"
)

var visibilityRank = map[Visibility]int{
	VisibilityPrivate: 0,
	VisibilityProject: 1,
	VisibilityGlobal:  2,
}

// NormalizeVisibility coerces unknown labels to the project default.
func NormalizeVisibility(v Visibility) Visibility {
	vv := Visibility(strings.TrimSpace(string(v)))
	if _, ok := visibilityRank[vv]; !ok {
		return VisibilityProject
	}
	return vv
}

// MinVisibility returns the more restrictive of two visibility labels.
// It is commutative and idempotent; unknown labels rank as project.
func MinVisibility(a, b Visibility) Visibility {
	aa := NormalizeVisibility(a)
	bb := NormalizeVisibility(b)
	if visibilityRank[aa] <= visibilityRank[bb] {
		return aa
	}
	return bb
}

// ClaimType classifies a claim record.
type ClaimType string

const (
	ClaimFact       ClaimType = "fact"
	ClaimPreference ClaimType = "preference"
	ClaimAssumption ClaimType = "assumption"
	ClaimGoal       ClaimType = "goal"
)

// NormalizeClaimType coerces unknown claim types to fact. Claim writes are
// deliberately lenient here; node and edge types are validated strictly.
func NormalizeClaimType(t ClaimType) ClaimType {
	switch ClaimType(strings.TrimSpace(string(t))) {
	case ClaimFact, ClaimPreference, ClaimAssumption, ClaimGoal:
		return ClaimType(strings.TrimSpace(string(t)))
	default:
		return ClaimFact
	}
}

// NodeType classifies a node record.
type NodeType string

const (
	NodeDecision NodeType = "decision"
	NodeAction   NodeType = "action"
	NodeSummary  NodeType = "summary"
)

// ValidNodeType reports whether t is one of decision/action/summary.
func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeDecision, NodeAction, NodeSummary:
		return true
	default:
		return false
	}
}

// EdgeType classifies a directed relation between two graph ids.
type EdgeType string

const (
	EdgeDependsOn   EdgeType = "depends_on"
	EdgeSupports    EdgeType = "supports"
	EdgeContradicts EdgeType = "contradicts"
	EdgeDerivedFrom EdgeType = "derived_from"
	EdgeMentions    EdgeType = "mentions"
	EdgeSupersedes  EdgeType = "supersedes"
	EdgeSameAs      EdgeType = "same_as"
)

// AllEdgeTypes lists every valid edge type.
var AllEdgeTypes = []EdgeType{
	EdgeDependsOn, EdgeSupports, EdgeContradicts,
	EdgeDerivedFrom, EdgeMentions, EdgeSupersedes, EdgeSameAs,
}

// ValidEdgeType reports whether t is in the allowed set.
func ValidEdgeType(t EdgeType) bool {
	for _, e := range AllEdgeTypes {
		if t == e {
			return true
		}
	}
	return false
}

// Status is the derived lifecycle state of a claim or node. It is never
// stored in a record; the view computes it from retractions and
// supersedes edges.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
	StatusRetracted  Status = "retracted"
	StatusUnknown    Status = "unknown"
)

// Id prefixes distinguish claims, nodes and edges on the wire and let
// retrieval classify an endpoint without a map lookup.
const (
	claimIDPrefix = "cl_"
	nodeIDPrefix  = "nd_"
	edgeIDPrefix  = "ed_"
)

func newID(prefix string) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%s%d_%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf[:]))
}

// NewClaimID mints a claim id: a nanosecond timestamp plus a random
// suffix. Collision-free in practice, not guaranteed across clock rollback.
func NewClaimID() string { return newID(claimIDPrefix) }

// NewNodeID mints a node id.
func NewNodeID() string { return newID(nodeIDPrefix) }

// NewEdgeID mints an edge id.
func NewEdgeID() string { return newID(edgeIDPrefix) }

// NormalizeText lowercases and whitespace-collapses text for signatures.
func NormalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// ClaimSignature is a stable content hash used only to dedupe obviously
// identical claims within a scope. It is never used as an identity.
func ClaimSignature(claimType ClaimType, scope Scope, projectID, text string) string {
	base := fmt.Sprintf("%s|%s|%s|%s",
		strings.TrimSpace(string(claimType)),
		strings.TrimSpace(string(scope)),
		strings.TrimSpace(projectID),
		NormalizeText(text))
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}

// EdgeKey is the (type, from, to) identity used for edge dedup.
func EdgeKey(edgeType EdgeType, fromID, toID string) string {
	return fmt.Sprintf("%s|%s|%s",
		strings.TrimSpace(string(edgeType)),
		strings.TrimSpace(fromID),
		strings.TrimSpace(toID))
}

// FollowRedirects walks same_as pointers from start until there is no next
// hop, a cycle is detected, or limit hops have been taken. An id with no
// redirect resolves to itself.
func FollowRedirects(start string, redirects map[string]string, limit int) string {
	cur := strings.TrimSpace(start)
	if cur == "" {
		return ""
	}
	if limit < 1 {
		limit = 1
	}
	seen := make(map[string]struct{}, limit)
	for i := 0; i < limit; i++ {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		next := redirects[cur]
		if next == "" || next == cur {
			break
		}
		cur = next
	}
	return cur
}

// cleanStrings trims each entry, drops empties, and caps the result at max.
func cleanStrings(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// clamp01 bounds a confidence score to [0, 1].
func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
