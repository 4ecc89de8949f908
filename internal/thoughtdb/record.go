package thoughtdb

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RecordKind tags each line in the per-scope logs.
type RecordKind string

const (
	KindClaim        RecordKind = "claim"
	KindClaimRetract RecordKind = "claim_retract"
	KindNode         RecordKind = "node"
	KindNodeRetract  RecordKind = "node_retract"
	KindEdge         RecordKind = "edge"
)

// ErrUnknownKind is returned by DecodeRecord for kinds this version does
// not understand. Replay skips such lines; compaction refuses to run.
var ErrUnknownKind = errors.New("unknown record kind")

func isUnknownKind(err error) bool {
	return errors.Is(err, ErrUnknownKind)
}

// Record is the closed union of log record types. Every replay and
// incremental-update site switches over the concrete types exhaustively,
// so adding a kind without handling it everywhere fails review, not
// production.
type Record interface {
	RecordKind() RecordKind
}

// SourceRef cites an external EvidenceLog event as provenance.
type SourceRef struct {
	Kind    string `json:"kind"`
	EventID string `json:"event_id"`
}

// EvidenceRefs converts event ids into evidence_event source refs.
func EvidenceRefs(eventIDs []string, max int) []SourceRef {
	ids := cleanStrings(eventIDs, max)
	refs := make([]SourceRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, SourceRef{Kind: "evidence_event", EventID: id})
	}
	return refs
}

// EventIDs extracts the cited event ids from a ref list.
func EventIDs(refs []SourceRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.EventID != "" {
			out = append(out, r.EventID)
		}
	}
	return out
}

// Claim is an atomic reusable assertion. Records are immutable once
// appended; lifecycle state (retracted/superseded) is derived by the view
// and never stored here.
type Claim struct {
	Kind       RecordKind  `json:"kind"`
	Version    string      `json:"version"`
	ClaimID    string      `json:"claim_id"`
	ClaimType  ClaimType   `json:"claim_type"`
	Text       string      `json:"text"`
	Visibility Visibility  `json:"visibility"`
	Scope      Scope       `json:"scope"`
	ProjectID  string      `json:"project_id"`
	AssertedTS string      `json:"asserted_ts"`
	ValidFrom  string      `json:"valid_from,omitempty"`
	ValidTo    string      `json:"valid_to,omitempty"`
	Tags       []string    `json:"tags"`
	SourceRefs []SourceRef `json:"source_refs"`
	Confidence float64     `json:"confidence"`
	Notes      string      `json:"notes,omitempty"`
}

func (*Claim) RecordKind() RecordKind { return KindClaim }

// ClaimRetract is the append-only tombstone for a claim. It does not
// remove the claim record; the view derives the retracted status.
type ClaimRetract struct {
	Kind       RecordKind  `json:"kind"`
	Version    string      `json:"version"`
	TS         string      `json:"ts"`
	ClaimID    string      `json:"claim_id"`
	Rationale  string      `json:"rationale,omitempty"`
	SourceRefs []SourceRef `json:"source_refs"`
}

func (*ClaimRetract) RecordKind() RecordKind { return KindClaimRetract }

// Node is a recorded decision, action or summary.
type Node struct {
	Kind       RecordKind  `json:"kind"`
	Version    string      `json:"version"`
	NodeID     string      `json:"node_id"`
	NodeType   NodeType    `json:"node_type"`
	Title      string      `json:"title"`
	Text       string      `json:"text"`
	Visibility Visibility  `json:"visibility"`
	Scope      Scope       `json:"scope"`
	ProjectID  string      `json:"project_id"`
	AssertedTS string      `json:"asserted_ts"`
	Tags       []string    `json:"tags"`
	SourceRefs []SourceRef `json:"source_refs"`
	Confidence float64     `json:"confidence"`
	Notes      string      `json:"notes,omitempty"`
}

func (*Node) RecordKind() RecordKind { return KindNode }

// NodeRetract is the append-only tombstone for a node.
type NodeRetract struct {
	Kind       RecordKind  `json:"kind"`
	Version    string      `json:"version"`
	TS         string      `json:"ts"`
	NodeID     string      `json:"node_id"`
	Rationale  string      `json:"rationale,omitempty"`
	SourceRefs []SourceRef `json:"source_refs"`
}

func (*NodeRetract) RecordKind() RecordKind { return KindNodeRetract }

// Edge is a typed directed relation between two claim/node/event ids.
// Edges are immutable and never deleted.
type Edge struct {
	Kind       RecordKind  `json:"kind"`
	Version    string      `json:"version"`
	EdgeID     string      `json:"edge_id"`
	EdgeType   EdgeType    `json:"edge_type"`
	FromID     string      `json:"from_id"`
	ToID       string      `json:"to_id"`
	Visibility Visibility  `json:"visibility"`
	Scope      Scope       `json:"scope"`
	ProjectID  string      `json:"project_id"`
	AssertedTS string      `json:"asserted_ts"`
	SourceRefs []SourceRef `json:"source_refs"`
	Notes      string      `json:"notes,omitempty"`
}

func (*Edge) RecordKind() RecordKind { return KindEdge }

// DecodeRecord parses one log line into its concrete record type.
// Unknown kinds return ErrUnknownKind so callers can decide between
// skipping (replay) and refusing (compaction).
func DecodeRecord(line []byte) (Record, error) {
	var probe struct {
		Kind RecordKind `json:"kind"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, fmt.Errorf("parsing record envelope: %w", err)
	}
	switch probe.Kind {
	case KindClaim:
		var r Claim
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("parsing claim: %w", err)
		}
		return &r, nil
	case KindClaimRetract:
		var r ClaimRetract
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("parsing claim_retract: %w", err)
		}
		return &r, nil
	case KindNode:
		var r Node
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("parsing node: %w", err)
		}
		return &r, nil
	case KindNodeRetract:
		var r NodeRetract
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("parsing node_retract: %w", err)
		}
		return &r, nil
	case KindEdge:
		var r Edge
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("parsing edge: %w", err)
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, probe.Kind)
	}
}
