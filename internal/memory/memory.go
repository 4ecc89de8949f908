// Package memory defines the consumed interface of the external full-text
// memory index. The index implementation lives outside this module;
// Thought DB retrieval only issues searches and maps hits back to graph
// ids through the source_refs convention below.
package memory

// Source-ref kinds that carry an original Thought DB graph id.
const (
	RefThoughtDBClaim = "thoughtdb_claim"
	RefThoughtDBNode  = "thoughtdb_node"
)

// SourceRef links an indexed item back to its origin record.
type SourceRef struct {
	Kind    string `json:"kind"`
	ClaimID string `json:"claim_id,omitempty"`
	NodeID  string `json:"node_id,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// Item is one search hit.
type Item struct {
	ItemID     string      `json:"item_id"`
	Kind       string      `json:"kind"` // "claim" or "node"
	Scope      string      `json:"scope"`
	ProjectID  string      `json:"project_id"`
	TS         string      `json:"ts"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	Tags       []string    `json:"tags"`
	SourceRefs []SourceRef `json:"source_refs"`
}

// Query is one search request.
type Query struct {
	Query            string
	TopK             int
	Kinds            []string
	IncludeGlobal    bool
	ExcludeProjectID string
}

// Searcher is the text index surface Thought DB retrieval consumes.
type Searcher interface {
	Search(q Query) ([]Item, error)
}
