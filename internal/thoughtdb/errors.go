package thoughtdb

import "errors"

// Validation sentinels. These fail fast to the direct caller and are never
// retried; everything downstream of a successful append degrades silently.
var (
	ErrEmptyText       = errors.New("text is empty")
	ErrEmptyID         = errors.New("id is required")
	ErrInvalidNodeType = errors.New("invalid node_type")
	ErrInvalidEdgeType = errors.New("invalid edge_type")
	ErrMissingEndpoint = errors.New("edge from_id and to_id are required")
)
