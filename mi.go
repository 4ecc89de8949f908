// Package mi provides a minimal public API for embedding the thought
// store in Go-based tooling.
//
// Most callers should use the mi CLI. This package exports only the
// store facade and the types needed to read and write records
// programmatically.
package mi

import (
	"context"

	"github.com/mitool/mi/internal/paths"
	"github.com/mitool/mi/internal/thoughtdb"
)

// Core types from internal/thoughtdb
type (
	Scope      = thoughtdb.Scope
	Visibility = thoughtdb.Visibility
	ClaimType  = thoughtdb.ClaimType
	NodeType   = thoughtdb.NodeType
	EdgeType   = thoughtdb.EdgeType
	Status     = thoughtdb.Status

	Claim     = thoughtdb.Claim
	Node      = thoughtdb.Node
	Edge      = thoughtdb.Edge
	SourceRef = thoughtdb.SourceRef
	View      = thoughtdb.View
	ClaimInfo = thoughtdb.ClaimInfo
	NodeInfo  = thoughtdb.NodeInfo

	ClaimInput  = thoughtdb.ClaimInput
	NodeInput   = thoughtdb.NodeInput
	EdgeInput   = thoughtdb.EdgeInput
	MinedOutput = thoughtdb.MinedOutput
	ApplyResult = thoughtdb.ApplyResult
)

const (
	ScopeProject = thoughtdb.ScopeProject
	ScopeGlobal  = thoughtdb.ScopeGlobal
)

// Store is the append-only thought store facade.
//
// Source of truth for agent runs remains the evidence log and raw
// transcripts. The store adds durable, reusable claim/edge/node records
// that reference evidence event ids.
//
// Internal layering:
//   - AppendStore: append-only writes
//   - ViewStore: materialized view + snapshot/cache
//   - ServiceStore: mined-output application and business rules
type Store struct {
	paths   *paths.Paths
	env     thoughtdb.Env
	view    *thoughtdb.ViewStore
	append  *thoughtdb.AppendStore
	service *thoughtdb.ServiceStore
}

// Open builds a store over homeDir and projectRoot. Empty homeDir uses
// MI_HOME or ~/.mi.
func Open(homeDir, projectRoot string) (*Store, error) {
	p, err := paths.New(homeDir, projectRoot)
	if err != nil {
		return nil, err
	}
	env := p.Env()
	view := thoughtdb.NewViewStore(env)
	appendStore := thoughtdb.NewAppendStore(env, view.UpdateCacheAfterAppend)
	service := thoughtdb.NewServiceStore(appendStore, view, env.ProjectID)
	return &Store{paths: p, env: env, view: view, append: appendStore, service: service}, nil
}

// ProjectID returns the id this store writes into project-scope records.
func (s *Store) ProjectID() string { return s.paths.ProjectID }

// Env exposes the path layout, mainly for compaction and tooling.
func (s *Store) Env() thoughtdb.Env { return s.env }

// View layer

func (s *Store) LoadView(scope Scope) (*View, error) { return s.view.LoadView(scope) }

func (s *Store) FlushSnapshots() { s.view.FlushSnapshots() }

// WatchInvalidate blocks, invalidating cached views when another process
// writes the logs. Returns when ctx is done.
func (s *Store) WatchInvalidate(ctx context.Context, scopes ...Scope) error {
	return s.view.WatchInvalidate(ctx, scopes...)
}

func (s *Store) ExistingSignatures(scope Scope) (map[string]struct{}, error) {
	return s.view.ExistingSignatures(scope)
}

func (s *Store) ExistingEdgeKeys(scope Scope) (map[string]struct{}, error) {
	return s.view.ExistingEdgeKeys(scope)
}

// Append layer

func (s *Store) AppendClaim(in ClaimInput) (string, error) { return s.append.AppendClaim(in) }

func (s *Store) RetractClaim(claimID string, scope Scope, rationale string, sourceEventIDs []string) error {
	return s.append.RetractClaim(claimID, scope, rationale, sourceEventIDs)
}

func (s *Store) AppendNode(in NodeInput) (string, error) { return s.append.AppendNode(in) }

func (s *Store) RetractNode(nodeID string, scope Scope, rationale string, sourceEventIDs []string) error {
	return s.append.RetractNode(nodeID, scope, rationale, sourceEventIDs)
}

func (s *Store) AppendEdge(in EdgeInput) (string, error) { return s.append.AppendEdge(in) }

// Service layer

func (s *Store) ApplyMinedOutput(output MinedOutput, allowedEventIDs map[string]struct{},
	minConfidence float64, maxClaims int) (*ApplyResult, error) {
	return s.service.ApplyMinedOutput(output, allowedEventIDs, minConfidence, maxClaims)
}

// Compact rewrites one scope's logs into compacted form with a gzip
// archive of the originals.
func (s *Store) Compact(scope Scope, dryRun bool) (*thoughtdb.CompactReport, error) {
	rep, err := thoughtdb.CompactScope(s.env, scope, dryRun)
	if err != nil {
		return nil, err
	}
	if !dryRun {
		s.view.Invalidate(scope)
	}
	return rep, nil
}
