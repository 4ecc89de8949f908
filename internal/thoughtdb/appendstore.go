package thoughtdb

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mitool/mi/internal/debug"
	"github.com/mitool/mi/internal/storage"
)

// Field caps on appended records.
const (
	maxTags            = 20
	maxClaimSourceRefs = 8
	maxNodeSourceRefs  = 12
	maxEdgeSourceRefs  = 8
	maxTitleLen        = 140
)

// AppendStore is the append-only write path. Each append validates and
// normalizes its input, resolves the scope's log via the injected Env,
// writes exactly one JSON line durably, and then notifies onAppend so the
// view cache can patch itself. The notification is best-effort: cache
// maintenance must never break a write.
type AppendStore struct {
	env      Env
	onAppend func(Scope, Record)
	now      func() string
}

// NewAppendStore wires an append store over env. onAppend may be nil.
func NewAppendStore(env Env, onAppend func(Scope, Record)) *AppendStore {
	return &AppendStore{env: env, onAppend: onAppend, now: storage.NowRFC3339}
}

func (s *AppendStore) notify(scope Scope, rec Record) {
	if s.onAppend == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			debug.Logf("on_append callback panicked, write already durable: %v", r)
		}
	}()
	s.onAppend(scope, rec)
}

// ClaimInput is the caller-facing shape of a claim append.
type ClaimInput struct {
	ClaimType      ClaimType
	Text           string
	Scope          Scope
	Visibility     Visibility
	ValidFrom      string
	ValidTo        string
	Tags           []string
	SourceEventIDs []string
	Confidence     float64
	Notes          string
}

// AppendClaim validates in, appends one claim record, and returns the new
// claim id. Unknown claim types coerce to fact and unknown visibilities to
// project; only empty text is an error.
func (s *AppendStore) AppendClaim(in ClaimInput) (string, error) {
	scope := NormalizeScope(in.Scope)
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", fmt.Errorf("claim: %w", ErrEmptyText)
	}
	if err := s.env.EnsureScopeDirs(scope); err != nil {
		return "", fmt.Errorf("claim: %w", err)
	}

	rec := &Claim{
		Kind:       KindClaim,
		Version:    Version,
		ClaimID:    NewClaimID(),
		ClaimType:  NormalizeClaimType(in.ClaimType),
		Text:       text,
		Visibility: NormalizeVisibility(in.Visibility),
		Scope:      scope,
		ProjectID:  s.env.ProjectID(scope),
		AssertedTS: s.now(),
		ValidFrom:  strings.TrimSpace(in.ValidFrom),
		ValidTo:    strings.TrimSpace(in.ValidTo),
		Tags:       cleanStrings(in.Tags, maxTags),
		SourceRefs: EvidenceRefs(in.SourceEventIDs, maxClaimSourceRefs),
		Confidence: in.Confidence,
		Notes:      strings.TrimSpace(in.Notes),
	}
	if err := storage.AppendJSONL(s.env.ClaimsPath(scope), rec); err != nil {
		return "", fmt.Errorf("claim: %w", err)
	}
	s.notify(scope, rec)
	return rec.ClaimID, nil
}

// RetractClaim appends a claim tombstone. The claim record itself is
// never removed.
func (s *AppendStore) RetractClaim(claimID string, scope Scope, rationale string, sourceEventIDs []string) error {
	sc := NormalizeScope(scope)
	id := strings.TrimSpace(claimID)
	if id == "" {
		return fmt.Errorf("claim_retract: %w", ErrEmptyID)
	}
	if err := s.env.EnsureScopeDirs(sc); err != nil {
		return fmt.Errorf("claim_retract: %w", err)
	}

	rec := &ClaimRetract{
		Kind:       KindClaimRetract,
		Version:    Version,
		TS:         s.now(),
		ClaimID:    id,
		Rationale:  strings.TrimSpace(rationale),
		SourceRefs: EvidenceRefs(sourceEventIDs, maxClaimSourceRefs),
	}
	if err := storage.AppendJSONL(s.env.ClaimsPath(sc), rec); err != nil {
		return fmt.Errorf("claim_retract: %w", err)
	}
	s.notify(sc, rec)
	return nil
}

// NodeInput is the caller-facing shape of a node append.
type NodeInput struct {
	NodeType       NodeType
	Title          string
	Text           string
	Scope          Scope
	Visibility     Visibility
	Tags           []string
	SourceEventIDs []string
	Confidence     float64
	Notes          string
}

// deriveTitle picks the first non-empty line of text, truncated with an
// ellipsis at the title cap. The cap counts runes so multibyte titles are
// never cut mid-character.
func deriveTitle(title, text string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		for _, line := range strings.Split(text, "\n") {
			if l := strings.TrimSpace(line); l != "" {
				t = l
				break
			}
		}
	}
	if utf8.RuneCountInString(t) > maxTitleLen {
		runes := []rune(t)
		t = string(runes[:maxTitleLen-3]) + "..."
	}
	return t
}

// AppendNode validates in, appends one node record, and returns the new
// node id. Unlike claims, an unknown node type is an error. Confidence is
// clamped to [0, 1] and the title is derived from the text when omitted.
func (s *AppendStore) AppendNode(in NodeInput) (string, error) {
	scope := NormalizeScope(in.Scope)
	if !ValidNodeType(NodeType(strings.TrimSpace(string(in.NodeType)))) {
		return "", fmt.Errorf("node: %w: %q", ErrInvalidNodeType, in.NodeType)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", fmt.Errorf("node: %w", ErrEmptyText)
	}
	if err := s.env.EnsureScopeDirs(scope); err != nil {
		return "", fmt.Errorf("node: %w", err)
	}

	rec := &Node{
		Kind:       KindNode,
		Version:    Version,
		NodeID:     NewNodeID(),
		NodeType:   NodeType(strings.TrimSpace(string(in.NodeType))),
		Title:      deriveTitle(in.Title, text),
		Text:       text,
		Visibility: NormalizeVisibility(in.Visibility),
		Scope:      scope,
		ProjectID:  s.env.ProjectID(scope),
		AssertedTS: s.now(),
		Tags:       cleanStrings(in.Tags, maxTags),
		SourceRefs: EvidenceRefs(in.SourceEventIDs, maxNodeSourceRefs),
		Confidence: clamp01(in.Confidence),
		Notes:      strings.TrimSpace(in.Notes),
	}
	if err := storage.AppendJSONL(s.env.NodesPath(scope), rec); err != nil {
		return "", fmt.Errorf("node: %w", err)
	}
	s.notify(scope, rec)
	return rec.NodeID, nil
}

// RetractNode appends a node tombstone.
func (s *AppendStore) RetractNode(nodeID string, scope Scope, rationale string, sourceEventIDs []string) error {
	sc := NormalizeScope(scope)
	id := strings.TrimSpace(nodeID)
	if id == "" {
		return fmt.Errorf("node_retract: %w", ErrEmptyID)
	}
	if err := s.env.EnsureScopeDirs(sc); err != nil {
		return fmt.Errorf("node_retract: %w", err)
	}

	rec := &NodeRetract{
		Kind:       KindNodeRetract,
		Version:    Version,
		TS:         s.now(),
		NodeID:     id,
		Rationale:  strings.TrimSpace(rationale),
		SourceRefs: EvidenceRefs(sourceEventIDs, maxNodeSourceRefs),
	}
	if err := storage.AppendJSONL(s.env.NodesPath(sc), rec); err != nil {
		return fmt.Errorf("node_retract: %w", err)
	}
	s.notify(sc, rec)
	return nil
}

// EdgeInput is the caller-facing shape of an edge append.
type EdgeInput struct {
	EdgeType       EdgeType
	FromID         string
	ToID           string
	Scope          Scope
	Visibility     Visibility
	SourceEventIDs []string
	Notes          string
}

// AppendEdge validates in, appends one edge record, and returns the new
// edge id. Edge types are validated strictly and both endpoints are
// required.
func (s *AppendStore) AppendEdge(in EdgeInput) (string, error) {
	scope := NormalizeScope(in.Scope)
	et := EdgeType(strings.TrimSpace(string(in.EdgeType)))
	if !ValidEdgeType(et) {
		return "", fmt.Errorf("edge: %w: %q", ErrInvalidEdgeType, in.EdgeType)
	}
	from := strings.TrimSpace(in.FromID)
	to := strings.TrimSpace(in.ToID)
	if from == "" || to == "" {
		return "", fmt.Errorf("edge: %w", ErrMissingEndpoint)
	}
	if err := s.env.EnsureScopeDirs(scope); err != nil {
		return "", fmt.Errorf("edge: %w", err)
	}

	rec := &Edge{
		Kind:       KindEdge,
		Version:    Version,
		EdgeID:     NewEdgeID(),
		EdgeType:   et,
		FromID:     from,
		ToID:       to,
		Visibility: NormalizeVisibility(in.Visibility),
		Scope:      scope,
		ProjectID:  s.env.ProjectID(scope),
		AssertedTS: s.now(),
		SourceRefs: EvidenceRefs(in.SourceEventIDs, maxEdgeSourceRefs),
		Notes:      strings.TrimSpace(in.Notes),
	}
	if err := storage.AppendJSONL(s.env.EdgesPath(scope), rec); err != nil {
		return "", fmt.Errorf("edge: %w", err)
	}
	s.notify(scope, rec)
	return rec.EdgeID, nil
}
