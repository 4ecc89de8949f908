package thoughtdb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Ingestion limits: per-batch claim cap ceiling and the edge multiplier.
const (
	maxMinedClaims    = 20
	maxMinedEdgesCap  = 40
	edgesPerClaimSlot = 6
	skipDetailLimit   = 200
)

// Skip reasons reported by ApplyMinedOutput. Every rejection is
// machine-readable so batch mining runs are auditable without replaying
// the ingestion logic.
const (
	SkipDuplicateLocalID = "duplicate_local_id"
	SkipDuplicateSig     = "duplicate_signature"
	SkipNoValidSourceIDs = "no_valid_source_event_ids"
	SkipMissingFields    = "missing_fields"
	SkipBelowConfidence  = "below_confidence"
	SkipUnresolvedRef    = "unresolved_ref"
	SkipCrossScope       = "cross_scope"
	SkipInvalidScope     = "invalid_scope"
	SkipDuplicateEdge    = "duplicate_edge"
	skipWriteErrorPrefix = "write_error:"
)

// MinedClaim is one loosely-structured claim candidate from a mining
// pass. LocalID is a caller-chosen handle other candidates reference.
type MinedClaim struct {
	LocalID        string   `json:"local_id"`
	ClaimType      string   `json:"claim_type"`
	Text           string   `json:"text"`
	Scope          string   `json:"scope"`
	Visibility     string   `json:"visibility"`
	ValidFrom      string   `json:"valid_from,omitempty"`
	ValidTo        string   `json:"valid_to,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	SourceEventIDs []string `json:"source_event_ids,omitempty"`
	Confidence     float64  `json:"confidence"`
	Notes          string   `json:"notes,omitempty"`
}

// MinedEdge is one edge candidate. Endpoint refs may be local ids from
// the same batch or existing claim ids.
type MinedEdge struct {
	EdgeType       string   `json:"edge_type"`
	FromClaimID    string   `json:"from_claim_id"`
	ToClaimID      string   `json:"to_claim_id"`
	SourceEventIDs []string `json:"source_event_ids,omitempty"`
	Confidence     float64  `json:"confidence"`
	Notes          string   `json:"notes,omitempty"`
}

// MinedOutput is a full mining batch.
type MinedOutput struct {
	Claims []MinedClaim `json:"claims"`
	Edges  []MinedEdge  `json:"edges"`
}

// WrittenClaim records a local id resolved to a claim id, either by a
// fresh append or by linking to an existing identical claim.
type WrittenClaim struct {
	LocalID string `json:"local_id"`
	ClaimID string `json:"claim_id"`
	Scope   Scope  `json:"scope"`
}

// WrittenEdge records one appended edge.
type WrittenEdge struct {
	EdgeID   string   `json:"edge_id"`
	Scope    Scope    `json:"scope"`
	EdgeType EdgeType `json:"edge_type"`
	FromID   string   `json:"from_id"`
	ToID     string   `json:"to_id"`
}

// Skipped is one audited rejection.
type Skipped struct {
	Kind   string `json:"kind"` // "claim" or "edge"
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// ApplyResult is the full audit of one ApplyMinedOutput call.
type ApplyResult struct {
	Written        []WrittenClaim `json:"written"`
	LinkedExisting []WrittenClaim `json:"linked_existing"`
	WrittenEdges   []WrittenEdge  `json:"written_edges"`
	Skipped        []Skipped      `json:"skipped"`
}

// ServiceStore composes the append and view stores into the business
// operation of ingesting mined output.
type ServiceStore struct {
	append    *AppendStore
	view      *ViewStore
	projectID func(Scope) string
}

// NewServiceStore wires a service store over the two lower stores.
func NewServiceStore(appendStore *AppendStore, viewStore *ViewStore, projectID func(Scope) string) *ServiceStore {
	return &ServiceStore{append: appendStore, view: viewStore, projectID: projectID}
}

// truncateDetail caps audit detail strings on a rune boundary.
func truncateDetail(s string) string {
	if utf8.RuneCountInString(s) <= skipDetailLimit {
		return s
	}
	return string([]rune(s)[:skipDetailLimit])
}

func writeErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyText):
		return skipWriteErrorPrefix + "empty_text"
	case errors.Is(err, ErrEmptyID):
		return skipWriteErrorPrefix + "empty_id"
	case errors.Is(err, ErrInvalidNodeType):
		return skipWriteErrorPrefix + "invalid_node_type"
	case errors.Is(err, ErrInvalidEdgeType):
		return skipWriteErrorPrefix + "invalid_edge_type"
	case errors.Is(err, ErrMissingEndpoint):
		return skipWriteErrorPrefix + "missing_endpoint"
	default:
		return skipWriteErrorPrefix + "io"
	}
}

// localRef is what an accepted local id resolved to.
type localRef struct {
	claimID    string
	scope      Scope
	visibility Visibility
}

// ApplyMinedOutput validates and appends a batch of mined claims and
// edges. Claims are filtered by confidence, preferred highest-confidence
// first, deduplicated against existing content signatures (a dedup hit
// links the local id to the existing claim without writing), and require
// at least one citation from allowedEventIDs. Edges resolve endpoint refs
// through the batch's local ids first and existing claim ids second, must
// stay within one scope, and are deduplicated by (type, from, to). All
// rejections are reported in Skipped; append failures are audited as
// write_error entries and never abort the batch.
func (s *ServiceStore) ApplyMinedOutput(output MinedOutput, allowedEventIDs map[string]struct{},
	minConfidence float64, maxClaims int) (*ApplyResult, error) {

	minConf := clamp01(minConfidence)
	maxN := maxClaims
	if maxN < 0 {
		maxN = 0
	}
	if maxN > maxMinedClaims {
		maxN = maxMinedClaims
	}
	res := &ApplyResult{
		Written:        []WrittenClaim{},
		LinkedExisting: []WrittenClaim{},
		WrittenEdges:   []WrittenEdge{},
		Skipped:        []Skipped{},
	}
	if maxN == 0 {
		return res, nil
	}

	sigToID := map[Scope]map[string]string{}
	for _, sc := range []Scope{ScopeProject, ScopeGlobal} {
		m, err := s.view.ExistingSignatureMap(sc)
		if err != nil {
			return nil, fmt.Errorf("loading %s signatures: %w", sc, err)
		}
		sigToID[sc] = m
	}

	// Filter, then prefer the highest-confidence candidates.
	candidates := make([]MinedClaim, 0, len(output.Claims))
	for _, raw := range output.Claims {
		if strings.TrimSpace(raw.LocalID) == "" || strings.TrimSpace(raw.Text) == "" {
			continue
		}
		if raw.Confidence < minConf {
			continue
		}
		candidates = append(candidates, raw)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > maxN {
		candidates = candidates[:maxN]
	}

	localRefs := map[string]localRef{}
	batchSigs := map[string]struct{}{}

	for _, raw := range candidates {
		localID := strings.TrimSpace(raw.LocalID)
		if _, dup := localRefs[localID]; dup {
			res.Skipped = append(res.Skipped, Skipped{Kind: "claim", Reason: SkipDuplicateLocalID, Detail: localID})
			continue
		}

		text := strings.TrimSpace(raw.Text)
		scope := NormalizeScope(Scope(raw.Scope))
		vis := raw.Visibility
		if strings.TrimSpace(vis) == "" && scope == ScopeGlobal {
			vis = string(VisibilityGlobal)
		}
		visibility := NormalizeVisibility(Visibility(vis))
		claimType := NormalizeClaimType(ClaimType(raw.ClaimType))

		// Dedup before the citation check: an already-known claim links
		// without requiring fresh evidence.
		sig := ClaimSignature(claimType, scope, s.projectID(scope), text)
		if existingID, ok := sigToID[scope][sig]; ok {
			// The local id still resolves so edges in this batch keep
			// working; a repeat within the batch is audited as a dup
			// instead of a second link.
			localRefs[localID] = localRef{claimID: existingID, scope: scope, visibility: visibility}
			if _, inBatch := batchSigs[sig]; inBatch {
				res.Skipped = append(res.Skipped, Skipped{Kind: "claim", Reason: SkipDuplicateSig, Detail: truncateDetail(text)})
			} else {
				res.LinkedExisting = append(res.LinkedExisting, WrittenClaim{LocalID: localID, ClaimID: existingID, Scope: scope})
			}
			continue
		}

		eventIDs := allowedOnly(raw.SourceEventIDs, allowedEventIDs)
		if len(eventIDs) == 0 {
			res.Skipped = append(res.Skipped, Skipped{Kind: "claim", Reason: SkipNoValidSourceIDs, Detail: truncateDetail(text)})
			continue
		}

		cid, err := s.append.AppendClaim(ClaimInput{
			ClaimType:      claimType,
			Text:           text,
			Scope:          scope,
			Visibility:     visibility,
			ValidFrom:      raw.ValidFrom,
			ValidTo:        raw.ValidTo,
			Tags:           raw.Tags,
			SourceEventIDs: eventIDs,
			Confidence:     raw.Confidence,
			Notes:          raw.Notes,
		})
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Kind: "claim", Reason: writeErrorReason(err), Detail: truncateDetail(text)})
			continue
		}

		sigToID[scope][sig] = cid
		batchSigs[sig] = struct{}{}
		localRefs[localID] = localRef{claimID: cid, scope: scope, visibility: visibility}
		res.Written = append(res.Written, WrittenClaim{LocalID: localID, ClaimID: cid, Scope: scope})
	}

	if err := s.applyMinedEdges(output.Edges, allowedEventIDs, minConf, maxN, localRefs, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ServiceStore) applyMinedEdges(edges []MinedEdge, allowedEventIDs map[string]struct{},
	minConf float64, maxN int, localRefs map[string]localRef, res *ApplyResult) error {

	edgeKeys := map[Scope]map[string]struct{}{}
	views := map[Scope]*View{}
	for _, sc := range []Scope{ScopeProject, ScopeGlobal} {
		keys, err := s.view.ExistingEdgeKeys(sc)
		if err != nil {
			return fmt.Errorf("loading %s edge keys: %w", sc, err)
		}
		edgeKeys[sc] = keys
		v, err := s.view.LoadView(sc)
		if err != nil {
			return fmt.Errorf("loading %s view: %w", sc, err)
		}
		views[sc] = v
	}

	resolve := func(ref string) (Scope, string, Visibility) {
		r := strings.TrimSpace(ref)
		if r == "" {
			return "", "", ""
		}
		if lr, ok := localRefs[r]; ok {
			return lr.scope, lr.claimID, lr.visibility
		}
		for _, sc := range []Scope{ScopeProject, ScopeGlobal} {
			if c, ok := views[sc].ClaimsByID[r]; ok {
				return sc, r, c.Visibility
			}
		}
		return "", "", ""
	}

	// Cap candidate edges to keep mined graphs from getting noisy.
	maxEdges := maxN * edgesPerClaimSlot
	if maxEdges > maxMinedEdgesCap {
		maxEdges = maxMinedEdgesCap
	}
	if len(edges) > maxEdges {
		edges = edges[:maxEdges]
	}

	for _, raw := range edges {
		et := EdgeType(strings.TrimSpace(raw.EdgeType))
		fromRef := strings.TrimSpace(raw.FromClaimID)
		toRef := strings.TrimSpace(raw.ToClaimID)
		detail := fmt.Sprintf("%s:%s->%s", et, fromRef, toRef)
		if et == "" || fromRef == "" || toRef == "" {
			res.Skipped = append(res.Skipped, Skipped{Kind: "edge", Reason: SkipMissingFields, Detail: truncateDetail(detail)})
			continue
		}
		if raw.Confidence < minConf {
			res.Skipped = append(res.Skipped, Skipped{Kind: "edge", Reason: SkipBelowConfidence, Detail: truncateDetail(detail)})
			continue
		}

		fromScope, fromID, fromVis := resolve(fromRef)
		toScope, toID, toVis := resolve(toRef)
		if fromID == "" || toID == "" {
			res.Skipped = append(res.Skipped, Skipped{Kind: "edge", Reason: SkipUnresolvedRef, Detail: truncateDetail(detail)})
			continue
		}
		if fromScope != toScope {
			res.Skipped = append(res.Skipped, Skipped{
				Kind:   "edge",
				Reason: SkipCrossScope,
				Detail: truncateDetail(fmt.Sprintf("%s:%s(%s)->%s(%s)", et, fromID, fromScope, toID, toScope)),
			})
			continue
		}
		scope := fromScope
		if scope != ScopeProject && scope != ScopeGlobal {
			res.Skipped = append(res.Skipped, Skipped{Kind: "edge", Reason: SkipInvalidScope, Detail: string(scope)})
			continue
		}

		eventIDs := allowedOnly(raw.SourceEventIDs, allowedEventIDs)
		if len(eventIDs) == 0 {
			res.Skipped = append(res.Skipped, Skipped{
				Kind:   "edge",
				Reason: SkipNoValidSourceIDs,
				Detail: truncateDetail(fmt.Sprintf("%s:%s->%s", et, fromID, toID)),
			})
			continue
		}

		key := EdgeKey(et, fromID, toID)
		if _, dup := edgeKeys[scope][key]; dup {
			res.Skipped = append(res.Skipped, Skipped{Kind: "edge", Reason: SkipDuplicateEdge, Detail: truncateDetail(key)})
			continue
		}

		eid, err := s.append.AppendEdge(EdgeInput{
			EdgeType:       et,
			FromID:         fromID,
			ToID:           toID,
			Scope:          scope,
			Visibility:     MinVisibility(fromVis, toVis),
			SourceEventIDs: eventIDs,
			Notes:          raw.Notes,
		})
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Kind: "edge", Reason: writeErrorReason(err), Detail: truncateDetail(key)})
			continue
		}

		edgeKeys[scope][key] = struct{}{}
		res.WrittenEdges = append(res.WrittenEdges, WrittenEdge{
			EdgeID: eid, Scope: scope, EdgeType: et, FromID: fromID, ToID: toID,
		})
	}
	return nil
}

func allowedOnly(eventIDs []string, allowed map[string]struct{}) []string {
	out := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
