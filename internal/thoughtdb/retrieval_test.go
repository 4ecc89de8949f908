package thoughtdb

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mitool/mi/internal/memory"
)

type fakeSearcher struct {
	items   []memory.Item
	err     error
	lastQ   memory.Query
	queried bool
}

func (f *fakeSearcher) Search(q memory.Query) ([]memory.Item, error) {
	f.lastQ = q
	f.queried = true
	return f.items, f.err
}

func claimItem(scope, projectID, claimID string) memory.Item {
	return memory.Item{
		Kind: "claim", Scope: scope, ProjectID: projectID,
		SourceRefs: []memory.SourceRef{{Kind: memory.RefThoughtDBClaim, ClaimID: claimID}},
	}
}

func nodeItem(scope, projectID, nodeID string) memory.Item {
	return memory.Item{
		Kind: "node", Scope: scope, ProjectID: projectID,
		SourceRefs: []memory.SourceRef{{Kind: memory.RefThoughtDBNode, NodeID: nodeID}},
	}
}

func TestSeedIDsFromMemoryEmptyQuery(t *testing.T) {
	f := &fakeSearcher{}
	got := SeedIDsFromMemory(f, "   ", "p1", 50)
	if got.Notes != "skipped: empty query" {
		t.Errorf("Notes = %q", got.Notes)
	}
	if f.queried {
		t.Error("empty query still hit the index")
	}
}

func TestSeedIDsFromMemoryPartitionsAndDedupes(t *testing.T) {
	f := &fakeSearcher{items: []memory.Item{
		claimItem("project", "p1", "cl_a"),
		claimItem("project", "p1", "cl_a"), // duplicate hit
		claimItem("global", "", "cl_g"),
		nodeItem("project", "p1", "nd_a"),
		nodeItem("global", "", "nd_g"),
		claimItem("project", "p2", "cl_other"), // other project: dropped
		// no graph ref
		{Kind: "claim", Scope: "project", ProjectID: "p1"},
	}}

	got := SeedIDsFromMemory(f, "auth flow", "p1", 50)

	want := SeedIDs{
		ProjectClaimIDs: []string{"cl_a"},
		GlobalClaimIDs:  []string{"cl_g"},
		ProjectNodeIDs:  []string{"nd_a"},
		GlobalNodeIDs:   []string{"nd_g"},
		Notes:           got.Notes,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SeedIDsFromMemory() mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(got.Notes, "dropped_other=1") {
		t.Errorf("Notes = %q, want dropped_other=1", got.Notes)
	}
	if f.lastQ.TopK != 50 || !f.lastQ.IncludeGlobal {
		t.Errorf("query = %+v", f.lastQ)
	}
}

func TestSeedIDsFromMemoryClampsCandidateK(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 50},
		{1, 5},
		{75, 75},
		{1000, 200},
	}
	for _, tt := range tests {
		f := &fakeSearcher{}
		SeedIDsFromMemory(f, "q", "p1", tt.in)
		if f.lastQ.TopK != tt.want {
			t.Errorf("candidateK=%d: TopK = %d, want %d", tt.in, f.lastQ.TopK, tt.want)
		}
	}
}

func TestSeedIDsFromMemorySearchErrorIsSoft(t *testing.T) {
	f := &fakeSearcher{err: errors.New("index offline")}
	got := SeedIDsFromMemory(f, "anything", "p1", 50)
	if len(got.ProjectClaimIDs)+len(got.GlobalClaimIDs)+len(got.ProjectNodeIDs)+len(got.GlobalNodeIDs) != 0 {
		t.Errorf("seeds after search error = %+v", got)
	}
	if !strings.Contains(got.Notes, "items=0") {
		t.Errorf("Notes = %q", got.Notes)
	}
}

// expandFixture builds a small project graph around one seed claim: the
// seed supports an active claim and mentions a node, with inactive and
// alias neighbors that must never be admitted.
func expandFixture(t *testing.T) (vProj, vGlob *View, seed string, ids map[string]string) {
	t.Helper()
	env, as, vs := newTestStores(t)

	ids = map[string]string{}
	seed, _ = as.AppendClaim(ClaimInput{Text: "seed claim"})
	ids["active"], _ = as.AppendClaim(ClaimInput{Text: "supported neighbor"})
	ids["retracted"], _ = as.AppendClaim(ClaimInput{Text: "retracted neighbor"})
	ids["node"], _ = as.AppendNode(NodeInput{NodeType: NodeSummary, Text: "neighbor node"})

	mustEdge(t, as, EdgeInput{EdgeType: EdgeSupports, FromID: seed, ToID: ids["active"]})
	mustEdge(t, as, EdgeInput{EdgeType: EdgeContradicts, FromID: ids["retracted"], ToID: seed})
	mustEdge(t, as, EdgeInput{EdgeType: EdgeMentions, FromID: ids["node"], ToID: seed})
	if err := as.RetractClaim(ids["retracted"], ScopeProject, "", nil); err != nil {
		t.Fatal(err)
	}

	gas := NewAppendStore(env, nil)
	ids["global"], _ = gas.AppendClaim(ClaimInput{Scope: ScopeGlobal, Text: "global neighbor"})
	mustEdge(t, gas, EdgeInput{Scope: ScopeGlobal, EdgeType: EdgeDerivedFrom, FromID: seed, ToID: ids["global"]})

	var err error
	if vProj, err = vs.LoadView(ScopeProject); err != nil {
		t.Fatal(err)
	}
	if vGlob, err = vs.LoadView(ScopeGlobal); err != nil {
		t.Fatal(err)
	}
	return vProj, vGlob, seed, ids
}

func mustEdge(t *testing.T, as *AppendStore, in EdgeInput) {
	t.Helper()
	if _, err := as.AppendEdge(in); err != nil {
		t.Fatal(err)
	}
}

func TestExpandOneHopAdmitsActiveNeighbors(t *testing.T) {
	vProj, vGlob, seed, ids := expandFixture(t)

	got := ExpandOneHop(vProj, vGlob, map[string]struct{}{seed: {}},
		timestampAt(100), 8, 4, nil)

	wantClaims := []string{ids["active"], ids["global"]}
	if diff := cmp.Diff(wantClaims, got.ClaimIDs); diff != "" {
		t.Errorf("ClaimIDs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{ids["node"]}, got.NodeIDs); diff != "" {
		t.Errorf("NodeIDs (-want +got):\n%s", diff)
	}
	for _, cid := range got.ClaimIDs {
		if cid == ids["retracted"] {
			t.Error("retracted neighbor admitted")
		}
	}
}

func TestExpandOneHopProjectBeforeGlobal(t *testing.T) {
	vProj, vGlob, seed, ids := expandFixture(t)

	// Claim budget of one: the project-scope neighbor must win.
	got := ExpandOneHop(vProj, vGlob, map[string]struct{}{seed: {}},
		timestampAt(100), 1, 0, nil)
	if len(got.ClaimIDs) != 1 || got.ClaimIDs[0] != ids["active"] {
		t.Errorf("ClaimIDs = %v, want [%s]", got.ClaimIDs, ids["active"])
	}
	if len(got.NodeIDs) != 0 {
		t.Errorf("NodeIDs = %v, want none with zero budget", got.NodeIDs)
	}
}

func TestExpandOneHopEdgeTypeFilter(t *testing.T) {
	vProj, vGlob, seed, ids := expandFixture(t)

	got := ExpandOneHop(vProj, vGlob, map[string]struct{}{seed: {}},
		timestampAt(100), 8, 4, map[EdgeType]struct{}{EdgeMentions: {}})
	if len(got.ClaimIDs) != 0 {
		t.Errorf("ClaimIDs = %v, want none through mentions-only filter", got.ClaimIDs)
	}
	if diff := cmp.Diff([]string{ids["node"]}, got.NodeIDs); diff != "" {
		t.Errorf("NodeIDs (-want +got):\n%s", diff)
	}
}

func TestExpandOneHopExcludesSeeds(t *testing.T) {
	vProj, vGlob, seed, ids := expandFixture(t)

	seeds := map[string]struct{}{seed: {}, ids["active"]: {}}
	got := ExpandOneHop(vProj, vGlob, seeds, timestampAt(100), 8, 4, nil)
	for _, cid := range got.ClaimIDs {
		if _, isSeed := seeds[cid]; isSeed {
			t.Errorf("seed %s returned as expansion", cid)
		}
	}
}

func TestExpandOneHopNoSeedsNoBudget(t *testing.T) {
	vProj, vGlob, seed, _ := expandFixture(t)

	if got := ExpandOneHop(vProj, vGlob, nil, timestampAt(100), 8, 4, nil); got.Notes != "expand_one_hop: skipped (no seeds)" {
		t.Errorf("Notes = %q", got.Notes)
	}
	got := ExpandOneHop(vProj, vGlob, map[string]struct{}{seed: {}}, timestampAt(100), 0, 0, nil)
	if got.Notes != "expand_one_hop: skipped (no budget)" {
		t.Errorf("Notes = %q", got.Notes)
	}
}
