package thoughtdb

import "testing"

func TestClaimActiveAndValidWindow(t *testing.T) {
	_, as, vs := newTestStores(t)

	id, err := as.AppendClaim(ClaimInput{
		Text:      "office is closed in august",
		ValidFrom: "2026-08-01T00:00:00Z",
		ValidTo:   "2026-09-01T00:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	v, err := vs.LoadView(ScopeProject)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		asOf string
		want bool
	}{
		{"before window", "2026-07-31T23:59:59Z", false},
		{"window start inclusive", "2026-08-01T00:00:00Z", true},
		{"inside window", "2026-08-15T12:00:00Z", true},
		{"window end exclusive", "2026-09-01T00:00:00Z", false},
		{"after window", "2026-10-01T00:00:00Z", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClaimActiveAndValid(v, id, tt.asOf); got != tt.want {
				t.Errorf("ClaimActiveAndValid(%s) = %v, want %v", tt.asOf, got, tt.want)
			}
		})
	}
}

func TestClaimActiveAndValidOpenEndedWindow(t *testing.T) {
	_, as, vs := newTestStores(t)

	id, err := as.AppendClaim(ClaimInput{Text: "no window set"})
	if err != nil {
		t.Fatal(err)
	}
	v, err := vs.LoadView(ScopeProject)
	if err != nil {
		t.Fatal(err)
	}
	if !ClaimActiveAndValid(v, id, "1990-01-01T00:00:00Z") {
		t.Error("claim without a window should be valid at any instant")
	}
	if !ClaimActiveAndValid(v, id, "2099-01-01T00:00:00Z") {
		t.Error("claim without a window should be valid at any instant")
	}
}

func TestClaimActiveAndValidRejectsInactive(t *testing.T) {
	_, as, vs := newTestStores(t)

	retracted, _ := as.AppendClaim(ClaimInput{Text: "to retract"})
	if err := as.RetractClaim(retracted, ScopeProject, "", nil); err != nil {
		t.Fatal(err)
	}

	old, _ := as.AppendClaim(ClaimInput{Text: "old version"})
	neu, _ := as.AppendClaim(ClaimInput{Text: "new version"})
	if _, err := as.AppendEdge(EdgeInput{EdgeType: EdgeSupersedes, FromID: old, ToID: neu}); err != nil {
		t.Fatal(err)
	}

	alias, _ := as.AppendClaim(ClaimInput{Text: "alias of new"})
	if _, err := as.AppendEdge(EdgeInput{EdgeType: EdgeSameAs, FromID: alias, ToID: neu}); err != nil {
		t.Fatal(err)
	}

	v, err := vs.LoadView(ScopeProject)
	if err != nil {
		t.Fatal(err)
	}

	now := timestampAt(100)
	if ClaimActiveAndValid(v, retracted, now) {
		t.Error("retracted claim reported valid")
	}
	if ClaimActiveAndValid(v, old, now) {
		t.Error("superseded claim reported valid")
	}
	if ClaimActiveAndValid(v, alias, now) {
		t.Error("alias claim served directly")
	}
	if !ClaimActiveAndValid(v, neu, now) {
		t.Error("active claim reported invalid")
	}
	if ClaimActiveAndValid(v, "cl_missing", now) {
		t.Error("unknown id reported valid")
	}
	if ClaimActiveAndValid(v, "  ", now) {
		t.Error("blank id reported valid")
	}
}

func TestNodeActive(t *testing.T) {
	_, as, vs := newTestStores(t)

	live, _ := as.AppendNode(NodeInput{NodeType: NodeDecision, Text: "keep it"})
	dead, _ := as.AppendNode(NodeInput{NodeType: NodeDecision, Text: "drop it"})
	if err := as.RetractNode(dead, ScopeProject, "obsolete", nil); err != nil {
		t.Fatal(err)
	}
	aliased, _ := as.AppendNode(NodeInput{NodeType: NodeSummary, Text: "dup summary"})
	if _, err := as.AppendEdge(EdgeInput{EdgeType: EdgeSameAs, FromID: aliased, ToID: live}); err != nil {
		t.Fatal(err)
	}

	v, err := vs.LoadView(ScopeProject)
	if err != nil {
		t.Fatal(err)
	}
	if !NodeActive(v, live) {
		t.Error("live node reported inactive")
	}
	if NodeActive(v, dead) {
		t.Error("retracted node reported active")
	}
	if NodeActive(v, aliased) {
		t.Error("aliased node served directly")
	}
	if NodeActive(v, "nd_missing") {
		t.Error("unknown node reported active")
	}
}

func TestEdgesAdjacentOutgoingThenIncoming(t *testing.T) {
	_, as, vs := newTestStores(t)

	a, _ := as.AppendClaim(ClaimInput{Text: "hub"})
	b, _ := as.AppendClaim(ClaimInput{Text: "spoke one"})
	c, _ := as.AppendClaim(ClaimInput{Text: "spoke two"})

	if _, err := as.AppendEdge(EdgeInput{EdgeType: EdgeSupports, FromID: a, ToID: b}); err != nil {
		t.Fatal(err)
	}
	if _, err := as.AppendEdge(EdgeInput{EdgeType: EdgeContradicts, FromID: c, ToID: a}); err != nil {
		t.Fatal(err)
	}

	v, err := vs.LoadView(ScopeProject)
	if err != nil {
		t.Fatal(err)
	}
	adj := EdgesAdjacent(v, a)
	if len(adj) != 2 {
		t.Fatalf("EdgesAdjacent() returned %d edges, want 2", len(adj))
	}
	if adj[0].FromID != a || adj[0].EdgeType != EdgeSupports {
		t.Errorf("first adjacent edge = %s %s→%s, want outgoing supports", adj[0].EdgeType, adj[0].FromID, adj[0].ToID)
	}
	if adj[1].ToID != a || adj[1].EdgeType != EdgeContradicts {
		t.Errorf("second adjacent edge = %s %s→%s, want incoming contradicts", adj[1].EdgeType, adj[1].FromID, adj[1].ToID)
	}

	if got := EdgesAdjacent(v, ""); got != nil {
		t.Errorf("EdgesAdjacent(blank) = %v, want nil", got)
	}
}
