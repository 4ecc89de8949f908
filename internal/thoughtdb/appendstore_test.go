package thoughtdb

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mitool/mi/internal/storage"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	n := 0
	if err := storage.IterJSONL(path, func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("counting lines in %s: %v", path, err)
	}
	return n
}

func TestAppendClaimWritesOneLine(t *testing.T) {
	env, as, _ := newTestStores(t)

	id, err := as.AppendClaim(ClaimInput{
		ClaimType:      ClaimPreference,
		Text:           "  Use table tests  ",
		Scope:          ScopeProject,
		Visibility:     "bogus",
		Tags:           []string{" style ", ""},
		SourceEventIDs: []string{"ev1"},
		Confidence:     0.8,
	})
	if err != nil {
		t.Fatalf("AppendClaim() failed: %v", err)
	}
	if !strings.HasPrefix(id, "cl_") {
		t.Errorf("claim id = %q", id)
	}
	if n := countLines(t, env.ClaimsPath(ScopeProject)); n != 1 {
		t.Errorf("claims log has %d lines, want 1", n)
	}

	var rec Record
	err = storage.IterJSONL(env.ClaimsPath(ScopeProject), func(line []byte) error {
		var derr error
		rec, derr = DecodeRecord(line)
		return derr
	})
	if err != nil {
		t.Fatal(err)
	}
	c, ok := rec.(*Claim)
	if !ok {
		t.Fatalf("decoded record is %T", rec)
	}
	if c.Text != "Use table tests" {
		t.Errorf("text = %q, want trimmed", c.Text)
	}
	if c.Visibility != VisibilityProject {
		t.Errorf("visibility = %q, want coerced to project", c.Visibility)
	}
	if c.ProjectID != testProjectID {
		t.Errorf("project_id = %q, want %q", c.ProjectID, testProjectID)
	}
	if c.Version != Version || c.Kind != KindClaim {
		t.Errorf("kind/version = %s/%s", c.Kind, c.Version)
	}
	if len(c.Tags) != 1 || c.Tags[0] != "style" {
		t.Errorf("tags = %v", c.Tags)
	}
}

func TestAppendClaimEmptyText(t *testing.T) {
	_, as, _ := newTestStores(t)
	if _, err := as.AppendClaim(ClaimInput{Text: "   "}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("AppendClaim(blank) error = %v, want ErrEmptyText", err)
	}
}

func TestAppendClaimCapsTagsAndRefs(t *testing.T) {
	env, as, _ := newTestStores(t)

	tags := make([]string, 30)
	events := make([]string, 12)
	for i := range tags {
		tags[i] = "t" + strings.Repeat("x", i+1)
	}
	for i := range events {
		events[i] = "ev" + strings.Repeat("y", i+1)
	}

	_, err := as.AppendClaim(ClaimInput{Text: "capped", Tags: tags, SourceEventIDs: events})
	if err != nil {
		t.Fatal(err)
	}

	var c *Claim
	_ = storage.IterJSONL(env.ClaimsPath(ScopeProject), func(line []byte) error {
		rec, err := DecodeRecord(line)
		if err != nil {
			return err
		}
		c = rec.(*Claim)
		return nil
	})
	if len(c.Tags) != 20 {
		t.Errorf("tags capped at %d, want 20", len(c.Tags))
	}
	if len(c.SourceRefs) != 8 {
		t.Errorf("source refs capped at %d, want 8", len(c.SourceRefs))
	}
}

func TestRetractClaimRequiresID(t *testing.T) {
	_, as, _ := newTestStores(t)
	if err := as.RetractClaim("  ", ScopeProject, "", nil); !errors.Is(err, ErrEmptyID) {
		t.Errorf("RetractClaim(blank) error = %v, want ErrEmptyID", err)
	}
}

func TestRetractAppendsTombstone(t *testing.T) {
	env, as, _ := newTestStores(t)

	id, err := as.AppendClaim(ClaimInput{Text: "to retract"})
	if err != nil {
		t.Fatal(err)
	}
	if err := as.RetractClaim(id, ScopeProject, "outdated", []string{"ev9"}); err != nil {
		t.Fatalf("RetractClaim() failed: %v", err)
	}

	// Retraction appends; it never rewrites the log.
	if n := countLines(t, env.ClaimsPath(ScopeProject)); n != 2 {
		t.Errorf("claims log has %d lines after retract, want 2", n)
	}
}

func TestAppendNodeStrictTypeAndTitle(t *testing.T) {
	env, as, _ := newTestStores(t)

	if _, err := as.AppendNode(NodeInput{NodeType: "note", Text: "x"}); !errors.Is(err, ErrInvalidNodeType) {
		t.Errorf("AppendNode(note) error = %v, want ErrInvalidNodeType", err)
	}

	id, err := as.AppendNode(NodeInput{
		NodeType:   NodeDecision,
		Text:       "\n\nPin the schema version\nLonger body follows.",
		Confidence: 1.7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "nd_") {
		t.Errorf("node id = %q", id)
	}

	var n *Node
	_ = storage.IterJSONL(env.NodesPath(ScopeProject), func(line []byte) error {
		rec, err := DecodeRecord(line)
		if err != nil {
			return err
		}
		n = rec.(*Node)
		return nil
	})
	if n.Title != "Pin the schema version" {
		t.Errorf("derived title = %q", n.Title)
	}
	if n.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", n.Confidence)
	}
}

func TestDeriveTitleTruncates(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := deriveTitle("", long)
	if len(got) != 140 {
		t.Errorf("len(title) = %d, want 140", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("title %q missing ellipsis", got)
	}
}

func TestDeriveTitleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("日", 200)
	got := deriveTitle("", long)
	if !utf8.ValidString(got) {
		t.Fatalf("title is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 140 {
		t.Errorf("rune count = %d, want 140", n)
	}
	if !strings.HasSuffix(got, "日...") {
		t.Errorf("title %q cut mid-character", got)
	}

	exact := strings.Repeat("é", 140)
	if got := deriveTitle(exact, ""); got != exact {
		t.Errorf("title at the cap was truncated: %q", got)
	}
}

func TestAppendEdgeValidation(t *testing.T) {
	_, as, _ := newTestStores(t)

	if _, err := as.AppendEdge(EdgeInput{EdgeType: "relates_to", FromID: "a", ToID: "b"}); !errors.Is(err, ErrInvalidEdgeType) {
		t.Errorf("invalid type error = %v", err)
	}
	if _, err := as.AppendEdge(EdgeInput{EdgeType: EdgeSupports, FromID: "a"}); !errors.Is(err, ErrMissingEndpoint) {
		t.Errorf("missing endpoint error = %v", err)
	}

	id, err := as.AppendEdge(EdgeInput{EdgeType: EdgeSupports, FromID: "cl_a", ToID: "cl_b"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "ed_") {
		t.Errorf("edge id = %q", id)
	}
}

func TestGlobalScopeHasEmptyProjectID(t *testing.T) {
	env, as, _ := newTestStores(t)

	if _, err := as.AppendClaim(ClaimInput{Text: "global claim", Scope: ScopeGlobal}); err != nil {
		t.Fatal(err)
	}
	var c *Claim
	_ = storage.IterJSONL(env.ClaimsPath(ScopeGlobal), func(line []byte) error {
		rec, err := DecodeRecord(line)
		if err != nil {
			return err
		}
		c = rec.(*Claim)
		return nil
	})
	if c.ProjectID != "" {
		t.Errorf("global claim project_id = %q, want empty", c.ProjectID)
	}
}

func TestNotifyPanicDoesNotBreakWrite(t *testing.T) {
	env := newTestEnv(t)
	as := NewAppendStore(env, func(Scope, Record) { panic("boom") })

	id, err := as.AppendClaim(ClaimInput{Text: "durable despite panic"})
	if err != nil {
		t.Fatalf("AppendClaim() failed: %v", err)
	}
	if id == "" {
		t.Error("empty claim id")
	}
	if n := countLines(t, env.ClaimsPath(ScopeProject)); n != 1 {
		t.Errorf("claims log has %d lines, want 1", n)
	}
}
