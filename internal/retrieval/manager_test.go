package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/llm/llmtest"
	"github.com/bowerhall/conductor/internal/memory"
	"github.com/bowerhall/conductor/internal/sqlitedb"
	"github.com/bowerhall/conductor/internal/vector"
)

// topicEmbedder puts a few fixed topics on separate axes.
type topicEmbedder struct{}

func (topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	vec := []float32{0.01, 0.01}
	if strings.Contains(text, "database") || strings.Contains(text, "postgres") {
		vec[0] = 1
	}
	if strings.Contains(text, "css") {
		vec[1] = 1
	}
	return vec, nil
}

func newManager(t *testing.T, withVectors bool, opts Options) (*Manager, *memory.Store) {
	t.Helper()

	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := memory.New(db)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}

	var ix *vector.Index
	if withVectors {
		ix, err = vector.New(context.Background(), db, topicEmbedder{})
		if err != nil {
			t.Fatalf("vector index: %v", err)
		}
	}

	return NewManager(store, ix, opts), store
}

func TestCaptureDefaultsSession(t *testing.T) {
	m, store := newManager(t, false, Options{})
	ctx := context.Background()

	id, err := m.Capture(ctx, memory.Observation{Type: memory.TypeDecision, Content: "use postgres"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionID != memory.DefaultSessionID {
		t.Errorf("session = %q, want %q", got.SessionID, memory.DefaultSessionID)
	}
}

func TestCaptureAutoSummarizes(t *testing.T) {
	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{llmtest.Text("Chose Postgres for storage.", 10, 5)}}
	m, store := newManager(t, true, Options{Summarizer: NewSummarizer(fake), AutoSummarize: true})
	ctx := context.Background()

	id, err := m.Capture(ctx, memory.Observation{Type: memory.TypeDecision, ToolName: "write_file", Content: "use postgres"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	got, _ := store.Get(ctx, id)
	if got.Summary != "Chose Postgres for storage." {
		t.Errorf("summary = %q", got.Summary)
	}

	prompt := fake.Requests[0].Messages[0].Content
	if !strings.Contains(prompt, "Summarize this decision observation") || !strings.Contains(prompt, "Tool: write_file") {
		t.Errorf("unexpected prompt: %q", prompt)
	}

	hits, _ := m.Search(ctx, "database", 5, ModeSemantic)
	if len(hits) != 1 || !strings.HasPrefix(hits[0].Content, "Chose Postgres for storage. | decision: ") {
		t.Errorf("vector text = %+v", hits)
	}
}

func TestCaptureSurvivesSummarizerFailure(t *testing.T) {
	fake := &llmtest.Fake{Err: errors.New("offline")}
	m, store := newManager(t, false, Options{Summarizer: NewSummarizer(fake), AutoSummarize: true})
	ctx := context.Background()

	id, err := m.Capture(ctx, memory.Observation{Type: memory.TypeToolUse, Content: "ran tests"})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	got, _ := store.Get(ctx, id)
	if got.Summary != "" {
		t.Errorf("summary = %q, want empty", got.Summary)
	}
}

func TestSearchModes(t *testing.T) {
	m, _ := newManager(t, true, Options{})
	ctx := context.Background()

	m.Capture(ctx, memory.Observation{Type: memory.TypeDecision, Content: "store users in the database"})
	m.Capture(ctx, memory.Observation{Type: memory.TypeToolUse, Content: "tweak css for the header"})

	kw, err := m.Search(ctx, "database", 5, ModeKeyword)
	if err != nil || len(kw) != 1 || kw[0].Source != SourceKeyword {
		t.Fatalf("keyword = %+v, %v", kw, err)
	}

	sem, err := m.Search(ctx, "postgres", 5, ModeSemantic)
	if err != nil || len(sem) == 0 || sem[0].Type != memory.TypeDecision {
		t.Fatalf("semantic = %+v, %v", sem, err)
	}

	hyb, err := m.Search(ctx, "database", 5, ModeHybrid)
	if err != nil || len(hyb) == 0 {
		t.Fatalf("hybrid = %+v, %v", hyb, err)
	}
	if hyb[0].DocID != kw[0].DocID || hyb[0].Source != SourceHybrid {
		t.Errorf("hybrid top = %+v, want doc %s found by both", hyb[0], kw[0].DocID)
	}

	if _, err := m.Search(ctx, "x", 5, "fuzzy"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestSemanticSearchWithoutIndex(t *testing.T) {
	m, _ := newManager(t, false, Options{})

	results, err := m.Search(context.Background(), "anything", 5, ModeSemantic)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want none", len(results))
	}
}

func TestSessionSummary(t *testing.T) {
	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{llmtest.Text("Refactored the parser.", 10, 5)}}
	m, _ := newManager(t, false, Options{Summarizer: NewSummarizer(fake)})
	ctx := context.Background()

	empty, err := m.SessionSummary(ctx, "s1")
	if err != nil || empty != "No observations in session" {
		t.Fatalf("empty summary = %q, %v", empty, err)
	}

	m.Capture(ctx, memory.Observation{SessionID: "s1", Type: memory.TypeToolUse, Content: "edit parser.go"})
	m.Capture(ctx, memory.Observation{SessionID: "s1", Type: memory.TypeDecision, Content: "split lexer"})

	summary, err := m.SessionSummary(ctx, "s1")
	if err != nil || summary != "Refactored the parser." {
		t.Fatalf("summary = %q, %v", summary, err)
	}

	prompt := fake.Requests[0].Messages[0].Content
	for _, want := range []string{"Session had 2 total observations:", "- 1 tool uses", "- 1 decisions", "1. [tool_use] edit parser.go"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSessionSummaryFallback(t *testing.T) {
	fake := &llmtest.Fake{Err: errors.New("offline")}
	m, _ := newManager(t, false, Options{Summarizer: NewSummarizer(fake)})
	ctx := context.Background()

	m.Capture(ctx, memory.Observation{SessionID: "s2", Type: memory.TypeToolUse, Content: "x"})

	summary, err := m.SessionSummary(ctx, "s2")
	if err == nil {
		t.Error("expected degraded error")
	}
	if summary != "Session with 1 observations. Summarization unavailable." {
		t.Errorf("summary = %q", summary)
	}
}

func TestBackfillSummaries(t *testing.T) {
	fake := &llmtest.Fake{Handler: func(req llm.Request) (*llm.ChatResponse, error) {
		return llmtest.Text("short summary", 1, 1), nil
	}}
	m, store := newManager(t, false, Options{Summarizer: NewSummarizer(fake)})
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		m.Capture(ctx, memory.Observation{Type: memory.TypeToolUse, Content: c})
	}

	n, err := m.BackfillSummaries(ctx, 10)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if n != 3 {
		t.Errorf("updated %d, want 3", n)
	}

	pending, _ := store.Unsummarized(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("%d observations still unsummarized", len(pending))
	}
}

func TestStats(t *testing.T) {
	m, _ := newManager(t, true, Options{})
	ctx := context.Background()

	m.Capture(ctx, memory.Observation{Type: memory.TypeToolUse, Content: "database migration"})

	st, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalObservations != 1 {
		t.Errorf("observations = %d, want 1", st.TotalObservations)
	}
	if !st.Vectors.Enabled || st.Vectors.TotalVectors != 1 {
		t.Errorf("vectors = %+v", st.Vectors)
	}
}
