package memory

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bowerhall/conductor/internal/sqlitedb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestAddAssignsIncreasingIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, Observation{Type: TypeToolUse, ToolName: "write_file", Content: "created parser.go"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := store.Add(ctx, Observation{Type: TypeDecision, Content: "use sqlite for storage"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if second <= first {
		t.Errorf("expected increasing ids, got %d then %d", first, second)
	}

	obs, err := store.Get(ctx, first)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if obs.SessionID != DefaultSessionID {
		t.Errorf("expected default session, got %q", obs.SessionID)
	}
	if obs.ToolName != "write_file" {
		t.Errorf("expected tool name, got %q", obs.ToolName)
	}
}

func TestAddTruncatesContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, Observation{Type: TypeUserInput, Content: strings.Repeat("a", MaxContentLength+50)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	obs, _ := store.Get(ctx, id)
	if len(obs.Content) != MaxContentLength {
		t.Errorf("expected content capped at %d, got %d", MaxContentLength, len(obs.Content))
	}
}

func TestAddRequiresType(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Add(context.Background(), Observation{Content: "x"}); err == nil {
		t.Fatal("expected error without type")
	}
}

func TestSearchKeyword(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Add(ctx, Observation{Type: TypeToolUse, ToolName: "write_file", Content: "wrote the tokenizer for the parser"})
	store.Add(ctx, Observation{Type: TypeDecision, Content: "parser errors should include line numbers"})
	store.Add(ctx, Observation{Type: TypePreference, Content: "prefers tabs over spaces"})

	results, err := store.SearchKeyword(ctx, "parser", 10, "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}

	filtered, err := store.SearchKeyword(ctx, "parser", 10, TypeDecision)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Type != TypeDecision {
		t.Errorf("expected decision only, got %+v", filtered)
	}

	byTool, _ := store.SearchKeyword(ctx, "write_file", 10, "")
	if len(byTool) != 1 {
		t.Errorf("expected tool name to be searchable, got %d hits", len(byTool))
	}
}

func TestSearchKeywordNeutralizesSyntax(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Add(ctx, Observation{Type: TypeDecision, Content: "NOT a problem"})

	if _, err := store.SearchKeyword(ctx, `NOT "unbalanced (`, 10, ""); err != nil {
		t.Fatalf("expected sanitized query to run, got %v", err)
	}
}

func TestSearchKeywordEmptyQueryReturnsRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		store.Add(ctx, Observation{Type: TypeDecision, Content: "d", Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	results, err := store.SearchKeyword(ctx, "   ", 2, "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 recent results, got %d", len(results))
	}
	if !results[0].Timestamp.After(results[1].Timestamp) {
		t.Error("expected newest first")
	}
}

func TestRecentOrdersWithinOneSecond(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	second := time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC)
	store.Add(ctx, Observation{Type: TypeDecision, Content: "later", Timestamp: second.Add(500 * time.Millisecond)})
	store.Add(ctx, Observation{Type: TypeDecision, Content: "earlier", Timestamp: second})

	recent, err := store.Recent(ctx, 2, "")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "later" {
		t.Fatalf("expected later first, got %+v", recent)
	}
	if !recent[0].Timestamp.Equal(second.Add(500 * time.Millisecond)) {
		t.Errorf("timestamp not preserved: %v", recent[0].Timestamp)
	}

	history, _ := store.SessionObservations(ctx, DefaultSessionID)
	if len(history) != 2 || history[0].Content != "earlier" {
		t.Errorf("expected earlier first in session history, got %+v", history)
	}
}

func TestFileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	ctx := context.Background()

	db, err := sqlitedb.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Add(ctx, Observation{Type: TypeToolUse, Content: "migrated the schema"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.SearchKeyword(ctx, "schema", 5, ""); err != nil {
		t.Fatalf("search: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = sqlitedb.Open(path)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer db.Close()

	store, err = New(db)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	results, err := store.SearchKeyword(ctx, "schema", 5, "")
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(results) != 1 || results[0].Content != "migrated the schema" {
		t.Errorf("expected the observation after reopen, got %+v", results)
	}
}

func TestUpdateSummaryIsSearchable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, _ := store.Add(ctx, Observation{Type: TypeToolUse, Content: "ran go test ./..."})

	pending, _ := store.Unsummarized(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("expected 1 unsummarized, got %d", len(pending))
	}

	if err := store.UpdateSummary(ctx, id, "verified the whole module passes"); err != nil {
		t.Fatalf("update summary: %v", err)
	}

	results, _ := store.SearchKeyword(ctx, "verified", 10, "")
	if len(results) != 1 || results[0].ID != id {
		t.Errorf("expected summary to be indexed, got %+v", results)
	}

	pending, _ = store.Unsummarized(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected no unsummarized left, got %d", len(pending))
	}

	if err := store.UpdateSummary(ctx, 9999, "x"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestSessionsAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.StartSession(ctx, "s1", map[string]any{"source": "cli"}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	store.StartSession(ctx, "s1", nil)

	store.Add(ctx, Observation{SessionID: "s1", Type: TypeToolUse, Content: "a"})
	store.Add(ctx, Observation{SessionID: "s1", Type: TypeToolUse, Content: "b"})
	store.Add(ctx, Observation{SessionID: "s1", Type: TypeDecision, Content: "c"})
	store.AddMemory(ctx, TypePreference, "likes short answers", nil)

	if err := store.EndSession(ctx, "s1", "short session"); err != nil {
		t.Fatalf("end session: %v", err)
	}

	sess, err := store.GetSession(ctx, "s1")
	if err != nil || sess == nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.EndTime == nil || sess.Summary != "short session" || sess.Metadata["source"] != "cli" {
		t.Errorf("unexpected session: %+v", sess)
	}

	obs, _ := store.SessionObservations(ctx, "s1")
	if len(obs) != 3 || obs[0].Content != "a" {
		t.Errorf("expected session observations in order, got %+v", obs)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalSessions != 1 || stats.TotalObservations != 3 || stats.TotalMemories != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.ObservationsByType[TypeToolUse] != 2 {
		t.Errorf("expected 2 tool_use, got %v", stats.ObservationsByType)
	}
}

func TestSearchMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.AddMemory(ctx, TypePreference, "always use table driven tests", map[string]any{"scope": "go"})
	store.AddMemory(ctx, TypeDecision, "deploy with docker compose", nil)

	found, err := store.SearchMemories(ctx, "docker", 10)
	if err != nil {
		t.Fatalf("search memories: %v", err)
	}
	if len(found) != 1 || found[0].Type != TypeDecision {
		t.Errorf("unexpected memories: %+v", found)
	}

	all, _ := store.SearchMemories(ctx, "", 10)
	if len(all) != 2 {
		t.Errorf("expected empty query to list all, got %d", len(all))
	}
}

func TestConcurrentAdds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan int64, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Add(ctx, Observation{Type: TypeToolUse, Content: "concurrent"})
			if err != nil {
				t.Errorf("add: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}

	results, _ := store.SearchKeyword(ctx, "concurrent", 50, "")
	if len(results) != 20 {
		t.Errorf("expected every row indexed, got %d", len(results))
	}
}

func TestSanitizeFTS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"parser errors", `"parser" "errors"`},
		{`say "hi"`, `"say" "hi"`},
		{"a OR b", `"a" "OR" "b"`},
		{"( ) *", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sanitizeFTS(tt.in); got != tt.want {
			t.Errorf("sanitizeFTS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
