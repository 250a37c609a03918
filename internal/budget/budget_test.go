package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/llm/llmtest"
	"github.com/bowerhall/conductor/internal/session"
	"github.com/bowerhall/conductor/internal/sqlitedb"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, time.UTC)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestTrackerAdd(t *testing.T) {
	tracker := NewTracker(Config{DailyLimit: 1000, WarnAt: 0.8}, nil, nil)

	ok := tracker.Add(500)
	if !ok {
		t.Error("expected Add to return true when under limit")
	}

	used, limit := tracker.Usage()
	if used != 500 {
		t.Errorf("expected 500 used, got %d", used)
	}
	if limit != 1000 {
		t.Errorf("expected 1000 limit, got %d", limit)
	}
}

func TestTrackerExceedsLimit(t *testing.T) {
	exceededCalled := false
	tracker := NewTracker(Config{DailyLimit: 1000, WarnAt: 0.8}, nil, func(used, limit int) {
		exceededCalled = true
	})

	tracker.Add(500)
	ok := tracker.Add(600) // total 1100, exceeds 1000
	if ok {
		t.Error("expected Add to return false when exceeding limit")
	}
	if !exceededCalled {
		t.Error("expected onExceeded callback to be called")
	}
	if !tracker.Exceeded() {
		t.Error("expected tracker to report exceeded")
	}
}

func TestTrackerWarnOnlyOnce(t *testing.T) {
	warnCount := 0
	tracker := NewTracker(Config{DailyLimit: 1000, WarnAt: 0.8}, func(used, limit int) {
		warnCount++
	}, nil)

	tracker.Add(700) // 70%, no warning yet
	if warnCount != 0 {
		t.Error("expected no warning at 70%")
	}

	tracker.Add(100) // triggers warning
	tracker.Add(50)
	tracker.Add(50)

	if warnCount != 1 {
		t.Errorf("expected warning to be called once, got %d", warnCount)
	}
}

func TestTrackerZeroLimitUnbounded(t *testing.T) {
	tracker := NewTracker(Config{}, nil, nil)
	if !tracker.Add(1_000_000) || tracker.Exceeded() {
		t.Error("zero limit should never be exceeded")
	}
}

func TestTrackerRecord(t *testing.T) {
	store := newStore(t)

	tracker := NewTracker(Config{DailyLimit: 100000, WarnAt: 0.8}, nil, nil)
	tracker.SetStore(store)

	ok := tracker.Record(UsageRecord{SessionID: "s1", Provider: "claude", Model: "claude-sonnet-4-5-20250929", InputTokens: 1000, OutputTokens: 100})
	if !ok {
		t.Error("expected Record to return true")
	}

	used, _ := tracker.Usage()
	if used != 1100 {
		t.Errorf("expected 1100 used, got %d", used)
	}

	tokens, err := store.TodayTokens()
	if err != nil {
		t.Fatalf("failed to get today tokens: %v", err)
	}
	if tokens != 1100 {
		t.Errorf("expected 1100 tokens in store, got %d", tokens)
	}
}

func TestStoreSessionSummary(t *testing.T) {
	store := newStore(t)

	store.Record(UsageRecord{SessionID: "a", Provider: "claude", Model: "claude-sonnet-4-5-20250929", InputTokens: 1000, OutputTokens: 100})
	store.Record(UsageRecord{SessionID: "a", Provider: "openai", Model: "gpt-4o", InputTokens: 500, OutputTokens: 50})
	store.Record(UsageRecord{SessionID: "b", Provider: "ollama", Model: "qwen2.5-coder:7b", InputTokens: 2000, OutputTokens: 200})

	sum, err := store.ForSession("a")
	if err != nil {
		t.Fatalf("session summary: %v", err)
	}
	if sum.TotalRequests != 2 || sum.TotalInputTokens != 1500 || sum.TotalOutputTokens != 150 {
		t.Errorf("unexpected session summary: %+v", sum)
	}

	today, err := store.Today()
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if today.TotalRequests != 3 {
		t.Errorf("expected 3 requests today, got %d", today.TotalRequests)
	}

	start := time.Now().UTC().Add(-time.Hour)
	breakdown, err := store.BreakdownByModel(start, start.Add(2*time.Hour))
	if err != nil || len(breakdown) != 3 {
		t.Errorf("expected 3 models in breakdown, got %v (%v)", breakdown, err)
	}
}

func TestPricing(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		input    int
		output   int
		want     float64
	}{
		{"claude", "claude-sonnet-4-5-20250929", 1000000, 0, 3.00},
		{"claude", "claude-sonnet-4-5-20250929", 0, 1000000, 15.00},
		{"openai", "gpt-4o", 1000000, 0, 2.50},
		{"ollama", "qwen2.5-coder:7b", 1000000, 1000000, 0},
	}

	for _, tt := range tests {
		cost := CalculateCost(tt.provider, tt.model, tt.input, tt.output)
		if cost != tt.want {
			t.Errorf("CalculateCost(%s, %s) = %f, want %f", tt.provider, tt.model, cost, tt.want)
		}
	}

	if CalculateCost("openrouter", "unknown-model", 1000000, 1000000) == 0 {
		t.Error("expected unknown models to have non-zero cost")
	}
}

func TestMeterRecordsAndBlocks(t *testing.T) {
	store := newStore(t)
	tracker := NewTracker(Config{DailyLimit: 30, WarnAt: 0.8}, nil, nil)
	tracker.SetStore(store)

	fake := &llmtest.Fake{Responses: []*llm.ChatResponse{llmtest.Text("one", 10, 10), llmtest.Text("two", 10, 10)}}
	model := Meter(fake, tracker)

	ctx := session.WithID(context.Background(), "cli_1")
	if _, err := model.Chat(ctx, llm.Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := model.Chat(ctx, llm.Request{}); err != nil {
		t.Fatalf("second call: %v", err)
	}

	_, err := model.Chat(ctx, llm.Request{})
	if !errors.Is(err, ErrDailyLimit) || !llm.IsProviderError(err) {
		t.Fatalf("expected budget ProviderError, got %v", err)
	}
	if fake.Calls() != 2 {
		t.Errorf("blocked call must not reach the provider, got %d calls", fake.Calls())
	}

	sum, _ := store.ForSession("cli_1")
	if sum.TotalRequests != 2 {
		t.Errorf("expected 2 recorded calls for session, got %d", sum.TotalRequests)
	}
}
