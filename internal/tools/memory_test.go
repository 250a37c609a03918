package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bowerhall/conductor/internal/budget"
	"github.com/bowerhall/conductor/internal/memory"
	"github.com/bowerhall/conductor/internal/retrieval"
	"github.com/bowerhall/conductor/internal/session"
	"github.com/bowerhall/conductor/internal/sqlitedb"
)

func newManager(t *testing.T) *retrieval.Manager {
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
	return retrieval.NewManager(store, nil, retrieval.Options{})
}

func TestSearchMemoryTool(t *testing.T) {
	m := newManager(t)
	r := NewRegistry()
	RegisterMemoryTools(r, m)

	ctx := session.WithID(context.Background(), "s1")

	out, err := r.Execute(ctx, SearchMemory, `{"query":"schema"}`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out != "No relevant memories found." {
		t.Errorf("empty search = %q", out)
	}

	m.Capture(ctx, memory.Observation{Type: memory.TypeDecision, Content: "schema uses uuid keys"})
	if _, err := r.Execute(ctx, Remember, `{"type":"decision","content":"schema migrations live in db/"}`); err != nil {
		t.Fatalf("remember: %v", err)
	}

	out, err = r.Execute(ctx, SearchMemory, `{"query":"schema","mode":"keyword"}`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "Stored memories:") || !strings.Contains(out, "schema migrations live in db/") {
		t.Errorf("missing memory in %q", out)
	}
	if !strings.Contains(out, "schema uses uuid keys") {
		t.Errorf("missing observation in %q", out)
	}
}

func TestSearchMemoryRejectsUnknownMode(t *testing.T) {
	r := NewRegistry()
	RegisterMemoryTools(r, newManager(t))

	if _, err := r.Execute(context.Background(), SearchMemory, `{"query":"x","mode":"fuzzy"}`); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestUsageTool(t *testing.T) {
	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store, err := budget.NewStore(db, time.UTC)
	if err != nil {
		t.Fatalf("budget store: %v", err)
	}
	store.Record(budget.UsageRecord{SessionID: "s1", Provider: "claude", Model: "claude-sonnet-4-5-20250929", InputTokens: 100, OutputTokens: 50})

	r := NewRegistry()
	RegisterUsageTools(r, store, time.UTC)

	ctx := session.WithID(context.Background(), "s1")

	out, err := r.Execute(ctx, UsageSummary, `{"period":"session"}`)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if !strings.Contains(out, "- Requests: 1") || !strings.Contains(out, "- Input tokens: 100") {
		t.Errorf("session usage = %q", out)
	}

	out, err = r.Execute(ctx, UsageSummary, `{"period":"today"}`)
	if err != nil {
		t.Fatalf("usage today: %v", err)
	}
	if !strings.Contains(out, "claude-sonnet-4-5-20250929") {
		t.Errorf("today usage missing breakdown: %q", out)
	}

	if _, err := r.Execute(ctx, UsageSummary, `{"period":"decade"}`); err == nil {
		t.Error("expected error for invalid period")
	}
}

func TestPeriodRangeWeekStartsMonday(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	from, to, err := periodRange("week", sunday)
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	if from.Weekday() != time.Monday || from.Day() != 12 {
		t.Errorf("from = %v, want Monday 12th", from)
	}
	if to.Sub(from) != 7*24*time.Hour {
		t.Errorf("range = %v, want 7 days", to.Sub(from))
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		512:             "512 bytes",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
