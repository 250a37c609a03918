package cron

import (
	"context"
	"errors"
	"sync/atomic"
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

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestUpsertRejectsBadSchedule(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Upsert(context.Background(), "x", "every tuesday"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestUpsertKeepsPendingRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, JobSummaryBackfill, "@daily"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := store.db.ExecContext(ctx, `UPDATE cron_jobs SET next_run = '2000-01-01 00:00:00'`); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	again, _ := store.Upsert(ctx, JobSummaryBackfill, "@daily")
	if again.NextRun.Year() != 2000 {
		t.Errorf("unchanged schedule should keep next run, got %v", again.NextRun)
	}

	changed, _ := store.Upsert(ctx, JobSummaryBackfill, "@hourly")
	if changed.NextRun.Year() == 2000 || changed.Schedule != "@hourly" {
		t.Errorf("changed schedule should recompute, got %+v", changed)
	}

	overdue, _ := store.Overdue(ctx, time.Now())
	if len(overdue) != 0 {
		t.Errorf("expected nothing overdue, got %+v", overdue)
	}
}

func TestRecordRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Upsert(ctx, "a", "*/5 * * * *")

	ranAt := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	if err := store.RecordRun(ctx, "a", ranAt, errors.New("model offline")); err != nil {
		t.Fatalf("record: %v", err)
	}

	job, err := store.Get(ctx, "a")
	if err != nil || job == nil {
		t.Fatalf("get: %v", err)
	}
	if job.Runs != 1 || job.LastError != "model offline" || job.LastRun == nil {
		t.Errorf("unexpected job %+v", job)
	}
	if want := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC); !job.NextRun.Equal(want) {
		t.Errorf("next run = %v, want %v", job.NextRun, want)
	}
	if !job.LastRun.Equal(ranAt) {
		t.Errorf("last run = %v, want %v", job.LastRun, ranAt)
	}

	jobs, err := store.List(ctx)
	if err != nil || len(jobs) != 1 || jobs[0].NextRun.IsZero() {
		t.Errorf("list should carry run times, got %+v (%v)", jobs, err)
	}

	store.RecordRun(ctx, "a", ranAt.Add(5*time.Minute), nil)
	job, _ = store.Get(ctx, "a")
	if job.Runs != 2 || job.LastError != "" {
		t.Errorf("error should clear on success: %+v", job)
	}

	if err := store.RecordRun(ctx, "missing", ranAt, nil); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestUnreadableRunTimeIsAnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Upsert(ctx, "a", "@hourly")
	if _, err := store.db.ExecContext(ctx, `UPDATE cron_jobs SET next_run = 'soon'`); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	if _, err := store.Get(ctx, "a"); err == nil {
		t.Error("expected parse error for unreadable next_run")
	}
}

func TestListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Upsert(ctx, "b", "@hourly")
	store.Upsert(ctx, "a", "@hourly")

	jobs, _ := store.List(ctx)
	if len(jobs) != 2 || jobs[0].Name != "a" {
		t.Fatalf("unexpected list %+v", jobs)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); err == nil {
		t.Error("expected error deleting twice")
	}
	if job, _ := store.Get(ctx, "a"); job != nil {
		t.Errorf("expected nil, got %+v", job)
	}
}

func TestSchedulerRunNow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := NewScheduler(store, nil, time.Second)

	var calls atomic.Int32
	if err := s.Register(ctx, "count", "@daily", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.Register(ctx, "count", "@daily", func(context.Context) error { return nil }); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	if err := s.RunNow(ctx, "count"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}

	job, _ := store.Get(ctx, "count")
	if job.Runs != 1 {
		t.Errorf("run not recorded: %+v", job)
	}

	if err := s.RunNow(ctx, "nope"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := NewScheduler(store, nil, 0)

	s.Register(ctx, "boom", "@daily", func(context.Context) error { panic("bad") })

	err := s.RunNow(ctx, "boom")
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}

	job, _ := store.Get(ctx, "boom")
	if job.LastError == "" {
		t.Error("expected last error recorded")
	}
}

func TestStartRunsOverdueJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := NewScheduler(store, nil, time.Second)

	done := make(chan struct{}, 1)
	s.Register(ctx, "late", "@daily", func(context.Context) error {
		done <- struct{}{}
		return nil
	})
	store.db.ExecContext(ctx, `UPDATE cron_jobs SET next_run = '2000-01-01 00:00:00'`)

	s.Start(ctx)
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("overdue job did not run")
	}
}
