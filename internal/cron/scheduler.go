// Package cron runs maintenance jobs on cron schedules and keeps their run
// history in sqlite.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bowerhall/conductor/internal/alerts"
	"github.com/bowerhall/conductor/internal/logger"
)

// JobFunc does one unit of maintenance work.
type JobFunc func(ctx context.Context) error

type Scheduler struct {
	store   *Store
	cron    *cron.Cron
	alerts  *alerts.Alerter
	timeout time.Duration

	mu   sync.Mutex
	jobs map[string]JobFunc
	ctx  context.Context
	stop context.CancelFunc
}

// NewScheduler returns a stopped scheduler. Each run gets at most timeout.
func NewScheduler(store *Store, alerter *alerts.Alerter, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:   store,
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		alerts:  alerter,
		timeout: timeout,
		jobs:    make(map[string]JobFunc),
		ctx:     ctx,
		stop:    cancel,
	}
}

// Register persists the schedule and adds the job to the running table.
func (s *Scheduler) Register(ctx context.Context, name, schedule string, fn JobFunc) error {
	if _, err := s.store.Upsert(ctx, name, schedule); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.jobs[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job already registered: %s", name)
	}
	s.jobs[name] = fn
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(schedule, func() { s.run(s.ctx, name) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	logger.Info("cron job registered", "job", name, "schedule", schedule)
	return nil
}

// Start begins firing jobs. Jobs that came due while the process was down run
// once immediately.
func (s *Scheduler) Start(ctx context.Context) {
	overdue, err := s.store.Overdue(ctx, time.Now())
	if err != nil {
		logger.Warn("failed to check overdue jobs", "error", err)
	}
	for _, j := range overdue {
		go s.run(s.ctx, j.Name)
	}

	s.cron.Start()
	logger.Info("cron scheduler started", "jobs", len(s.Names()))
}

// Stop waits for running jobs to finish and cancels their context.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.stop()
	logger.Info("cron scheduler stopped")
}

// RunNow runs a job synchronously outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	return s.run(ctx, name)
}

func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Jobs(ctx context.Context) ([]Job, error) {
	return s.store.List(ctx)
}

func (s *Scheduler) run(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := safeRun(ctx, fn)

	if err != nil {
		logger.Error("cron job failed", "job", name, "error", err, "duration", time.Since(start))
		s.alerts.Warn("cron:"+name, "scheduled job failed", err)
	} else {
		logger.Debug("cron job finished", "job", name, "duration", time.Since(start))
	}

	if recErr := s.store.RecordRun(context.WithoutCancel(ctx), name, start, err); recErr != nil {
		logger.Warn("failed to record cron run", "job", name, "error", recErr)
	}
	return err
}

func safeRun(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}
