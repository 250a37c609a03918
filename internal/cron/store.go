package cron

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the persisted state of one scheduled maintenance job.
type Job struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
}

type Store struct {
	db *sql.DB
}

// parser accepts standard 5-field cron expressions and descriptors like @hourly.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Times are stored as UTC text in this layout so comparisons in SQL are lexical.
const timeLayout = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS cron_jobs (
    name TEXT PRIMARY KEY,
    schedule TEXT NOT NULL,
    next_run TEXT NOT NULL,
    last_run TEXT,
    last_error TEXT NOT NULL DEFAULT '',
    runs INTEGER NOT NULL DEFAULT 0
);
`

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("cron schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert records a job's schedule. Run history survives a schedule change, and
// an unchanged schedule keeps its pending next run so overdue jobs are found.
func (s *Store) Upsert(ctx context.Context, name, schedule string) (*Job, error) {
	next, err := ComputeNextRun(schedule, time.Now())
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cron_jobs (name, schedule, next_run) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			next_run = CASE WHEN cron_jobs.schedule = excluded.schedule THEN cron_jobs.next_run ELSE excluded.next_run END,
			schedule = excluded.schedule`,
		name, schedule, next.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("upsert job %s: %w", name, err)
	}

	return s.Get(ctx, name)
}

// RecordRun stores the outcome of a run and the next fire time.
func (s *Store) RecordRun(ctx context.Context, name string, ranAt time.Time, runErr error) error {
	var schedule string
	if err := s.db.QueryRowContext(ctx, `SELECT schedule FROM cron_jobs WHERE name = ?`, name).Scan(&schedule); err != nil {
		return fmt.Errorf("record run %s: %w", name, err)
	}

	next, err := ComputeNextRun(schedule, ranAt)
	if err != nil {
		return err
	}

	lastError := ""
	if runErr != nil {
		lastError = runErr.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE cron_jobs SET last_run = ?, next_run = ?, last_error = ?, runs = runs + 1 WHERE name = ?`,
		ranAt.UTC().Format(timeLayout), next.UTC().Format(timeLayout), lastError, name)
	return err
}

// Get returns nil without error for an unknown job.
func (s *Store) Get(ctx context.Context, name string) (*Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, schedule, next_run, last_run, last_error, runs FROM cron_jobs WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil || len(jobs) == 0 {
		return nil, err
	}
	return &jobs[0], nil
}

func (s *Store) List(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, schedule, next_run, last_run, last_error, runs FROM cron_jobs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// Overdue lists jobs whose next run passed while nothing was scheduling them.
func (s *Store) Overdue(ctx context.Context, now time.Time) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, schedule, next_run, last_run, last_error, runs FROM cron_jobs
		WHERE next_run <= ? ORDER BY next_run`, now.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cron_jobs WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("job not found: " + name)
	}
	return nil
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job

	for rows.Next() {
		var j Job
		var nextRun string
		var lastRun sql.NullString

		if err := rows.Scan(&j.Name, &j.Schedule, &nextRun, &lastRun, &j.LastError, &j.Runs); err != nil {
			return nil, err
		}

		next, err := time.Parse(timeLayout, nextRun)
		if err != nil {
			return nil, fmt.Errorf("job %s next run: %w", j.Name, err)
		}
		j.NextRun = next

		if lastRun.Valid {
			last, err := time.Parse(timeLayout, lastRun.String)
			if err != nil {
				return nil, fmt.Errorf("job %s last run: %w", j.Name, err)
			}
			j.LastRun = &last
		}

		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// ComputeNextRun returns the first fire time of schedule after from.
func ComputeNextRun(schedule string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return sched.Next(from), nil
}
