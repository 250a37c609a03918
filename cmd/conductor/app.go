package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bowerhall/conductor/internal/agent"
	"github.com/bowerhall/conductor/internal/alerts"
	"github.com/bowerhall/conductor/internal/budget"
	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/contextmgr"
	"github.com/bowerhall/conductor/internal/cron"
	"github.com/bowerhall/conductor/internal/embedder"
	"github.com/bowerhall/conductor/internal/intent"
	"github.com/bowerhall/conductor/internal/llm"
	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/memory"
	"github.com/bowerhall/conductor/internal/orchestrator"
	"github.com/bowerhall/conductor/internal/registry"
	"github.com/bowerhall/conductor/internal/retrieval"
	"github.com/bowerhall/conductor/internal/sqlitedb"
	"github.com/bowerhall/conductor/internal/storage"
	"github.com/bowerhall/conductor/internal/tools"
	"github.com/bowerhall/conductor/internal/vector"
)

const dbFile = "conductor.db"

// app is everything main wires together.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	dbPath    string
	orch      *orchestrator.Orchestrator
	memory    *retrieval.Manager
	scheduler *cron.Scheduler
	alerter   *alerts.Alerter
	tracker   *budget.Tracker
	closers   []func()
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, alerter: alerts.New(nil, time.Hour)}

	tz, err := time.LoadLocation(cfg.Tools.Timezone)
	if err != nil {
		return nil, err
	}

	a.dbPath = filepath.Join(cfg.Memory.Dir, dbFile)
	a.db, err = sqlitedb.Open(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() { a.db.Close() })

	usage, err := budget.NewStore(a.db, tz)
	if err != nil {
		return nil, fmt.Errorf("usage ledger: %w", err)
	}
	a.tracker = a.newTracker(tz)
	a.tracker.SetStore(usage)

	base, err := llm.New(llm.Config{
		Provider:   cfg.LLM.Provider,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm: %w", err)
	}
	model := budget.Meter(llm.WithTimeout(base, cfg.LLM.Timeout), a.tracker)
	logger.Debug("llm configured", "provider", model.Provider(), "model", model.Model(), "timeout", cfg.LLM.Timeout)

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if cached, ok := emb.(*embedder.Cached); ok {
		a.closers = append(a.closers, cached.Close)
	}

	store, err := memory.New(a.db)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	index, err := vector.New(ctx, a.db, emb)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	a.memory = retrieval.NewManager(store, index, retrieval.Options{
		Summarizer:    retrieval.NewSummarizer(model),
		AutoSummarize: cfg.Memory.AutoSummarize,
	})
	logger.Debug("memory ready", "db", a.dbPath, "semantic", index.Enabled())

	toolset, err := a.buildTools(tz, usage)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	for _, def := range agent.Definitions {
		specialist, err := agent.Build(def, model, toolset)
		if err != nil {
			return nil, fmt.Errorf("build agent %s: %w", def.Name, err)
		}
		reg.Register(specialist, def.Capabilities)
	}
	if cfg.Routes != nil {
		reg.ApplyRoutes(cfg.Routes)
		logger.Info("routing table loaded", "file", cfg.RoutesFile)
	}

	snapshots, err := storage.New(ctx, cfg.Storage, a.db)
	if err != nil {
		return nil, fmt.Errorf("session storage: %w", err)
	}

	contexts := contextmgr.New(cfg.Context, model, snapshots)

	a.orch = orchestrator.New(intent.New(model), reg, contexts)
	a.orch.SetMemory(a.memory)
	a.orch.SetAlerter(a.alerter)

	cronStore, err := cron.NewStore(a.db)
	if err != nil {
		return nil, err
	}
	a.scheduler = cron.NewScheduler(cronStore, a.alerter, 10*time.Minute)
	if err := a.scheduler.Register(ctx, cron.JobSummaryBackfill, cfg.Cron.SummarySchedule, cron.SummaryBackfill(a.memory, cfg.Cron.BatchSize)); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) buildTools(tz *time.Location, usage *budget.Store) (*tools.Registry, error) {
	reg := tools.NewRegistry()

	workspace, err := filepath.Abs(a.cfg.Tools.Workspace)
	if err != nil {
		return nil, err
	}
	if err := tools.RegisterFileTools(reg, workspace); err != nil {
		return nil, fmt.Errorf("file tools: %w", err)
	}
	tools.RegisterCommandTools(reg, workspace, a.cfg.Tools.AllowedCommands, a.cfg.Tools.CommandTimeout)
	tools.RegisterMemoryTools(reg, a.memory)
	tools.RegisterSystemTools(reg, a.dbPath)
	tools.RegisterTimeTools(reg, tz)
	tools.RegisterUsageTools(reg, usage, tz)

	logger.Debug("tools registered", "workspace", workspace, "commands", a.cfg.Tools.AllowedCommands)
	return reg, nil
}

// newTracker always meters usage. The daily limit only applies when budgets
// are enabled.
func (a *app) newTracker(tz *time.Location) *budget.Tracker {
	limit := 0
	if a.cfg.Budget.Enabled {
		limit = a.cfg.Budget.DailyLimit
		logger.Info("budget tracking enabled", "limit", limit, "warnAt", a.cfg.Budget.WarnAt)
	}

	return budget.NewTracker(
		budget.Config{DailyLimit: limit, WarnAt: a.cfg.Budget.WarnAt, Timezone: tz},
		func(used, limit int) {
			msg := fmt.Sprintf("%d/%d tokens used (%.0f%%), approaching daily limit", used, limit, float64(used)/float64(limit)*100)
			a.alerter.Warn("budget", msg, nil)
		},
		func(used, limit int) {
			a.alerter.Critical("budget", "daily token budget exhausted, requests will fall back until tomorrow", nil)
		},
	)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func mustBuild(ctx context.Context, cfg *config.Config) *app {
	a, err := build(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	return a
}
