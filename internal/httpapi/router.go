// Package httpapi exposes the orchestrator and the memory layer over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bowerhall/conductor/internal/cron"
	"github.com/bowerhall/conductor/internal/logger"
	"github.com/bowerhall/conductor/internal/orchestrator"
)

// Options carries the optional dependencies. A nil Scheduler hides the job
// routes.
type Options struct {
	APIKey         string
	DBPath         string
	Scheduler      *cron.Scheduler
	RequestTimeout time.Duration
}

type Server struct {
	orch      *orchestrator.Orchestrator
	scheduler *cron.Scheduler
	dbPath    string
	http      *http.Server
}

func New(addr string, orch *orchestrator.Orchestrator, opts Options) *Server {
	s := &Server{orch: orch, scheduler: opts.Scheduler, dbPath: opts.DBPath}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes(opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.APIKey))
		if opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(opts.RequestTimeout))
		}

		r.Post("/requests", s.processRequest)
		r.Get("/agents", s.listAgents)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/context", s.sessionContext)
			r.Get("/summary", s.sessionSummary)
			r.Delete("/", s.clearSession)
		})

		r.Route("/memory", func(r chi.Router) {
			r.Post("/search", s.searchMemory)
			r.Get("/recent", s.recentMemory)
			r.Get("/stats", s.memoryStats)
			r.Post("/remember", s.remember)
		})

		if s.scheduler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.listJobs)
				r.Post("/{name}/run", s.runJob)
			})
		}
	})

	return r
}

// Start blocks until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}
