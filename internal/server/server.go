// Package server exposes sync state and controls over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/liftsync/internal/connectivity"
	"github.com/roach88/liftsync/internal/metrics"
	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/syncq"
)

// Syncer runs sync cycles. *syncq.Engine implements it.
type Syncer interface {
	Drain(ctx context.Context) (syncq.Report, error)
	PullThenDrain(ctx context.Context) (syncq.Report, error)
}

// Queue exposes the pending and dead-letter collections. *syncq.Queue
// implements it.
type Queue interface {
	Pending(ctx context.Context) ([]model.PendingAction, error)
	DeadLetters(ctx context.Context) ([]model.DeadLetterAction, error)
	Requeue(ctx context.Context, id string) (model.PendingAction, error)
}

// StatusSource publishes connectivity and sync state.
// *connectivity.Observer implements it.
type StatusSource interface {
	Status() connectivity.Status
	Subscribe() (<-chan connectivity.Status, func())
}

// Deps are the collaborators the handlers use. Metrics may be nil.
type Deps struct {
	Syncer  Syncer
	Queue   Queue
	Status  StatusSource
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Server is the local status and sync HTTP server.
type Server struct {
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New creates a server listening on addr.
func New(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/status", s.status)
	r.Get("/status/events", s.statusEvents)
	r.Post("/sync", s.sync)
	r.Get("/queue", s.pending)
	r.Get("/dlq", s.deadLetters)
	r.Post("/dlq/{id}/retry", s.requeue)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		s.deps.Logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
