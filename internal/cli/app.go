package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/liftsync/internal/cache"
	"github.com/roach88/liftsync/internal/config"
	"github.com/roach88/liftsync/internal/connectivity"
	"github.com/roach88/liftsync/internal/metrics"
	"github.com/roach88/liftsync/internal/remote"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
	"github.com/roach88/liftsync/internal/tracker"
)

// healthPath is probed with HEAD to decide connectivity.
const healthPath = "/api/health"

// App is the wired set of components one command works with.
type App struct {
	Config    config.Config
	Store     *store.Store
	Observer  *connectivity.Observer
	Scheduler *connectivity.Scheduler
	Queue     *syncq.Queue
	Engine    *syncq.Engine
	Cache     *cache.Layer
	Tracker   *tracker.Tracker
	Metrics   *metrics.Collector

	closers []func() error
}

// openApp loads the configuration and wires the store, transport,
// connectivity observer, queue, engine, cache layer and tracker.
//
// Connectivity is probed once before the reconciler is attached, so
// opening the app never starts a sync by itself.
func openApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.v)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	app := &App{Config: cfg, Store: st, Metrics: metrics.New()}
	app.closers = append(app.closers, st.Close)

	transport := opts.Transport
	if transport == nil {
		client, err := remote.New(cfg.Server.URL,
			remote.WithToken(cfg.Server.Token),
			remote.WithTimeout(cfg.Request.Timeout),
			remote.WithRateLimit(cfg.Request.Rate, cfg.Request.Burst),
		)
		if err != nil {
			app.Close()
			return nil, WrapExitError(ExitCommandError, "invalid server url", err)
		}
		transport = client
	}

	var provider connectivity.Provider = connectivity.NewHTTPProbe(cfg.Server.URL, healthPath)
	if cfg.Offline {
		provider = connectivity.NewStatic(false)
	} else if opts.Transport != nil {
		provider = connectivity.NewStatic(true)
	}
	app.Observer = connectivity.NewObserver(provider)
	recorder := syncq.Recorders(app.Observer, app.Metrics)

	var clock syncq.Clock = syncq.SystemClock{}
	if opts.Clock != nil {
		clock = opts.Clock
	}

	app.Engine = syncq.NewEngine(st, transport,
		syncq.WithRecorder(recorder),
		syncq.WithPulls(st, nil),
		syncq.WithClock(clock),
	)
	app.Scheduler = connectivity.NewScheduler(app.Observer, app.Engine, cfg.Sync.Interval)
	app.Queue = syncq.NewQueue(st,
		syncq.WithQueueRecorder(recorder),
		syncq.WithQueueClock(clock),
		syncq.WithWaker(app.Scheduler),
	)

	backend, err := app.cacheBackend(ctx)
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open cache backend", err)
	}
	app.Cache = cache.New(backend, transport, app.Observer,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithSweepChance(cfg.Cache.SweepChance),
		cache.WithClock(clock),
		cache.WithQueue(app.Queue),
		cache.WithObserver(app.Metrics),
	)
	app.Tracker = tracker.New(st, app.Cache, tracker.WithClock(clock))

	if err := app.Observer.Poll(ctx); err != nil {
		slog.Debug("initial connectivity poll", "error", err)
	}
	app.Observer.SetReconciler(app.Engine)

	if n, err := st.CountActions(ctx); err == nil {
		recorder.PendingSet(n)
	}
	slog.Debug("app ready", "db", cfg.DB, "server", cfg.Server.URL, "online", app.Observer.IsOnline())
	return app, nil
}

func (a *App) cacheBackend(ctx context.Context) (cache.Backend, error) {
	if a.Config.Cache.Backend != "redis" {
		return cache.NewStoreBackend(a.Store), nil
	}
	rb, err := cache.NewRedisBackend(ctx, a.Config.Cache.RedisAddr, cache.DefaultRedisPrefix)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rb.Close)
	return rb, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp opens the app for cmd, runs fn, and closes the app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			slog.Error("error closing app", "error", closeErr)
		}
	}()
	return fn(ctx, app)
}

// requireUser returns the configured user id.
func (a *App) requireUser() (string, error) {
	if a.Config.User == "" {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("a user id is required (--user or %s_USER)", config.EnvPrefix))
	}
	return a.Config.User, nil
}
