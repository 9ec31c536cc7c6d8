package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/liftsync/internal/syncq"
)

// DefaultInterval is the periodic sync interval.
const DefaultInterval = 5 * time.Minute

// ErrSchedulerStopped is returned by RequestWake when the scheduler is not running.
var ErrSchedulerStopped = errors.New("sync scheduler not running")

// Drainer runs one drain cycle. *syncq.Engine implements it.
type Drainer interface {
	Drain(ctx context.Context) (syncq.Report, error)
}

// Scheduler polls connectivity and drains the queue on a fixed interval
// and whenever RequestWake is called. It implements syncq.Waker.
type Scheduler struct {
	observer *Observer
	drainer  Drainer
	interval time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	wake    chan struct{}
	done    chan struct{}
	running bool
}

// NewScheduler creates a stopped Scheduler. A non-positive interval uses
// DefaultInterval.
func NewScheduler(o *Observer, d Drainer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{observer: o, drainer: d, interval: interval}
}

// Start schedules the periodic job and the wake listener. Both stop when
// ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.RunOnce(ctx) }))
	s.cron.Start()

	s.wake = make(chan struct{}, 1)
	s.done = make(chan struct{})
	s.running = true

	go s.listen(ctx, s.wake, s.done)
	slog.Info("sync scheduler started", "interval", s.interval)
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c, done := s.cron, s.done
	s.mu.Unlock()

	close(done)
	<-c.Stop().Done()
	slog.Info("sync scheduler stopped")
}

// RequestWake asks for an immediate run. Requests made while a run is
// pending coalesce into it.
func (s *Scheduler) RequestWake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerStopped
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) listen(ctx context.Context, wake <-chan struct{}, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-done:
			return
		case <-wake:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce polls connectivity and, when online, drains the queue. An
// offline to online transition also runs the observer's reconcile pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if err := s.observer.Poll(ctx); err != nil {
		slog.Warn("reconcile after reconnect failed", "error", err)
	}
	if !s.observer.IsOnline() {
		slog.Debug("offline, scheduled drain skipped")
		return
	}
	rep, err := s.drainer.Drain(ctx)
	if err != nil {
		slog.Warn("scheduled drain finished with errors", "error", err)
		return
	}
	if !rep.Skipped {
		slog.Debug("scheduled drain finished", "succeeded", rep.Succeeded, "dead_lettered", rep.DeadLettered)
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
