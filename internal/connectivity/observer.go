package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/syncq"
)

// Status is a snapshot of connectivity and sync state.
type Status struct {
	Online      bool       `json:"online"`
	Syncing     bool       `json:"syncing"`
	Pending     int        `json:"pending"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Reconciler runs a full pull-then-drain pass. *syncq.Engine implements it.
type Reconciler interface {
	PullThenDrain(ctx context.Context) (syncq.Report, error)
}

// Observer holds the sync-state snapshot and implements syncq.Recorder.
//
// Thread-safety: all methods are safe for concurrent use.
type Observer struct {
	provider Provider

	mu         sync.Mutex
	status     Status
	reconciler Reconciler
	subs       map[int]chan Status
	nextSub    int
}

// NewObserver creates an Observer. The initial state is offline until the
// first Poll or SetOnline.
func NewObserver(p Provider) *Observer {
	return &Observer{provider: p, subs: make(map[int]chan Status)}
}

// SetReconciler sets the pass run on offline to online transitions.
// The engine is usually built with the observer as its recorder, so the
// reconciler is attached afterwards.
func (o *Observer) SetReconciler(r Reconciler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconciler = r
}

// IsOnline reports the last known connectivity.
func (o *Observer) IsOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.Online
}

// Status returns a snapshot.
func (o *Observer) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Poll asks the provider and applies the answer with SetOnline.
func (o *Observer) Poll(ctx context.Context) error {
	return o.SetOnline(ctx, o.provider.Online(ctx))
}

// SetOnline records connectivity. On an offline to online transition the
// reconciler's PullThenDrain runs before SetOnline returns; its error is
// returned. A skipped pass (sync already running) is not an error.
func (o *Observer) SetOnline(ctx context.Context, online bool) error {
	o.mu.Lock()
	was := o.status.Online
	o.status.Online = online
	r := o.reconciler
	o.mu.Unlock()

	if was == online {
		return nil
	}
	slog.Info("connectivity changed", "online", online)
	o.publish()

	if !online || r == nil {
		return nil
	}
	rep, err := r.PullThenDrain(ctx)
	if rep.Skipped {
		slog.Debug("reconcile skipped, sync already in progress")
	}
	return err
}

// Subscribe returns a channel receiving the latest Status after each
// change, and a cancel func. Slow subscribers only see the newest value.
func (o *Observer) Subscribe() (<-chan Status, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan Status, 1)
	o.subs[id] = ch
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

func (o *Observer) publish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := o.status
	for _, ch := range o.subs {
		// Drop the stale value, if any, so the send never blocks.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (o *Observer) update(fn func(*Status)) {
	o.mu.Lock()
	fn(&o.status)
	o.mu.Unlock()
	o.publish()
}

// PendingAdded implements syncq.Recorder.
func (o *Observer) PendingAdded(delta int) {
	o.update(func(s *Status) { s.Pending += delta })
}

// PendingSet implements syncq.Recorder.
func (o *Observer) PendingSet(n int) {
	o.update(func(s *Status) { s.Pending = n })
}

// SyncStarted implements syncq.Recorder.
func (o *Observer) SyncStarted(at time.Time) {
	o.update(func(s *Status) {
		s.Syncing = true
		s.LastAttempt = &at
	})
}

// SyncFinished implements syncq.Recorder.
func (o *Observer) SyncFinished(at time.Time, err error) {
	o.update(func(s *Status) {
		s.Syncing = false
		if err == nil {
			s.LastSuccess = &at
			s.LastError = ""
			return
		}
		s.LastError = err.Error()
	})
}

// ActionDispatched implements syncq.Recorder.
func (o *Observer) ActionDispatched(model.EntityKind, syncq.DispatchResult) {}
