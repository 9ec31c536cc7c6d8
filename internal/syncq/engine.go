package syncq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/remote"
)

// Report describes one sync cycle.
type Report struct {
	// Skipped is set when another cycle held the lock. Nothing else is set.
	Skipped      bool         `json:"skipped"`
	Attempted    int          `json:"attempted"`
	Succeeded    int          `json:"succeeded"`
	Failed       int          `json:"failed"`
	DeadLettered int          `json:"dead_lettered"`
	Pulled       []PullResult `json:"pulled,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Engine drains the pending-action queue against the server.
//
// Thread-safety: all methods are safe for concurrent use. Drain and
// PullThenDrain are mutually exclusive; a losing caller no-ops.
type Engine struct {
	store     ActionStore
	records   RecordStore
	transport remote.Transport
	routes    Routes
	pulls     []Pull
	clock     Clock
	recorder  Recorder

	running atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRoutes overrides DefaultRoutes.
func WithRoutes(r Routes) EngineOption {
	return func(e *Engine) { e.routes = r }
}

// WithPulls enables the pull phase of PullThenDrain, writing refreshed
// collections to rs. A nil pulls slice uses DefaultPulls.
func WithPulls(rs RecordStore, pulls []Pull) EngineOption {
	return func(e *Engine) {
		e.records = rs
		if pulls == nil {
			pulls = DefaultPulls()
		}
		e.pulls = pulls
	}
}

// WithClock overrides the cycle timestamp source.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithRecorder sets the recorder notified about cycles and dispatches.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an Engine that drains s through t.
func NewEngine(s ActionStore, t remote.Transport, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     s,
		transport: t,
		routes:    DefaultRoutes(),
		clock:     SystemClock{},
		recorder:  NopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Running reports whether a cycle currently holds the lock.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Drain runs one sync cycle over the pending queue.
//
// If a cycle is already running, Drain returns Report{Skipped: true} and
// a nil error without waiting. Otherwise it returns a *SyncError when at
// least one action failed without exhausting its retries. Dead-lettered
// actions are logged, not returned.
func (e *Engine) Drain(ctx context.Context) (Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Debug("sync already in progress, drain skipped")
		return Report{Skipped: true}, nil
	}
	defer e.running.Store(false)

	return e.cycle(ctx, false)
}

// PullThenDrain refreshes the canonical collections from the server,
// evicting local rows the server no longer has, then drains the queue.
// It holds the same lock as Drain. Pull failures are joined with the
// drain result and do not prevent the drain.
func (e *Engine) PullThenDrain(ctx context.Context) (Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Debug("sync already in progress, reconcile skipped")
		return Report{Skipped: true}, nil
	}
	defer e.running.Store(false)

	return e.cycle(ctx, true)
}

// cycle runs with the lock held.
func (e *Engine) cycle(ctx context.Context, pull bool) (rep Report, err error) {
	rep.StartedAt = e.clock.Now()
	e.recorder.SyncStarted(rep.StartedAt)

	defer func() {
		rep.FinishedAt = e.clock.Now()
		if n, cerr := e.store.CountActions(ctx); cerr == nil {
			e.recorder.PendingSet(n)
		} else {
			slog.Error("count pending actions", "error", cerr)
		}
		e.recorder.SyncFinished(rep.FinishedAt, err)

		slog.Info("sync cycle finished",
			"attempted", rep.Attempted,
			"succeeded", rep.Succeeded,
			"failed", rep.Failed,
			"dead_lettered", rep.DeadLettered,
			"error", err,
		)
	}()

	var pullErr error
	if pull {
		rep.Pulled, pullErr = e.pullAll(ctx)
	}
	drainErr := e.drain(ctx, &rep)
	return rep, joinErrors(pullErr, drainErr)
}

// drain dispatches every pending action once, in priority order.
func (e *Engine) drain(ctx context.Context, rep *Report) error {
	actions, err := e.store.ListActions(ctx)
	if err != nil {
		return fmt.Errorf("load pending actions: %w", err)
	}
	SortActions(actions)

	var storeErrs []error
	for _, a := range actions {
		if ctx.Err() != nil {
			storeErrs = append(storeErrs, ctx.Err())
			break
		}
		rep.Attempted++

		dispatchErr := e.dispatch(ctx, a)
		if dispatchErr == nil {
			if err := e.store.DeleteAction(ctx, a.ID); err != nil {
				storeErrs = append(storeErrs, err)
			}
			rep.Succeeded++
			e.recorder.ActionDispatched(a.Entity, ResultSynced)
			continue
		}
		if ctx.Err() != nil {
			// Cancelled by the caller; the attempt does not count.
			rep.Attempted--
			storeErrs = append(storeErrs, ctx.Err())
			break
		}

		a.RetryCount++
		if a.Exhausted() {
			err := e.store.DeadLetter(ctx, model.DeadLetterAction{
				PendingAction: a,
				FailedAt:      e.clock.Now(),
				Error:         ErrMaxRetriesExceeded.Error(),
			})
			if err != nil {
				storeErrs = append(storeErrs, err)
				continue
			}
			rep.DeadLettered++
			e.recorder.ActionDispatched(a.Entity, ResultDeadLettered)
			slog.Warn("action dead-lettered",
				"action_id", a.ID,
				"operation", a.Operation,
				"entity", a.Entity,
				"entity_id", a.EntityID,
				"retry_count", a.RetryCount,
				"last_error", dispatchErr,
			)
			continue
		}

		if err := e.store.UpdateActionRetry(ctx, a.ID, a.RetryCount); err != nil {
			storeErrs = append(storeErrs, err)
		}
		rep.Failed++
		e.recorder.ActionDispatched(a.Entity, ResultRetry)
		slog.Debug("action dispatch failed",
			"action_id", a.ID,
			"entity", a.Entity,
			"retry_count", a.RetryCount,
			"error", dispatchErr,
		)
	}

	if rep.Failed > 0 {
		storeErrs = append(storeErrs, &SyncError{Failed: rep.Failed, Succeeded: rep.Succeeded})
	}
	return joinErrors(storeErrs...)
}

// joinErrors is errors.Join that returns a lone non-nil error unwrapped.
func joinErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return errors.Join(nonNil...)
	}
}

// dispatch sends one action. A non-2xx response is a *remote.StatusError.
func (e *Engine) dispatch(ctx context.Context, a model.PendingAction) error {
	method, path, err := e.routes.Resolve(a.Operation, a.Entity, a.EntityID)
	if err != nil {
		return err
	}
	var body []byte
	if len(a.Payload.Body) > 0 {
		body = a.Payload.Body
	}
	resp, err := e.transport.Do(ctx, remote.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &remote.StatusError{Method: method, Path: path, Status: resp.Status, Body: resp.Body}
	}
	return nil
}

// SortActions orders actions by entity priority, then enqueue time.
// The sort is stable so equal keys keep their stored order.
func SortActions(actions []model.PendingAction) {
	sort.SliceStable(actions, func(i, j int) bool {
		pi, pj := actions[i].Entity.Priority(), actions[j].Entity.Priority()
		if pi != pj {
			return pi < pj
		}
		return actions[i].EnqueuedAt.Before(actions[j].EnqueuedAt)
	})
}
