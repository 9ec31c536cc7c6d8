package syncq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/liftsync/internal/model"
)

// ActionStore is the persistence the queue and engine need.
// *store.Store implements it.
type ActionStore interface {
	AppendAction(ctx context.Context, a model.PendingAction) error
	ListActions(ctx context.Context) ([]model.PendingAction, error)
	DeleteAction(ctx context.Context, id string) error
	UpdateActionRetry(ctx context.Context, id string, retryCount int) error
	CountActions(ctx context.Context) (int, error)
	DeadLetter(ctx context.Context, d model.DeadLetterAction) error
	ListDeadLetters(ctx context.Context) ([]model.DeadLetterAction, error)
	RequeueDeadLetter(ctx context.Context, id string, now time.Time) (model.PendingAction, error)
}

// Queue appends pending actions. Enqueue never touches the network.
type Queue struct {
	store    ActionStore
	ids      IDGenerator
	clock    Clock
	recorder Recorder
	waker    Waker
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithIDGenerator overrides the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) QueueOption {
	return func(q *Queue) { q.ids = g }
}

// WithQueueClock overrides the enqueue timestamp source.
func WithQueueClock(c Clock) QueueOption {
	return func(q *Queue) { q.clock = c }
}

// WithQueueRecorder sets the recorder notified on every enqueue.
func WithQueueRecorder(r Recorder) QueueOption {
	return func(q *Queue) { q.recorder = r }
}

// WithWaker sets the background wake-up hook called after every enqueue.
func WithWaker(w Waker) QueueOption {
	return func(q *Queue) { q.waker = w }
}

// NewQueue creates a Queue backed by s.
func NewQueue(s ActionStore, opts ...QueueOption) *Queue {
	q := &Queue{
		store:    s,
		ids:      UUIDv7Generator{},
		clock:    SystemClock{},
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a pending action with RetryCount 0 and returns it.
// A payload without a kind is tagged with entity.
func (q *Queue) Enqueue(ctx context.Context, op model.OperationKind, entity model.EntityKind, entityID string, payload model.Payload) (model.PendingAction, error) {
	if !op.Valid() {
		return model.PendingAction{}, fmt.Errorf("enqueue: unknown operation %q", op)
	}
	if !entity.Valid() {
		return model.PendingAction{}, fmt.Errorf("enqueue: unknown entity kind %q", entity)
	}
	if payload.Kind == "" {
		payload.Kind = entity
	}

	a := model.PendingAction{
		ID:         q.ids.Generate(),
		Operation:  op,
		Entity:     entity,
		EntityID:   entityID,
		Payload:    payload,
		EnqueuedAt: q.clock.Now(),
	}
	if err := q.store.AppendAction(ctx, a); err != nil {
		return model.PendingAction{}, fmt.Errorf("enqueue %s %s: %w", op, entity, err)
	}
	q.recorder.PendingAdded(1)

	slog.Debug("action enqueued",
		"action_id", a.ID,
		"operation", a.Operation,
		"entity", a.Entity,
		"entity_id", a.EntityID,
	)

	if q.waker != nil {
		if err := q.waker.RequestWake(); err != nil {
			slog.Debug("background wake request ignored", "error", err)
		}
	}
	return a, nil
}

// Pending returns the queued actions in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]model.PendingAction, error) {
	return q.store.ListActions(ctx)
}

// DeadLetters returns the dead-letter collection, most recent first.
func (q *Queue) DeadLetters(ctx context.Context) ([]model.DeadLetterAction, error) {
	return q.store.ListDeadLetters(ctx)
}

// Requeue moves a dead letter back to the pending collection with a
// fresh retry budget. Dead letters are only ever retried this way.
func (q *Queue) Requeue(ctx context.Context, id string) (model.PendingAction, error) {
	a, err := q.store.RequeueDeadLetter(ctx, id, q.clock.Now())
	if err != nil {
		return model.PendingAction{}, err
	}
	q.recorder.PendingAdded(1)
	slog.Info("dead letter requeued", "action_id", a.ID, "entity", a.Entity, "entity_id", a.EntityID)
	return a, nil
}
