package syncq_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
	"github.com/roach88/liftsync/internal/testutil"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type env struct {
	store     *store.Store
	transport *testutil.RecordingTransport
	clock     *testutil.ManualClock
	recorder  *fakeRecorder
	queue     *syncq.Queue
	engine    *syncq.Engine
}

func newEnv(t *testing.T, opts ...syncq.EngineOption) *env {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := &env{
		store:     s,
		transport: testutil.NewRecordingTransport(nil),
		clock:     testutil.NewManualClock(t0),
		recorder:  &fakeRecorder{},
	}
	e.queue = syncq.NewQueue(s,
		syncq.WithIDGenerator(testutil.NewSequentialIDs("action")),
		syncq.WithQueueClock(e.clock),
		syncq.WithQueueRecorder(e.recorder),
	)
	engineOpts := append([]syncq.EngineOption{
		syncq.WithClock(e.clock),
		syncq.WithRecorder(e.recorder),
	}, opts...)
	e.engine = syncq.NewEngine(s, e.transport, engineOpts...)
	return e
}

// enqueue appends an update action for entity, one second after the last.
func (e *env) enqueue(t *testing.T, entity model.EntityKind, entityID string) model.PendingAction {
	t.Helper()
	e.clock.Advance(time.Second)
	payload, err := model.NewPayload(entity, map[string]string{"id": entityID})
	require.NoError(t, err)
	a, err := e.queue.Enqueue(context.Background(), model.OpUpdate, entity, entityID, payload)
	require.NoError(t, err)
	return a
}

func (e *env) pending(t *testing.T) []model.PendingAction {
	t.Helper()
	actions, err := e.store.ListActions(context.Background())
	require.NoError(t, err)
	return actions
}

func (e *env) deadLetters(t *testing.T) []model.DeadLetterAction {
	t.Helper()
	letters, err := e.store.ListDeadLetters(context.Background())
	require.NoError(t, err)
	return letters
}

func paths(calls []remoteCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method + " " + c.Path
	}
	return out
}

type remoteCall struct{ Method, Path string }

func (e *env) calls() []remoteCall {
	var out []remoteCall
	for _, c := range e.transport.Calls() {
		out = append(out, remoteCall{Method: c.Method, Path: c.Path})
	}
	return out
}

// fakeRecorder captures everything the queue and engine report.
type fakeRecorder struct {
	mu         sync.Mutex
	added      int
	pendingSet []int
	started    []time.Time
	finished   []error
	dispatched map[syncq.DispatchResult]int
}

func (r *fakeRecorder) PendingAdded(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added += delta
}

func (r *fakeRecorder) PendingSet(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingSet = append(r.pendingSet, n)
}

func (r *fakeRecorder) SyncStarted(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, at)
}

func (r *fakeRecorder) SyncFinished(_ time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, err)
}

func (r *fakeRecorder) ActionDispatched(_ model.EntityKind, result syncq.DispatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dispatched == nil {
		r.dispatched = make(map[syncq.DispatchResult]int)
	}
	r.dispatched[result]++
}

type failingWaker struct{ calls int }

func (w *failingWaker) RequestWake() error {
	w.calls++
	return errors.New("background sync not supported")
}
