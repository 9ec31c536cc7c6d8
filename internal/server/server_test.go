package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/connectivity"
	"github.com/roach88/liftsync/internal/metrics"
	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeSyncer struct {
	mu     sync.Mutex
	calls  []string
	report syncq.Report
	err    error
}

func (f *fakeSyncer) Drain(context.Context) (syncq.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "drain")
	return f.report, f.err
}

func (f *fakeSyncer) PullThenDrain(context.Context) (syncq.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "pull-then-drain")
	return f.report, f.err
}

type fakeStatus struct {
	status  connectivity.Status
	updates chan connectivity.Status
}

func (f *fakeStatus) Status() connectivity.Status { return f.status }

func (f *fakeStatus) Subscribe() (<-chan connectivity.Status, func()) {
	return f.updates, func() {}
}

type testServer struct {
	srv     *Server
	store   *store.Store
	queue   *syncq.Queue
	syncer  *fakeSyncer
	status  *fakeStatus
	metrics *metrics.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ts := &testServer{
		store:   s,
		queue:   syncq.NewQueue(s),
		syncer:  &fakeSyncer{},
		status:  &fakeStatus{status: connectivity.Status{Online: true, Pending: 2}, updates: make(chan connectivity.Status, 1)},
		metrics: metrics.New(),
	}
	ts.srv = New("127.0.0.1:0", Deps{
		Syncer:  ts.syncer,
		Queue:   ts.queue,
		Status:  ts.status,
		Metrics: ts.metrics,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var got connectivity.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Online)
	assert.Equal(t, 2, got.Pending)
}

func TestSync(t *testing.T) {
	ts := newTestServer(t)
	ts.syncer.report = syncq.Report{Attempted: 3, Succeeded: 2, Failed: 1}
	ts.syncer.err = &syncq.SyncError{Failed: 1, Succeeded: 2}

	rec := ts.do(t, http.MethodPost, "/sync")
	require.Equal(t, http.StatusOK, rec.Code)

	var got syncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Report.Attempted)
	assert.Equal(t, "Failed to sync 1 items. 2 succeeded.", got.Error)

	ts.do(t, http.MethodPost, "/sync?drain_only=true")
	assert.Equal(t, []string{"pull-then-drain", "drain"}, ts.syncer.calls)
}

func TestSync_SkippedWhileRunning(t *testing.T) {
	ts := newTestServer(t)
	ts.syncer.report = syncq.Report{Skipped: true}

	rec := ts.do(t, http.MethodPost, "/sync")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"skipped":true`)
}

func TestQueueAndDeadLetters(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.queue.Enqueue(ctx, model.OpCreate, model.EntityWeightEntry, "w-1", model.Payload{})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/queue")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []model.PendingAction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "w-1", pending[0].EntityID)

	dead := pending[0]
	dead.RetryCount = model.MaxRetry
	require.NoError(t, ts.store.DeadLetter(ctx, model.DeadLetterAction{PendingAction: dead, FailedAt: t0, Error: "Max retries exceeded"}))

	rec = ts.do(t, http.MethodGet, "/dlq")
	require.Equal(t, http.StatusOK, rec.Code)
	var letters []model.DeadLetterAction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &letters))
	require.Len(t, letters, 1)
	assert.Equal(t, "Max retries exceeded", letters[0].Error)

	rec = ts.do(t, http.MethodPost, "/dlq/"+dead.ID+"/retry")
	require.Equal(t, http.StatusOK, rec.Code)
	n, err := ts.store.CountActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec = ts.do(t, http.MethodPost, "/dlq/"+dead.ID+"/retry")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingQueue struct{ Queue }

func (failingQueue) Pending(context.Context) ([]model.PendingAction, error) {
	return nil, errors.New("database is locked")
}

func TestQueue_StoreError(t *testing.T) {
	ts := newTestServer(t)
	ts.srv = New("", Deps{Syncer: ts.syncer, Queue: failingQueue{}, Status: ts.status})

	rec := ts.do(t, http.MethodGet, "/queue")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")

	rec = ts.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are only mounted with a collector")
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/healthz")
	ts.do(t, http.MethodPost, "/dlq/nope/retry")

	rec := ts.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `liftsync_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, body, `liftsync_http_requests_total{method="POST",route="/dlq/{id}/retry",status="404"} 1`)
}

func TestStatusEvents(t *testing.T) {
	ts := newTestServer(t)
	hs := httptest.NewServer(ts.srv.Handler())
	defer hs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL+"/status/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	assert.Contains(t, first, `"pending":2`)

	ts.status.updates <- connectivity.Status{Online: false, Pending: 5}
	second := readEvent(t, reader)
	assert.Contains(t, second, `"online":false`)
	assert.Contains(t, second, `"pending":5`)
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		t.Fatalf("read event: %v", err)
	}
	require.True(t, strings.HasPrefix(line, "data: "), "got %q", line)
	blank, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\n", blank)
	return strings.TrimPrefix(strings.TrimSpace(line), "data: ")
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
