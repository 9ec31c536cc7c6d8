package harness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/roach88/liftsync/internal/cache"
	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/plan"
	"github.com/roach88/liftsync/internal/remote"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
	"github.com/roach88/liftsync/internal/testutil"
	"github.com/roach88/liftsync/internal/tracker"
	"github.com/roach88/liftsync/internal/workout"
)

// Epoch is the manual clock's starting instant for every run.
var Epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// pullPaths are answered with an empty collection so a full sync cycle
// never fails on the pull half.
var pullPaths = []string{"/api/exercises", "/api/splits", "/api/personal-records", "/api/weight-entries"}

var errConnRefused = errors.New("connection refused")

type onlineFlag struct{ atomic.Bool }

func (f *onlineFlag) IsOnline() bool { return f.Load() }

// Harness holds the wired components of one run.
type Harness struct {
	scenario  *Scenario
	store     *store.Store
	transport *testutil.RecordingTransport
	clock     *testutil.ManualClock
	online    *onlineFlag
	queue     *syncq.Queue
	engine    *syncq.Engine
	tracker   *tracker.Tracker
	day       workout.Day
	planID    string
}

// Run executes a scenario in a fresh database and returns the result.
// A non-nil error means the scenario could not be executed at all; step
// failures and assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "liftsync-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(scenario, filepath.Join(dir, "harness.db"))
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Flow {
		before := h.transport.Count()
		ev := h.execute(ctx, step)
		ev.Seq = i + 1
		ev.Requests = requestsOf(h.transport.Calls()[before:])
		result.Trace = append(result.Trace, ev)

		if msg := checkExpect(step.Expect, ev); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}
	}
	result.Requests = requestsOf(h.transport.Calls())

	if err := h.collectState(ctx, result); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, h) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, dbPath string) (*Harness, error) {
	p, err := plan.LoadFile(scenario.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	day, err := p.Day(scenario.Day)
	if err != nil {
		return nil, fmt.Errorf("failed to select plan day: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	h := &Harness{
		scenario:  scenario,
		store:     st,
		transport: testutil.NewRecordingTransport(nil),
		clock:     testutil.NewManualClock(Epoch),
		online:    &onlineFlag{},
		day:       day,
		planID:    p.ID,
	}
	h.online.Store(true)
	for _, path := range pullPaths {
		h.transport.Route(http.MethodGet, path, testutil.JSON(http.StatusOK, `[]`))
	}

	h.queue = syncq.NewQueue(st,
		syncq.WithIDGenerator(testutil.NewSequentialIDs("action")),
		syncq.WithQueueClock(h.clock),
	)
	h.engine = syncq.NewEngine(st, h.transport,
		syncq.WithPulls(st, nil),
		syncq.WithClock(h.clock),
	)
	layer := cache.New(cache.NewStoreBackend(st), h.transport, h.online,
		cache.WithClock(h.clock),
		cache.WithQueue(h.queue),
		cache.WithSampler(func() float64 { return 1 }),
	)
	h.tracker = tracker.New(st, layer,
		tracker.WithClock(h.clock),
		tracker.WithIDGenerator(testutil.NewSequentialIDs("id")),
	)
	return h, nil
}

// execute runs one step. Operation errors are recorded on the event,
// never returned.
func (h *Harness) execute(ctx context.Context, step Step) TraceEvent {
	ev := TraceEvent{Op: step.Op}
	user := h.scenario.User

	var (
		sess *workout.Session
		err  error
	)
	switch step.Op {
	case "start":
		sess, err = h.tracker.Start(ctx, user, h.planID, h.day)
	case "set":
		in := workout.SetInput{Repetitions: intArg(step.Args, "reps"), Note: stringArg(step.Args, "note")}
		if w, ok := floatArg(step.Args, "weight"); ok {
			in.Magnitude = &w
		}
		var res tracker.RecordResult
		res, err = h.tracker.RecordSet(ctx, user, "", in)
		if err == nil {
			sess = res.Session
			ev.Transition = string(res.Outcome.Transition)
			if res.Finished != nil {
				sess = res.Finished.Session
			}
		}
	case "tick":
		sess, _, err = h.tracker.Tick(ctx, user, "", intArg(step.Args, "seconds"))
	case "skip_rest":
		sess, err = h.tracker.SkipRest(ctx, user, "")
	case "pause":
		sess, err = h.tracker.Pause(ctx, user, "")
	case "resume":
		sess, err = h.tracker.Resume(ctx, user, "")
	case "finish":
		var res tracker.FinishResult
		res, err = h.tracker.Finish(ctx, user, "")
		sess = res.Session
	case "abandon":
		err = h.tracker.Abandon(ctx, user, "")
	case "weight":
		w, _ := floatArg(step.Args, "kg")
		_, err = h.tracker.LogWeight(ctx, user, w, stringArg(step.Args, "note"))
	case "advance":
		h.clock.Advance(time.Duration(intArg(step.Args, "seconds")) * time.Second)
	case "online":
		h.online.Store(true)
	case "offline":
		h.online.Store(false)
	case "respond":
		if b, _ := step.Args["fail"].(bool); b {
			h.transport.SetResponder(func(req remote.Request) (remote.Response, error) {
				return remote.Response{}, &remote.NetworkError{Method: req.Method, Path: req.Path, Err: errConnRefused}
			})
		} else {
			h.transport.SetResponder(testutil.Status(intArg(step.Args, "status")))
		}
	case "sync", "drain":
		var rep syncq.Report
		if step.Op == "sync" {
			rep, err = h.engine.PullThenDrain(ctx)
		} else {
			rep, err = h.engine.Drain(ctx)
		}
		ev.Sync = &SyncOutcome{
			Attempted:    rep.Attempted,
			Succeeded:    rep.Succeeded,
			Failed:       rep.Failed,
			DeadLettered: rep.DeadLettered,
		}
	case "requeue":
		_, err = h.queue.Requeue(ctx, stringArg(step.Args, "id"))
	}

	if sess != nil {
		ev.Phase = string(sess.Phase)
	}
	if err != nil {
		ev.Error = errorKind(err)
	}
	return ev
}

func (h *Harness) collectState(ctx context.Context, result *Result) error {
	pending, err := h.queue.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending actions: %w", err)
	}
	dead, err := h.queue.DeadLetters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}
	result.Queue = len(pending)
	result.DeadLetters = len(dead)
	return nil
}

// activePhase returns the phase of the user's active session, or "none".
func (h *Harness) activePhase(ctx context.Context) (string, error) {
	sess, err := h.tracker.Active(ctx, h.scenario.User)
	if errors.Is(err, tracker.ErrNotFound) {
		return "none", nil
	}
	if err != nil {
		return "", err
	}
	return string(sess.Phase), nil
}

func (h *Harness) recordCount(ctx context.Context, collection string) (int, error) {
	records, err := h.store.ListRecords(ctx, model.Collection(collection), h.scenario.User)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// errorKind reduces err to a stable code for traces.
func errorKind(err error) string {
	var we *workout.Error
	var syncErr *syncq.SyncError
	switch {
	case errors.As(err, &we):
		return string(we.Code)
	case errors.Is(err, tracker.ErrNotFound):
		return "NO_SESSION"
	case errors.Is(err, tracker.ErrActiveSession):
		return "ACTIVE_SESSION"
	case errors.Is(err, tracker.ErrInvalidWeight):
		return "INVALID_WEIGHT"
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	case errors.As(err, &syncErr):
		return "SYNC_FAILED"
	case remote.IsRetryable(err):
		return "NETWORK"
	default:
		return "ERROR"
	}
}

func requestsOf(calls []remote.Request) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Method+" "+c.Path)
	}
	return out
}

func checkExpect(e *Expect, ev TraceEvent) string {
	if e == nil {
		if ev.Error != "" && ev.Sync == nil {
			return fmt.Sprintf("unexpected error %s", ev.Error)
		}
		return ""
	}
	if e.Error != ev.Error {
		return fmt.Sprintf("error: expected %q, got %q", e.Error, ev.Error)
	}
	if e.Phase != "" && e.Phase != ev.Phase {
		return fmt.Sprintf("phase: expected %q, got %q", e.Phase, ev.Phase)
	}
	if e.Transition != "" && e.Transition != ev.Transition {
		return fmt.Sprintf("transition: expected %q, got %q", e.Transition, ev.Transition)
	}
	if e.Synced != nil || e.Failed != nil || e.DeadLettered != nil {
		if ev.Sync == nil {
			return "sync counts expected on a step that did not sync"
		}
		if e.Synced != nil && *e.Synced != ev.Sync.Succeeded {
			return fmt.Sprintf("synced: expected %d, got %d", *e.Synced, ev.Sync.Succeeded)
		}
		if e.Failed != nil && *e.Failed != ev.Sync.Failed {
			return fmt.Sprintf("failed: expected %d, got %d", *e.Failed, ev.Sync.Failed)
		}
		if e.DeadLettered != nil && *e.DeadLettered != ev.Sync.DeadLettered {
			return fmt.Sprintf("dead_lettered: expected %d, got %d", *e.DeadLettered, ev.Sync.DeadLettered)
		}
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
