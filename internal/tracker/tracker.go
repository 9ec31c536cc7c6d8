package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/liftsync/internal/cache"
	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/plan"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
	"github.com/roach88/liftsync/internal/workout"
)

var (
	// ErrNotFound is returned when the user has no active session.
	ErrNotFound = errors.New("no active session")

	// ErrActiveSession is returned when starting a session while another
	// one is still in progress.
	ErrActiveSession = errors.New("an active session already exists")
)

// Store is the local persistence the tracker needs. *store.Store implements it.
type Store interface {
	SaveSession(ctx context.Context, sess *workout.Session) error
	ActiveSession(ctx context.Context, userID string) (*workout.Session, error)
	DeleteSession(ctx context.Context, id string) error
	GetRecord(ctx context.Context, collection model.Collection, id string) (model.Record, error)
	ListRecords(ctx context.Context, collection model.Collection, userID string) ([]model.Record, error)
	PutRecord(ctx context.Context, r model.Record) error
}

// Gateway delivers mutations to the server. *cache.Layer implements it.
type Gateway interface {
	Mutate(ctx context.Context, method, endpoint string, body []byte, target *cache.QueueTarget) (cache.MutationResult, error)
}

// LogSink receives the summary of every finished session.
type LogSink interface {
	Log(ctx context.Context, sess *workout.Session, sum workout.Summary) error
}

// Tracker serializes the workout use cases of one device.
//
// Thread-safety: all methods are safe for concurrent use; they run one at
// a time.
type Tracker struct {
	mu sync.Mutex

	store   Store
	gateway Gateway
	sink    LogSink
	clock   syncq.Clock
	ids     syncq.IDGenerator
	routes  syncq.Routes
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for every transition.
func WithClock(c syncq.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithIDGenerator sets the generator for session, record and entry ids.
func WithIDGenerator(g syncq.IDGenerator) Option {
	return func(t *Tracker) { t.ids = g }
}

// WithLogSink replaces the default sink, which mirrors the summary as an
// update of the finished session.
func WithLogSink(s LogSink) Option {
	return func(t *Tracker) { t.sink = s }
}

// WithRoutes overrides syncq.DefaultRoutes for mirrored mutations.
func WithRoutes(r syncq.Routes) Option {
	return func(t *Tracker) { t.routes = r }
}

// New creates a tracker.
func New(s Store, g Gateway, opts ...Option) *Tracker {
	t := &Tracker{
		store:   s,
		gateway: g,
		clock:   syncq.SystemClock{},
		ids:     syncq.UUIDv7Generator{},
		routes:  syncq.DefaultRoutes(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sink == nil {
		t.sink = sessionSink{t}
	}
	return t
}

// Active returns the user's in-progress session.
func (t *Tracker) Active(ctx context.Context, userID string) (*workout.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active(ctx, userID)
}

// Start begins a session on day of planID.
func (t *Tracker) Start(ctx context.Context, userID, planID string, day workout.Day) (*workout.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, err := t.active(ctx, userID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrActiveSession, existing.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sess, err := workout.New(t.ids.Generate(), userID, planID, day, t.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := t.store.SaveSession(ctx, sess); err != nil {
		if errors.Is(err, store.ErrActiveSessionExists) {
			return nil, fmt.Errorf("%w: %v", ErrActiveSession, err)
		}
		return nil, err
	}

	slog.Info("session started", "session_id", sess.ID, "user_id", userID, "plan_id", planID, "day_id", day.ID)
	t.mirror(ctx, model.OpCreate, model.EntitySession, sess.ID, sessionBody{Session: sess})
	return sess, nil
}

// StartFromSplit begins a session on a day of a split from the locally
// cached splits collection.
func (t *Tracker) StartFromSplit(ctx context.Context, userID, splitID, dayID string) (*workout.Session, error) {
	rec, err := t.store.GetRecord(ctx, model.CollectionSplits, splitID)
	if err != nil {
		return nil, fmt.Errorf("load split %s: %w", splitID, err)
	}
	p, err := plan.ParseJSON(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", splitID, err)
	}
	day, err := p.Day(dayID)
	if err != nil {
		return nil, err
	}
	return t.Start(ctx, userID, p.ID, day)
}

// RecordResult is the outcome of RecordSet. Finished is set when the set
// was the last one of the session.
type RecordResult struct {
	Session  *workout.Session `json:"session"`
	Outcome  workout.Outcome  `json:"outcome"`
	Finished *FinishResult    `json:"finished,omitempty"`
}

// RecordSet completes the set at the cursor of the user's session.
// An empty sessionID addresses the active session.
func (t *Tracker) RecordSet(ctx context.Context, userID, sessionID string, in workout.SetInput) (RecordResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := t.owned(ctx, userID, sessionID)
	if err != nil {
		return RecordResult{}, err
	}
	out, err := sess.Record(t.clock.Now(), in)
	if err != nil {
		return RecordResult{}, err
	}

	res := RecordResult{Session: sess, Outcome: out}
	if out.Transition == workout.TransitionFinished {
		fin, err := t.complete(ctx, sess)
		if err != nil {
			return RecordResult{}, err
		}
		res.Finished = &fin
		return res, nil
	}
	if err := t.commit(ctx, sess); err != nil {
		return RecordResult{}, err
	}
	return res, nil
}

// SkipRest ends the current rest early.
func (t *Tracker) SkipRest(ctx context.Context, userID, sessionID string) (*workout.Session, error) {
	return t.update(ctx, userID, sessionID, func(s *workout.Session) error {
		return s.SkipRest(t.clock.Now())
	})
}

// Pause freezes the session clock.
func (t *Tracker) Pause(ctx context.Context, userID, sessionID string) (*workout.Session, error) {
	return t.update(ctx, userID, sessionID, func(s *workout.Session) error {
		return s.Pause(t.clock.Now())
	})
}

// Resume unfreezes the session clock.
func (t *Tracker) Resume(ctx context.Context, userID, sessionID string) (*workout.Session, error) {
	return t.update(ctx, userID, sessionID, func(s *workout.Session) error {
		return s.Resume(t.clock.Now())
	})
}

// Tick advances the session timer by seconds. Ticks are persisted but not
// mirrored; a rest that runs out ends like a skipped rest and is mirrored.
func (t *Tracker) Tick(ctx context.Context, userID, sessionID string, seconds int) (*workout.Session, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := t.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, false, err
	}
	now := t.clock.Now()
	restDone, err := sess.Tick(now, seconds)
	if err != nil {
		return nil, false, err
	}
	if !restDone {
		if err := t.store.SaveSession(ctx, sess); err != nil {
			return nil, false, err
		}
		return sess, false, nil
	}

	if err := sess.SkipRest(now); err != nil {
		return nil, false, err
	}
	if err := t.commit(ctx, sess); err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// FinishResult is what finishing a session produced.
type FinishResult struct {
	Session         *workout.Session       `json:"session"`
	Summary         workout.Summary        `json:"summary"`
	PersonalRecords []model.PersonalRecord `json:"personalRecords,omitempty"`
}

// Finish ends the session, logs its summary, records new personal bests,
// and removes the local session.
func (t *Tracker) Finish(ctx context.Context, userID, sessionID string) (FinishResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := t.owned(ctx, userID, sessionID)
	if err != nil {
		return FinishResult{}, err
	}
	if err := sess.Finish(t.clock.Now()); err != nil {
		return FinishResult{}, err
	}
	return t.complete(ctx, sess)
}

// Abandon discards the session locally and remotely without logging it.
func (t *Tracker) Abandon(ctx context.Context, userID, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := t.owned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if err := t.store.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	slog.Info("session abandoned", "session_id", sess.ID, "user_id", userID)
	t.mirror(ctx, model.OpDelete, model.EntitySession, sess.ID, nil)
	return nil
}

func (t *Tracker) update(ctx context.Context, userID, sessionID string, fn func(*workout.Session) error) (*workout.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := t.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := t.commit(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (t *Tracker) active(ctx context.Context, userID string) (*workout.Session, error) {
	sess, err := t.store.ActiveSession(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w for user %s", ErrNotFound, userID)
	}
	return sess, err
}

// owned loads the active session and checks it is the one addressed.
func (t *Tracker) owned(ctx context.Context, userID, sessionID string) (*workout.Session, error) {
	sess, err := t.active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = sess.ID
	}
	if err := sess.Authorize(userID, sessionID); err != nil {
		return nil, err
	}
	return sess, nil
}

func (t *Tracker) commit(ctx context.Context, sess *workout.Session) error {
	if err := t.store.SaveSession(ctx, sess); err != nil {
		return err
	}
	t.mirror(ctx, model.OpUpdate, model.EntitySession, sess.ID, sessionBody{Session: sess})
	return nil
}

// complete runs the finish pipeline on a session already in PhaseFinished.
func (t *Tracker) complete(ctx context.Context, sess *workout.Session) (FinishResult, error) {
	finishedAt := t.clock.Now()
	if sess.FinishedAt != nil {
		finishedAt = *sess.FinishedAt
	}
	if err := t.store.SaveSession(ctx, sess); err != nil {
		return FinishResult{}, err
	}

	sum := workout.Summarize(sess, finishedAt)
	if err := t.sink.Log(ctx, sess, sum); err != nil {
		return FinishResult{}, fmt.Errorf("log session %s: %w", sess.ID, err)
	}

	prs, err := t.recordPersonalBests(ctx, sess)
	if err != nil {
		return FinishResult{}, err
	}

	if err := t.store.DeleteSession(ctx, sess.ID); err != nil {
		return FinishResult{}, err
	}
	slog.Info("session finished",
		"session_id", sess.ID,
		"duration_minutes", sum.DurationMinutes,
		"entries", len(sum.Entries),
		"personal_records", len(prs),
	)
	return FinishResult{Session: sess, Summary: sum, PersonalRecords: prs}, nil
}

// mirror sends the mutation through the gateway. Failures are logged; the
// local state stays committed.
func (t *Tracker) mirror(ctx context.Context, op model.OperationKind, entity model.EntityKind, id string, v any) {
	method, path, err := t.routes.Resolve(op, entity, id)
	if err != nil {
		slog.Error("mirror route", "entity", entity, "error", err)
		return
	}

	var body []byte
	if v != nil {
		if body, err = json.Marshal(v); err != nil {
			slog.Error("mirror encode", "entity", entity, "entity_id", id, "error", err)
			return
		}
	}

	res, err := t.gateway.Mutate(ctx, method, path, body, &cache.QueueTarget{Operation: op, Entity: entity, EntityID: id})
	if err != nil {
		slog.Warn("mirror rejected", "method", method, "path", path, "error", err)
		return
	}
	slog.Debug("mirrored", "method", method, "path", path, "queued", res.Queued, "action_id", res.ActionID)
}

// sessionBody is the wire shape of a mirrored session.
type sessionBody struct {
	*workout.Session
	Summary *workout.Summary `json:"summary,omitempty"`
}

type sessionSink struct{ t *Tracker }

func (s sessionSink) Log(ctx context.Context, sess *workout.Session, sum workout.Summary) error {
	s.t.mirror(ctx, model.OpUpdate, model.EntitySession, sess.ID, sessionBody{Session: sess, Summary: &sum})
	return nil
}
