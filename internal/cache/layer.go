package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/remote"
)

const (
	// DefaultTTL is the lifetime of a cached response.
	DefaultTTL = 5 * time.Minute
	// DefaultSweepChance is the probability a cache write sweeps expired entries.
	DefaultSweepChance = 0.05
)

// OnlineChecker reports current connectivity.
type OnlineChecker interface {
	IsOnline() bool
}

// Enqueuer queues a mutation for later delivery. *syncq.Queue implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, op model.OperationKind, entity model.EntityKind, entityID string, payload model.Payload) (model.PendingAction, error)
}

// Clock supplies the time used for expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Lookup is the outcome of one Read, reported to an Observer.
type Lookup string

const (
	LookupHit      Lookup = "hit"
	LookupMiss     Lookup = "miss"
	LookupExpired  Lookup = "expired"
	LookupFallback Lookup = "fallback"
)

// Observer is notified about cache activity. The metrics package implements it.
type Observer interface {
	CacheLookup(result Lookup)
	CacheSwept(n int64)
}

// QueueTarget identifies the pending action a mutation becomes when it
// cannot be delivered now.
type QueueTarget struct {
	Operation model.OperationKind
	Entity    model.EntityKind
	EntityID  string
}

// MutationResult acknowledges a mutation. Queued results are optimistic:
// the server has not seen the write yet.
type MutationResult struct {
	Success  bool   `json:"success"`
	Queued   bool   `json:"queued"`
	ActionID string `json:"action_id,omitempty"`
	Status   int    `json:"status,omitempty"`
	Body     []byte `json:"-"`
}

// Layer is the response cache and mutation gateway.
type Layer struct {
	backend   Backend
	transport remote.Transport
	online    OnlineChecker
	queue     Enqueuer
	clock     Clock
	observer  Observer

	ttl         time.Duration
	sweepChance float64
	sample      func() float64

	group singleflight.Group
}

// Option configures a Layer.
type Option func(*Layer)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(l *Layer) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithSweepChance overrides DefaultSweepChance. Values are clamped to [0, 1].
func WithSweepChance(p float64) Option {
	return func(l *Layer) { l.sweepChance = min(max(p, 0), 1) }
}

// WithSampler replaces the random source deciding whether a write sweeps.
// The sampler returns values in [0, 1); a write sweeps when the value is
// below the sweep chance.
func WithSampler(sample func() float64) Option {
	return func(l *Layer) { l.sample = sample }
}

// WithClock overrides the expiry clock.
func WithClock(c Clock) Option {
	return func(l *Layer) { l.clock = c }
}

// WithQueue enables queueing of mutations that carry a QueueTarget.
func WithQueue(q Enqueuer) Option {
	return func(l *Layer) { l.queue = q }
}

// WithObserver sets the cache activity observer.
func WithObserver(o Observer) Option {
	return func(l *Layer) { l.observer = o }
}

// NewSeededSampler returns a deterministic sampler for tests and replays.
func NewSeededSampler(seed uint64) func() float64 {
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return r.Float64()
	}
}

// New creates a Layer.
func New(b Backend, t remote.Transport, online OnlineChecker, opts ...Option) *Layer {
	l := &Layer{
		backend:     b,
		transport:   t,
		online:      online,
		clock:       systemClock{},
		ttl:         DefaultTTL,
		sweepChance: DefaultSweepChance,
		sample:      rand.Float64,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReadOption configures a single Read.
type ReadOption func(*readOptions)

type readOptions struct {
	fallback    []byte
	hasFallback bool
}

// WithFallback supplies the body returned when offline with no usable entry.
func WithFallback(body []byte) ReadOption {
	return func(o *readOptions) {
		o.fallback = body
		o.hasFallback = true
	}
}

// Read returns the body for a GET of endpoint.
//
// An unexpired entry is returned without a network call. An expired entry
// is deleted and treated as a miss. Offline misses return the fallback or
// ErrOfflineNoCache. Online misses fetch, store, and return the body;
// concurrent misses for one endpoint share a single fetch.
func (l *Layer) Read(ctx context.Context, endpoint string, opts ...ReadOption) ([]byte, error) {
	var ro readOptions
	for _, opt := range opts {
		opt(&ro)
	}

	now := l.clock.Now()
	entry, ok, err := l.backend.Get(ctx, endpoint)
	if err != nil {
		slog.Warn("cache lookup failed, treating as miss", "endpoint", endpoint, "error", err)
		ok = false
	}
	if ok {
		if !entry.Expired(now) {
			l.lookup(LookupHit)
			return entry.Body, nil
		}
		l.lookup(LookupExpired)
		if err := l.backend.Delete(ctx, endpoint); err != nil {
			slog.Debug("evict expired entry failed", "endpoint", endpoint, "error", err)
		}
	} else {
		l.lookup(LookupMiss)
	}

	if !l.online.IsOnline() {
		if ro.hasFallback {
			l.lookup(LookupFallback)
			return ro.fallback, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrOfflineNoCache, endpoint)
	}

	v, err, _ := l.group.Do(endpoint, func() (any, error) {
		return l.fetch(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// ReadJSON is Read followed by json.Unmarshal into v.
func (l *Layer) ReadJSON(ctx context.Context, endpoint string, v any, opts ...ReadOption) error {
	body, err := l.Read(ctx, endpoint, opts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (l *Layer) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := l.transport.Do(ctx, remote.Request{Method: http.MethodGet, Path: endpoint})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &remote.StatusError{Method: http.MethodGet, Path: endpoint, Status: resp.Status, Body: resp.Body}
	}

	now := l.clock.Now()
	l.write(ctx, model.CacheEntry{
		Endpoint: endpoint,
		Body:     resp.Body,
		Expires:  now.Add(l.ttl),
		CachedAt: now,
	})
	return resp.Body, nil
}

// write stores e and, with probability sweepChance, sweeps expired entries.
// Failures are logged and swallowed.
func (l *Layer) write(ctx context.Context, e model.CacheEntry) {
	if err := l.backend.Put(ctx, e); err != nil {
		slog.Warn("cache write failed", "endpoint", e.Endpoint, "error", err)
		return
	}
	if l.sample() < l.sweepChance {
		if _, err := l.Sweep(ctx); err != nil {
			slog.Debug("opportunistic cache sweep failed", "error", err)
		}
	}
}

// Sweep removes every entry that expired before now.
func (l *Layer) Sweep(ctx context.Context) (int64, error) {
	n, err := l.backend.SweepExpired(ctx, l.clock.Now())
	if err != nil {
		return 0, err
	}
	if l.observer != nil {
		l.observer.CacheSwept(n)
	}
	slog.Debug("cache swept", "removed", n)
	return n, nil
}

// Invalidate drops the cached response for endpoint.
func (l *Layer) Invalidate(ctx context.Context, endpoint string) error {
	return l.backend.Delete(ctx, endpoint)
}

// Mutate sends a non-GET request.
//
// Offline, a mutation with a target is enqueued and acknowledged with
// {Success: true, Queued: true}; without a target it fails with
// ErrOfflineMutation. Online, the request is sent directly; a timeout or
// network failure with a target falls back to the queue. A non-2xx answer
// is returned as a *remote.StatusError and is never queued.
func (l *Layer) Mutate(ctx context.Context, method, endpoint string, body []byte, target *QueueTarget) (MutationResult, error) {
	if !l.online.IsOnline() {
		if target == nil || l.queue == nil {
			return MutationResult{}, fmt.Errorf("%w: %s %s", ErrOfflineMutation, method, endpoint)
		}
		return l.enqueue(ctx, body, target)
	}

	resp, err := l.transport.Do(ctx, remote.Request{Method: method, Path: endpoint, Body: body})
	if err != nil {
		if target != nil && l.queue != nil && remote.IsRetryable(err) {
			slog.Info("mutation deferred to queue", "method", method, "endpoint", endpoint, "error", err)
			return l.enqueue(ctx, body, target)
		}
		return MutationResult{}, err
	}
	if !resp.OK() {
		return MutationResult{Status: resp.Status, Body: resp.Body},
			&remote.StatusError{Method: method, Path: endpoint, Status: resp.Status, Body: resp.Body}
	}

	l.invalidateFor(ctx, endpoint, target)
	return MutationResult{Success: true, Status: resp.Status, Body: resp.Body}, nil
}

func (l *Layer) enqueue(ctx context.Context, body []byte, target *QueueTarget) (MutationResult, error) {
	payload, err := model.NewPayload(target.Entity, json.RawMessage(body))
	if err != nil {
		return MutationResult{}, err
	}
	a, err := l.queue.Enqueue(ctx, target.Operation, target.Entity, target.EntityID, payload)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Success: true, Queued: true, ActionID: a.ID}, nil
}

// invalidateFor drops cached reads a successful mutation made stale: the
// endpoint itself and, for member paths, the collection it belongs to.
func (l *Layer) invalidateFor(ctx context.Context, endpoint string, target *QueueTarget) {
	stale := []string{endpoint}
	if target != nil && target.Operation != model.OpCreate {
		stale = append(stale, path.Dir(endpoint))
	}
	for _, e := range stale {
		if err := l.backend.Delete(ctx, e); err != nil {
			slog.Debug("cache invalidation failed", "endpoint", e, "error", err)
		}
	}
}

func (l *Layer) lookup(result Lookup) {
	if l.observer != nil {
		l.observer.CacheLookup(result)
	}
}
