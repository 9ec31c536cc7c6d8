package cache

import (
	"context"
	"time"

	"github.com/roach88/liftsync/internal/model"
)

// Backend stores cache entries keyed by endpoint.
type Backend interface {
	Get(ctx context.Context, endpoint string) (model.CacheEntry, bool, error)
	Put(ctx context.Context, e model.CacheEntry) error
	Delete(ctx context.Context, endpoint string) error
	// SweepExpired removes entries with Expires before now.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// EntryStore is the slice of *store.Store used by StoreBackend.
type EntryStore interface {
	GetEntry(ctx context.Context, endpoint string) (model.CacheEntry, bool, error)
	PutEntry(ctx context.Context, e model.CacheEntry) error
	DeleteEntry(ctx context.Context, endpoint string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// StoreBackend keeps entries in the local SQLite store.
type StoreBackend struct {
	s EntryStore
}

// NewStoreBackend wraps s.
func NewStoreBackend(s EntryStore) *StoreBackend {
	return &StoreBackend{s: s}
}

func (b *StoreBackend) Get(ctx context.Context, endpoint string) (model.CacheEntry, bool, error) {
	return b.s.GetEntry(ctx, endpoint)
}

func (b *StoreBackend) Put(ctx context.Context, e model.CacheEntry) error {
	return b.s.PutEntry(ctx, e)
}

func (b *StoreBackend) Delete(ctx context.Context, endpoint string) error {
	return b.s.DeleteEntry(ctx, endpoint)
}

func (b *StoreBackend) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return b.s.SweepExpired(ctx, now)
}
