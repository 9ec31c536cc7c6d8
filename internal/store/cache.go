package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/liftsync/internal/model"
)

// GetEntry returns the cache entry for endpoint. ok is false when absent.
// Expiry is not checked here; see cache.Layer.
func (s *Store) GetEntry(ctx context.Context, endpoint string) (entry model.CacheEntry, ok bool, err error) {
	var expires, cachedAt int64
	err = s.db.QueryRowContext(ctx, `
		SELECT endpoint, body, expires, cached_at FROM cache_entries WHERE endpoint = ?
	`, endpoint).Scan(&entry.Endpoint, &entry.Body, &expires, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheEntry{}, false, nil
	}
	if err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	entry.Expires = fromMillis(expires)
	entry.CachedAt = fromMillis(cachedAt)
	return entry, true, nil
}

// PutEntry stores or replaces the cache entry for its endpoint.
func (s *Store) PutEntry(ctx context.Context, entry model.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (endpoint, body, expires, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			body = excluded.body,
			expires = excluded.expires,
			cached_at = excluded.cached_at
	`, entry.Endpoint, entry.Body, toMillis(entry.Expires), toMillis(entry.CachedAt))
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the cache entry for endpoint.
func (s *Store) DeleteEntry(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// SweepExpired deletes every entry whose expiry is before now and returns
// how many were removed.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	return n, nil
}

// CountEntries returns the number of cache entries, expired or not.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}
