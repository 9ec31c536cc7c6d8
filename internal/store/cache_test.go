package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/model"
)

func TestCacheEntry_PutGetDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetEntry(ctx, "/api/exercises")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := model.CacheEntry{
		Endpoint: "/api/exercises",
		Body:     []byte(`[{"id":"ex-1"}]`),
		Expires:  t0.Add(5 * time.Minute),
		CachedAt: t0,
	}
	require.NoError(t, s.PutEntry(ctx, entry))

	got, ok, err := s.GetEntry(ctx, "/api/exercises")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Body, got.Body)
	assert.True(t, got.Expires.Equal(entry.Expires))
	assert.True(t, got.CachedAt.Equal(t0))

	entry.Body = []byte(`[]`)
	require.NoError(t, s.PutEntry(ctx, entry))
	got, _, err = s.GetEntry(ctx, "/api/exercises")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got.Body)

	require.NoError(t, s.DeleteEntry(ctx, "/api/exercises"))
	_, ok, err = s.GetEntry(ctx, "/api/exercises")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepExpired(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, offset := range []time.Duration{-time.Minute, -time.Second, 0, time.Minute} {
		require.NoError(t, s.PutEntry(ctx, model.CacheEntry{
			Endpoint: string(rune('a' + i)),
			Body:     []byte("x"),
			Expires:  t0.Add(offset),
			CachedAt: t0,
		}))
	}

	n, err := s.SweepExpired(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "only entries expiring strictly before now are swept")

	count, err := s.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
