package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/model"
)

func record(collection model.Collection, id, userID string) model.Record {
	return model.Record{
		Collection: collection,
		ID:         id,
		UserID:     userID,
		Data:       json.RawMessage(`{"id":"` + id + `"}`),
		UpdatedAt:  t0,
	}
}

func TestReplaceCollection_EvictsStaleRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"ex-1", "ex-2", "ex-3"} {
		require.NoError(t, s.PutRecord(ctx, record(model.CollectionExercises, id, "user-1")))
	}
	require.NoError(t, s.PutRecord(ctx, record(model.CollectionSplits, "split-1", "user-1")))

	evicted, err := s.ReplaceCollection(ctx, model.CollectionExercises, []model.Record{
		record(model.CollectionExercises, "ex-2", "user-1"),
		record(model.CollectionExercises, "ex-4", "user-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)

	got, err := s.ListRecords(ctx, model.CollectionExercises, "")
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"ex-2", "ex-4"}, ids)

	splits, err := s.ListRecords(ctx, model.CollectionSplits, "")
	require.NoError(t, err)
	assert.Len(t, splits, 1, "other collections are untouched")
}

func TestReplaceCollection_EmptyPullClearsCollection(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutRecord(ctx, record(model.CollectionWeightEntries, "w-1", "user-1")))

	evicted, err := s.ReplaceCollection(ctx, model.CollectionWeightEntries, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	got, err := s.ListRecords(ctx, model.CollectionWeightEntries, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListRecords_FiltersByUser(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutRecord(ctx, record(model.CollectionPersonalRecords, "pr-1", "user-1")))
	require.NoError(t, s.PutRecord(ctx, record(model.CollectionPersonalRecords, "pr-2", "user-2")))

	got, err := s.ListRecords(ctx, model.CollectionPersonalRecords, "user-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pr-2", got[0].ID)
}

func TestGetRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutRecord(ctx, record(model.CollectionSplits, "split-1", "user-1")))

	r, err := s.GetRecord(ctx, model.CollectionSplits, "split-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"split-1"}`, string(r.Data))

	_, err = s.GetRecord(ctx, model.CollectionSplits, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
