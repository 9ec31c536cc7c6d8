package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/workout"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAction creates a pending action with minimal required fields.
func createTestAction(id string, entity model.EntityKind, enqueuedAt time.Time) model.PendingAction {
	return model.PendingAction{
		ID:         id,
		Operation:  model.OpUpdate,
		Entity:     entity,
		EntityID:   "entity-" + id,
		Payload:    model.Payload{Kind: entity, Body: json.RawMessage(`{"id":"entity-` + id + `"}`)},
		EnqueuedAt: enqueuedAt,
	}
}

// createTestSession creates a session on a one-step, three-set day.
func createTestSession(t *testing.T, id, userID string) *workout.Session {
	t.Helper()
	catalog := "ex-bench"
	day := workout.Day{ID: "day-1", Steps: []workout.Step{{Name: "Bench", CatalogID: &catalog, SubSteps: 3}}}
	s, err := workout.New(id, userID, "plan-1", day, t0)
	if err != nil {
		t.Fatalf("workout.New() failed: %v", err)
	}
	return s
}
