package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/liftsync/internal/workout"
)

// SaveSession inserts or replaces the session row.
//
// Returns ErrActiveSessionExists if a different non-finished session for
// the same user already exists.
func (s *Store) SaveSession(ctx context.Context, sess *workout.Session) error {
	state, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("save session: marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, user_id, plan_id, plan_day_id, phase, state, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			state = excluded.state,
			updated_at = excluded.updated_at
	`,
		sess.ID,
		sess.UserID,
		sess.PlanID,
		sess.PlanDayID,
		string(sess.Phase),
		string(state),
		toMillis(sess.StartedAt),
		toMillis(sess.LastUpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("save session %s: %w", sess.ID, ErrActiveSessionExists)
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the session with the given id.
// Returns ErrNotFound if it does not exist.
func (s *Store) LoadSession(ctx context.Context, id string) (*workout.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ActiveSession returns the user's non-finished session.
// Returns ErrNotFound if the user has none.
func (s *Store) ActiveSession(ctx context.Context, userID string) (*workout.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state FROM sessions
		WHERE user_id = ? AND phase != 'finished'
	`, userID)
	return scanSession(row)
}

// DeleteSession removes the session. Deleting a missing session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func scanSession(row *sql.Row) (*workout.Session, error) {
	var state string
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	var sess workout.Session
	if err := json.Unmarshal([]byte(state), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}
