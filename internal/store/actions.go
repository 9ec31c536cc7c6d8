package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/liftsync/internal/model"
)

// AppendAction inserts a pending action.
func (s *Store) AppendAction(ctx context.Context, a model.PendingAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_actions
		(id, operation, entity_type, entity_id, payload_kind, payload, enqueued_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		string(a.Operation),
		string(a.Entity),
		a.EntityID,
		string(a.Payload.Kind),
		[]byte(a.Payload.Body),
		toMillis(a.EnqueuedAt),
		a.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// ListActions returns every pending action ordered by enqueue time.
// Returns an empty slice (not nil) when the queue is empty.
func (s *Store) ListActions(ctx context.Context) ([]model.PendingAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, entity_type, entity_id, payload_kind, payload, enqueued_at, retry_count
		FROM pending_actions
		ORDER BY enqueued_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []model.PendingAction{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// DeleteAction removes a pending action by id.
func (s *Store) DeleteAction(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	return nil
}

// UpdateActionRetry persists a new retry count for a pending action.
// Returns ErrNotFound if the action does not exist.
func (s *Store) UpdateActionRetry(ctx context.Context, id string, retryCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_actions SET retry_count = ? WHERE id = ?
	`, retryCount, id)
	if err != nil {
		return fmt.Errorf("update action retry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action retry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update action retry %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountActions returns the number of pending actions.
func (s *Store) CountActions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

// DeadLetter moves an action from the pending collection to the dead-letter
// collection in one transaction.
func (s *Store) DeadLetter(ctx context.Context, d model.DeadLetterAction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dead letter: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dead_letters
		(id, operation, entity_type, entity_id, payload_kind, payload, enqueued_at, retry_count, failed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			retry_count = excluded.retry_count,
			failed_at = excluded.failed_at,
			error = excluded.error
	`,
		d.ID,
		string(d.Operation),
		string(d.Entity),
		d.EntityID,
		string(d.Payload.Kind),
		[]byte(d.Payload.Body),
		toMillis(d.EnqueuedAt),
		d.RetryCount,
		toMillis(d.FailedAt),
		d.Error,
	)
	if err != nil {
		return fmt.Errorf("dead letter: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, d.ID); err != nil {
		return fmt.Errorf("dead letter: delete pending: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dead letter: commit: %w", err)
	}
	return nil
}

// ListDeadLetters returns every dead-lettered action, most recent failure first.
func (s *Store) ListDeadLetters(ctx context.Context) ([]model.DeadLetterAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, entity_type, entity_id, payload_kind, payload, enqueued_at, retry_count, failed_at, error
		FROM dead_letters
		ORDER BY failed_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	letters := []model.DeadLetterAction{}
	for rows.Next() {
		var (
			d                  model.DeadLetterAction
			op, entity, kind   string
			payload            []byte
			enqueued, failedAt int64
		)
		if err := rows.Scan(&d.ID, &op, &entity, &d.EntityID, &kind, &payload, &enqueued, &d.RetryCount, &failedAt, &d.Error); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		d.Operation = model.OperationKind(op)
		d.Entity = model.EntityKind(entity)
		d.Payload = model.Payload{Kind: model.EntityKind(kind), Body: payload}
		d.EnqueuedAt = fromMillis(enqueued)
		d.FailedAt = fromMillis(failedAt)
		letters = append(letters, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return letters, nil
}

// RequeueDeadLetter moves a dead-lettered action back to the pending
// collection with a fresh retry budget and enqueue time.
// Returns ErrNotFound if no dead letter has the id.
func (s *Store) RequeueDeadLetter(ctx context.Context, id string, now time.Time) (model.PendingAction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PendingAction{}, fmt.Errorf("requeue: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	row := tx.QueryRowContext(ctx, `
		SELECT id, operation, entity_type, entity_id, payload_kind, payload, enqueued_at, retry_count
		FROM dead_letters WHERE id = ?
	`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PendingAction{}, fmt.Errorf("requeue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.PendingAction{}, fmt.Errorf("requeue: %w", err)
	}
	a.RetryCount = 0
	a.EnqueuedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_actions
		(id, operation, entity_type, entity_id, payload_kind, payload, enqueued_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`, a.ID, string(a.Operation), string(a.Entity), a.EntityID, string(a.Payload.Kind), []byte(a.Payload.Body), toMillis(now))
	if err != nil {
		return model.PendingAction{}, fmt.Errorf("requeue: insert pending: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
		return model.PendingAction{}, fmt.Errorf("requeue: delete dead letter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.PendingAction{}, fmt.Errorf("requeue: commit: %w", err)
	}
	return a, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (model.PendingAction, error) {
	var (
		a                model.PendingAction
		op, entity, kind string
		payload          []byte
		enqueued         int64
	)
	if err := row.Scan(&a.ID, &op, &entity, &a.EntityID, &kind, &payload, &enqueued, &a.RetryCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan action: %w", err)
	}
	a.Operation = model.OperationKind(op)
	a.Entity = model.EntityKind(entity)
	a.Payload = model.Payload{Kind: model.EntityKind(kind), Body: payload}
	a.EnqueuedAt = fromMillis(enqueued)
	return a, nil
}
