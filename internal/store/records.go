package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/liftsync/internal/model"
)

// PutRecord inserts or replaces one record of a collection.
func (s *Store) PutRecord(ctx context.Context, r model.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, user_id, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			user_id = excluded.user_id,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, string(r.Collection), r.ID, r.UserID, string(r.Data), toMillis(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// GetRecord returns one record. Returns ErrNotFound if absent.
func (s *Store) GetRecord(ctx context.Context, collection model.Collection, id string) (model.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, id, user_id, data, updated_at FROM records
		WHERE collection = ? AND id = ?
	`, string(collection), id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, ErrNotFound
	}
	return r, err
}

// ListRecords returns the records of a collection. An empty userID lists
// every user's records.
func (s *Store) ListRecords(ctx context.Context, collection model.Collection, userID string) ([]model.Record, error) {
	query := `
		SELECT collection, id, user_id, data, updated_at FROM records
		WHERE collection = ?`
	args := []any{string(collection)}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// ReplaceCollection overwrites the local copy of a collection with the
// records of a full server pull. Local records whose ids are absent from
// the pull are deleted. Returns the number of evicted records.
func (s *Store) ReplaceCollection(ctx context.Context, collection model.Collection, records []model.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("replace collection: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	keep := make(map[string]struct{}, len(records))
	for _, r := range records {
		keep[r.ID] = struct{}{}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (collection, id, user_id, data, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				user_id = excluded.user_id,
				data = excluded.data,
				updated_at = excluded.updated_at
		`, string(collection), r.ID, r.UserID, string(r.Data), toMillis(r.UpdatedAt))
		if err != nil {
			return 0, fmt.Errorf("replace collection %s: upsert %s: %w", collection, r.ID, err)
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM records WHERE collection = ?`, string(collection))
	if err != nil {
		return 0, fmt.Errorf("replace collection %s: list ids: %w", collection, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("replace collection %s: scan id: %w", collection, err)
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("replace collection %s: iterate ids: %w", collection, err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, string(collection), id); err != nil {
			return 0, fmt.Errorf("replace collection %s: evict %s: %w", collection, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("replace collection %s: commit: %w", collection, err)
	}
	return len(stale), nil
}

func scanRecord(row rowScanner) (model.Record, error) {
	var (
		r          model.Record
		collection string
		data       string
		updatedAt  int64
	)
	if err := row.Scan(&collection, &r.ID, &r.UserID, &data, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan record: %w", err)
	}
	r.Collection = model.Collection(collection)
	r.Data = []byte(data)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}
