package syncq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/remote"
)

// RecordStore holds the canonical collections refreshed by a pull.
// *store.Store implements it.
type RecordStore interface {
	ReplaceCollection(ctx context.Context, collection model.Collection, records []model.Record) (int, error)
}

// Pull names one server collection and its full-set endpoint.
type Pull struct {
	Collection model.Collection
	Path       string
}

// DefaultPulls returns the pull endpoint for every cached collection.
func DefaultPulls() []Pull {
	return []Pull{
		{Collection: model.CollectionExercises, Path: "/api/exercises"},
		{Collection: model.CollectionSplits, Path: "/api/splits"},
		{Collection: model.CollectionPersonalRecords, Path: "/api/personal-records"},
		{Collection: model.CollectionWeightEntries, Path: "/api/weight-entries"},
	}
}

// PullResult reports one refreshed collection.
type PullResult struct {
	Collection model.Collection `json:"collection"`
	Records    int              `json:"records"`
	Evicted    int              `json:"evicted"`
}

// pullAll refreshes every configured collection. A failing collection
// does not stop the others; failures are joined.
func (e *Engine) pullAll(ctx context.Context) ([]PullResult, error) {
	if e.records == nil {
		return nil, nil
	}
	var results []PullResult
	var errs []error
	for _, p := range e.pulls {
		res, err := e.pullOne(ctx, p)
		if err != nil {
			slog.Warn("pull failed", "collection", p.Collection, "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Debug("collection pulled",
			"collection", res.Collection,
			"records", res.Records,
			"evicted", res.Evicted,
		)
		results = append(results, res)
	}
	return results, joinErrors(errs...)
}

// pullOne fetches the full set for p and replaces the local copy,
// evicting rows the server no longer returns.
func (e *Engine) pullOne(ctx context.Context, p Pull) (PullResult, error) {
	resp, err := e.transport.Do(ctx, remote.Request{Method: http.MethodGet, Path: p.Path})
	if err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", p.Collection, err)
	}
	if !resp.OK() {
		return PullResult{}, fmt.Errorf("pull %s: %w", p.Collection,
			&remote.StatusError{Method: http.MethodGet, Path: p.Path, Status: resp.Status, Body: resp.Body})
	}

	records, err := decodeRecords(p.Collection, resp.Body, e.clock)
	if err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", p.Collection, err)
	}
	evicted, err := e.records.ReplaceCollection(ctx, p.Collection, records)
	if err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", p.Collection, err)
	}
	return PullResult{Collection: p.Collection, Records: len(records), Evicted: evicted}, nil
}

// recordHeader holds the fields every pulled object must or may carry.
type recordHeader struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// decodeRecords parses a JSON array of objects. Objects without an id
// are skipped.
func decodeRecords(collection model.Collection, body []byte, clock Clock) ([]model.Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	now := clock.Now()
	records := make([]model.Record, 0, len(items))
	for _, raw := range items {
		var h recordHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		if h.ID == "" {
			slog.Warn("pulled record without id skipped", "collection", collection)
			continue
		}
		records = append(records, model.Record{
			Collection: collection,
			ID:         h.ID,
			UserID:     h.UserID,
			Data:       raw,
			UpdatedAt:  now,
		})
	}
	return records, nil
}
