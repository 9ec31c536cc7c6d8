package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/workout"
)

// ErrInvalidWeight is returned by LogWeight for non-positive weights.
var ErrInvalidWeight = errors.New("weight must be a positive number")

// recordPersonalBests compares the heaviest set of every catalog-linked
// step against the user's cached personal records and stores and mirrors
// a new record for each exercise that was beaten.
func (t *Tracker) recordPersonalBests(ctx context.Context, sess *workout.Session) ([]model.PersonalRecord, error) {
	best, err := t.bestLoads(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	var out []model.PersonalRecord
	for _, top := range heaviestSets(sess) {
		if prev, ok := best[top.exerciseID]; ok && top.weight <= prev {
			continue
		}
		pr := model.PersonalRecord{
			ID:         t.ids.Generate(),
			UserID:     sess.UserID,
			ExerciseID: top.exerciseID,
			Weight:     top.weight,
			Reps:       top.reps,
			SessionID:  sess.ID,
			AchievedAt: top.at,
		}
		if err := t.putRecord(ctx, model.CollectionPersonalRecords, pr.ID, pr.UserID, pr); err != nil {
			return nil, err
		}
		t.mirror(ctx, model.OpCreate, model.EntityPersonalRecord, pr.ID, pr)
		out = append(out, pr)
	}
	return out, nil
}

// bestLoads returns the heaviest recorded weight per exercise.
func (t *Tracker) bestLoads(ctx context.Context, userID string) (map[string]float64, error) {
	recs, err := t.store.ListRecords(ctx, model.CollectionPersonalRecords, userID)
	if err != nil {
		return nil, fmt.Errorf("load personal records: %w", err)
	}
	best := make(map[string]float64, len(recs))
	for _, r := range recs {
		var pr model.PersonalRecord
		if err := json.Unmarshal(r.Data, &pr); err != nil {
			slog.Warn("skipping unreadable personal record", "id", r.ID, "error", err)
			continue
		}
		if cur, ok := best[pr.ExerciseID]; !ok || pr.Weight > cur {
			best[pr.ExerciseID] = pr.Weight
		}
	}
	return best, nil
}

type topSet struct {
	exerciseID string
	weight     float64
	reps       int
	at         time.Time
}

// heaviestSets returns, in step order, the first heaviest weighted set of
// each catalog-linked step. Steps sharing a catalog id compete with each
// other.
func heaviestSets(sess *workout.Session) []topSet {
	byExercise := make(map[string]int)
	var out []topSet
	for _, it := range sess.CompletedItems {
		if it.Magnitude == nil || it.StepIndex >= len(sess.Day.Steps) {
			continue
		}
		cat := sess.Day.Steps[it.StepIndex].CatalogID
		if cat == nil {
			continue
		}
		w := *it.Magnitude
		if w <= 0 || math.IsNaN(w) {
			continue
		}
		i, seen := byExercise[*cat]
		if !seen {
			byExercise[*cat] = len(out)
			out = append(out, topSet{exerciseID: *cat, weight: w, reps: it.Repetitions, at: it.CompletedAt})
			continue
		}
		if w > out[i].weight {
			out[i] = topSet{exerciseID: *cat, weight: w, reps: it.Repetitions, at: it.CompletedAt}
		}
	}
	return out
}

// LogWeight records a body-weight entry locally and mirrors it.
func (t *Tracker) LogWeight(ctx context.Context, userID string, kg float64, note string) (model.WeightEntry, error) {
	if kg <= 0 || math.IsNaN(kg) || math.IsInf(kg, 0) {
		return model.WeightEntry{}, fmt.Errorf("%w: %v", ErrInvalidWeight, kg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := model.WeightEntry{
		ID:         t.ids.Generate(),
		UserID:     userID,
		Weight:     kg,
		Note:       note,
		RecordedAt: t.clock.Now(),
	}
	if err := t.putRecord(ctx, model.CollectionWeightEntries, e.ID, userID, e); err != nil {
		return model.WeightEntry{}, err
	}
	t.mirror(ctx, model.OpCreate, model.EntityWeightEntry, e.ID, e)
	slog.Info("weight logged", "entry_id", e.ID, "user_id", userID, "weight", kg)
	return e, nil
}

func (t *Tracker) putRecord(ctx context.Context, c model.Collection, id, userID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", c, err)
	}
	return t.store.PutRecord(ctx, model.Record{
		Collection: c,
		ID:         id,
		UserID:     userID,
		Data:       data,
		UpdatedAt:  t.clock.Now(),
	})
}
