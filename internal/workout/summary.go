package workout

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// LogEntry is the per-step aggregate handed to the workout log.
type LogEntry struct {
	StepIndex int      `json:"stepIndex"`
	CatalogID string   `json:"exerciseId"`
	Name      string   `json:"name"`
	Sets      int      `json:"sets"`
	Load      *float64 `json:"weight"`
	Reps      string   `json:"reps"`
}

// Summary is the one-time aggregation of a finished session.
type Summary struct {
	SessionID       string     `json:"sessionId"`
	UserID          string     `json:"userId"`
	PlanID          string     `json:"planId"`
	PlanDayID       string     `json:"planDayId"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      time.Time  `json:"finishedAt"`
	DurationMinutes int        `json:"durationMinutes"`
	Entries         []LogEntry `json:"entries"`
}

// Summarize groups completed sets by step. Each entry carries the set
// count, the heaviest non-nil magnitude and the summed repetitions. Steps
// without a catalog id are left out.
func Summarize(s *Session, finishedAt time.Time) Summary {
	type agg struct {
		sets int
		load *float64
		reps int
	}
	byStep := make(map[int]*agg)
	for _, it := range s.CompletedItems {
		a, ok := byStep[it.StepIndex]
		if !ok {
			a = &agg{}
			byStep[it.StepIndex] = a
		}
		a.sets++
		a.reps += it.Repetitions
		if it.Magnitude != nil && (a.load == nil || *it.Magnitude > *a.load) {
			m := *it.Magnitude
			a.load = &m
		}
	}

	indexes := make([]int, 0, len(byStep))
	for i := range byStep {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	entries := make([]LogEntry, 0, len(indexes))
	for _, i := range indexes {
		if i >= len(s.Day.Steps) || s.Day.Steps[i].CatalogID == nil {
			continue
		}
		st := s.Day.Steps[i]
		a := byStep[i]
		entries = append(entries, LogEntry{
			StepIndex: i,
			CatalogID: *st.CatalogID,
			Name:      st.Name,
			Sets:      a.sets,
			Load:      a.load,
			Reps:      strconv.Itoa(a.reps),
		})
	}

	return Summary{
		SessionID:       s.ID,
		UserID:          s.UserID,
		PlanID:          s.PlanID,
		PlanDayID:       s.PlanDayID,
		StartedAt:       s.StartedAt,
		FinishedAt:      finishedAt,
		DurationMinutes: int(math.Round(float64(finishedAt.Sub(s.StartedAt).Milliseconds()) / 60000)),
		Entries:         entries,
	}
}
