package workout

import (
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultRestSeconds is the rest applied when a step has no configured rest.
const DefaultRestSeconds = 60

// Phase is the state of a session.
type Phase string

const (
	PhaseActive   Phase = "active-step"
	PhaseResting  Phase = "resting"
	PhaseFinished Phase = "finished"
)

// CompletedItem is one completed set.
type CompletedItem struct {
	StepIndex    int       `json:"stepIndex"`
	SubStepIndex int       `json:"subStepIndex"`
	Magnitude    *float64  `json:"magnitude"`
	Repetitions  int       `json:"repetitions"`
	Note         string    `json:"note,omitempty"`
	CompletedAt  time.Time `json:"completedAt"`
}

// Session is one in-progress guided workout.
//
// INVARIANTS:
//   - ID, UserID, PlanID and PlanDayID never change after New
//   - CompletedItems only grows
//   - (StepIndex, SubStepIndex) of CompletedItems are non-decreasing
//   - RestRemainingSeconds is nil unless Phase == PhaseResting
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	PlanID    string `json:"planId"`
	PlanDayID string `json:"planDayId"`

	StepIndex    int   `json:"stepIndex"`
	SubStepIndex int   `json:"subStepIndex"`
	Phase        Phase `json:"phase"`

	ElapsedSeconds       int        `json:"elapsedSeconds"`
	RestRemainingSeconds *int       `json:"restRemainingSeconds"`
	StartedAt            time.Time  `json:"startedAt"`
	PausedAt             *time.Time `json:"pausedAt"`
	LastUpdatedAt        time.Time  `json:"lastUpdatedAt"`
	FinishedAt           *time.Time `json:"finishedAt,omitempty"`

	CompletedItems []CompletedItem `json:"completedItems"`

	Day Day `json:"day"`
}

// New creates a session positioned on the first set of the first step.
func New(id, userID, planID string, day Day, now time.Time) (*Session, error) {
	if id == "" || userID == "" {
		return nil, invalidPlan("session id and user id are required")
	}
	if err := day.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:             id,
		UserID:         userID,
		PlanID:         planID,
		PlanDayID:      day.ID,
		Phase:          PhaseActive,
		StartedAt:      now,
		LastUpdatedAt:  now,
		CompletedItems: []CompletedItem{},
		Day:            day.Normalize(),
	}, nil
}

// Finished reports whether the session reached its terminal phase.
func (s *Session) Finished() bool {
	return s.Phase == PhaseFinished
}

// Paused reports whether the session is paused.
func (s *Session) Paused() bool {
	return s.PausedAt != nil
}

// Authorize fails unless the session has the given id and belongs to userID.
func (s *Session) Authorize(userID, sessionID string) error {
	if s.ID != sessionID {
		return invalidOperation(s, "session id mismatch: got %q", sessionID)
	}
	if s.UserID != userID {
		return invalidOperation(s, "session does not belong to user %q", userID)
	}
	return nil
}

// CompleteSubStep records the set at the cursor. It does not change phase.
func (s *Session) CompleteSubStep(now time.Time, magnitude *float64, reps int, note string) error {
	if s.Finished() {
		return invalidOperation(s, "cannot complete a set on a finished session")
	}
	if reps < 0 {
		return invalidOperation(s, "repetitions must not be negative, got %d", reps)
	}

	var m *float64
	if magnitude != nil {
		v := *magnitude
		m = &v
	}
	s.CompletedItems = append(s.CompletedItems, CompletedItem{
		StepIndex:    s.StepIndex,
		SubStepIndex: s.SubStepIndex,
		Magnitude:    m,
		Repetitions:  reps,
		Note:         norm.NFC.String(note),
		CompletedAt:  now,
	})
	s.LastUpdatedAt = now
	return nil
}

// EnterRest starts a rest of restSeconds. A nil rest uses DefaultRestSeconds.
func (s *Session) EnterRest(now time.Time, restSeconds *int) error {
	if s.Phase != PhaseActive {
		return invalidOperation(s, "rest can only start from %s", PhaseActive)
	}
	rest := DefaultRestSeconds
	if restSeconds != nil {
		rest = max(*restSeconds, 0)
	}
	s.Phase = PhaseResting
	s.RestRemainingSeconds = &rest
	s.ElapsedSeconds = 0
	s.LastUpdatedAt = now
	return nil
}

// AdvanceSubStep moves to the next set of the current step.
func (s *Session) AdvanceSubStep(now time.Time) error {
	if s.Phase != PhaseResting {
		return invalidOperation(s, "next set requires %s", PhaseResting)
	}
	s.SubStepIndex++
	s.activate(now)
	return nil
}

// AdvanceStep moves to the first set of the next step.
func (s *Session) AdvanceStep(now time.Time) error {
	if s.Phase != PhaseResting {
		return invalidOperation(s, "next step requires %s", PhaseResting)
	}
	s.StepIndex++
	s.SubStepIndex = 0
	s.activate(now)
	return nil
}

// EndRest returns to the active phase without moving the cursor.
func (s *Session) EndRest(now time.Time) error {
	if s.Phase != PhaseResting {
		return invalidOperation(s, "not resting")
	}
	s.activate(now)
	return nil
}

func (s *Session) activate(now time.Time) {
	s.Phase = PhaseActive
	s.RestRemainingSeconds = nil
	s.ElapsedSeconds = 0
	s.LastUpdatedAt = now
}

// Finish moves the session to the terminal phase. Finishing twice is a no-op.
func (s *Session) Finish(now time.Time) error {
	if s.Finished() {
		return nil
	}
	s.Phase = PhaseFinished
	s.RestRemainingSeconds = nil
	s.FinishedAt = &now
	s.LastUpdatedAt = now
	return nil
}

// Pause records the pause time. Pausing a paused session keeps the first
// pause time.
func (s *Session) Pause(now time.Time) error {
	if s.Finished() {
		return invalidOperation(s, "cannot pause a finished session")
	}
	if s.PausedAt == nil {
		s.PausedAt = &now
	}
	return nil
}

// Resume clears the pause time.
func (s *Session) Resume(now time.Time) error {
	if s.Finished() {
		return invalidOperation(s, "cannot resume a finished session")
	}
	s.PausedAt = nil
	s.LastUpdatedAt = now
	return nil
}

// TotalElapsedSeconds is the wall-clock duration since the start, frozen at
// the pause time while paused.
func (s *Session) TotalElapsedSeconds(now time.Time) int {
	end := now
	if s.PausedAt != nil {
		end = *s.PausedAt
	}
	d := end.Sub(s.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// Tick advances the phase timer by seconds: the elapsed counter while
// active, the rest countdown while resting. Paused sessions do not tick.
// restDone reports that the rest countdown reached zero.
func (s *Session) Tick(now time.Time, seconds int) (restDone bool, err error) {
	if s.Finished() {
		return false, invalidOperation(s, "cannot tick a finished session")
	}
	if seconds < 0 {
		return false, invalidOperation(s, "tick must not be negative, got %d", seconds)
	}
	if s.Paused() {
		return false, nil
	}
	switch s.Phase {
	case PhaseActive:
		s.ElapsedSeconds += seconds
	case PhaseResting:
		left := 0
		if s.RestRemainingSeconds != nil {
			left = max(*s.RestRemainingSeconds-seconds, 0)
		}
		s.RestRemainingSeconds = &left
		restDone = left == 0
	}
	s.LastUpdatedAt = now
	return restDone, nil
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.CompletedItems = make([]CompletedItem, len(s.CompletedItems))
	for i, it := range s.CompletedItems {
		if it.Magnitude != nil {
			m := *it.Magnitude
			it.Magnitude = &m
		}
		c.CompletedItems[i] = it
	}
	if s.RestRemainingSeconds != nil {
		r := *s.RestRemainingSeconds
		c.RestRemainingSeconds = &r
	}
	if s.PausedAt != nil {
		p := *s.PausedAt
		c.PausedAt = &p
	}
	if s.FinishedAt != nil {
		f := *s.FinishedAt
		c.FinishedAt = &f
	}
	c.Day.Steps = append([]Step(nil), s.Day.Steps...)
	return &c
}

// completed reports whether the set at (step, sub) has been recorded.
func (s *Session) completed(step, sub int) bool {
	for i := len(s.CompletedItems) - 1; i >= 0; i-- {
		it := s.CompletedItems[i]
		if it.StepIndex == step && it.SubStepIndex == sub {
			return true
		}
		if it.StepIndex < step || (it.StepIndex == step && it.SubStepIndex < sub) {
			return false
		}
	}
	return false
}
