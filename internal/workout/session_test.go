package workout

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func testDay(steps, sets int, rest *int) Day {
	d := Day{ID: "day-1", Name: "Push"}
	for i := 0; i < steps; i++ {
		d.Steps = append(d.Steps, Step{
			Name:        fmt.Sprintf("Exercise %d", i+1),
			CatalogID:   ptr(fmt.Sprintf("ex-%d", i+1)),
			SubSteps:    sets,
			RestSeconds: rest,
		})
	}
	return d
}

func newTestSession(t *testing.T, day Day) *Session {
	t.Helper()
	s, err := New("sess-1", "user-1", "plan-1", day, t0)
	require.NoError(t, err)
	return s
}

func TestNew_InitialState(t *testing.T) {
	s := newTestSession(t, testDay(2, 3, nil))

	assert.Equal(t, PhaseActive, s.Phase)
	assert.Equal(t, 0, s.StepIndex)
	assert.Equal(t, 0, s.SubStepIndex)
	assert.Equal(t, "day-1", s.PlanDayID)
	assert.Nil(t, s.RestRemainingSeconds)
	assert.Nil(t, s.PausedAt)
	assert.Empty(t, s.CompletedItems)
	assert.Equal(t, t0, s.StartedAt)
}

func TestNew_RejectsInvalidDay(t *testing.T) {
	_, err := New("s", "u", "p", Day{ID: "empty"}, t0)
	require.Error(t, err)
	assert.True(t, IsInvalidPlan(err))

	_, err = New("s", "u", "p", Day{ID: "d", Steps: []Step{{Name: "Squat", SubSteps: 0}}}, t0)
	assert.True(t, IsInvalidPlan(err))
}

func TestEnterRest_DefaultsTo60Seconds(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))
	s.ElapsedSeconds = 42

	require.NoError(t, s.EnterRest(t0, nil))
	assert.Equal(t, PhaseResting, s.Phase)
	require.NotNil(t, s.RestRemainingSeconds)
	assert.Equal(t, DefaultRestSeconds, *s.RestRemainingSeconds)
	assert.Equal(t, 0, s.ElapsedSeconds)
}

func TestEnterRest_OnlyFromActive(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))
	require.NoError(t, s.EnterRest(t0, ptr(90)))

	err := s.EnterRest(t0, ptr(90))
	assert.True(t, IsInvalidOperation(err))
}

func TestAdvanceSubStep(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))

	assert.True(t, IsInvalidOperation(s.AdvanceSubStep(t0)), "must rest first")

	require.NoError(t, s.EnterRest(t0, ptr(30)))
	require.NoError(t, s.AdvanceSubStep(t0.Add(30*time.Second)))
	assert.Equal(t, 1, s.SubStepIndex)
	assert.Equal(t, PhaseActive, s.Phase)
	assert.Nil(t, s.RestRemainingSeconds)
}

func TestAdvanceStep(t *testing.T) {
	s := newTestSession(t, testDay(2, 3, nil))
	s.SubStepIndex = 2

	require.NoError(t, s.EnterRest(t0, nil))
	require.NoError(t, s.AdvanceStep(t0))
	assert.Equal(t, 1, s.StepIndex)
	assert.Equal(t, 0, s.SubStepIndex)
	assert.Equal(t, PhaseActive, s.Phase)
	assert.Nil(t, s.RestRemainingSeconds)
	assert.Equal(t, 0, s.ElapsedSeconds)
}

func TestFinish_Idempotent(t *testing.T) {
	s := newTestSession(t, testDay(1, 1, nil))

	require.NoError(t, s.Finish(t0.Add(time.Minute)))
	require.NoError(t, s.Finish(t0.Add(2*time.Minute)))
	assert.Equal(t, PhaseFinished, s.Phase)
	require.NotNil(t, s.FinishedAt)
	assert.Equal(t, t0.Add(time.Minute), *s.FinishedAt, "second finish must not move the timestamp")
}

func TestFinishedSession_RejectsOperations(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))
	require.NoError(t, s.Finish(t0))

	ops := map[string]error{
		"complete": s.CompleteSubStep(t0, ptr(100.0), 5, ""),
		"rest":     s.EnterRest(t0, nil),
		"sub-step": s.AdvanceSubStep(t0),
		"step":     s.AdvanceStep(t0),
		"pause":    s.Pause(t0),
		"resume":   s.Resume(t0),
	}
	for name, err := range ops {
		assert.True(t, IsInvalidOperation(err), "%s should fail with INVALID_OPERATION, got %v", name, err)
	}

	_, err := s.Record(t0, SetInput{Repetitions: 5})
	assert.True(t, IsInvalidOperation(err))
	assert.Empty(t, s.CompletedItems)
}

func TestAuthorize(t *testing.T) {
	s := newTestSession(t, testDay(1, 1, nil))

	assert.NoError(t, s.Authorize("user-1", "sess-1"))
	assert.True(t, IsInvalidOperation(s.Authorize("user-2", "sess-1")))
	assert.True(t, IsInvalidOperation(s.Authorize("user-1", "sess-2")))
}

func TestCompleteSubStep_NormalizesNote(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))

	require.NoError(t, s.CompleteSubStep(t0, nil, 8, "e\u0301asy"))
	assert.Equal(t, "\u00e9asy", s.CompletedItems[0].Note)
	assert.Nil(t, s.CompletedItems[0].Magnitude)
}

func TestCompleteSubStep_CopiesMagnitude(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))
	w := 80.0

	require.NoError(t, s.CompleteSubStep(t0, &w, 8, ""))
	w = 999
	assert.Equal(t, 80.0, *s.CompletedItems[0].Magnitude)
}

func TestTotalElapsedSeconds_FrozenWhilePaused(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))

	assert.Equal(t, 90, s.TotalElapsedSeconds(t0.Add(90*time.Second)))

	require.NoError(t, s.Pause(t0.Add(2*time.Minute)))
	first := s.TotalElapsedSeconds(t0.Add(3 * time.Minute))
	for _, later := range []time.Duration{5 * time.Minute, time.Hour, 24 * time.Hour} {
		assert.Equal(t, first, s.TotalElapsedSeconds(t0.Add(later)))
	}
	assert.Equal(t, 120, first)

	require.NoError(t, s.Resume(t0.Add(10*time.Minute)))
	assert.Nil(t, s.PausedAt)
	assert.Equal(t, t0.Add(10*time.Minute), s.LastUpdatedAt)
	assert.Equal(t, 660, s.TotalElapsedSeconds(t0.Add(11*time.Minute)))
}

func TestPause_KeepsFirstPauseTime(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))

	require.NoError(t, s.Pause(t0.Add(time.Minute)))
	require.NoError(t, s.Pause(t0.Add(2*time.Minute)))
	assert.Equal(t, t0.Add(time.Minute), *s.PausedAt)
}

func TestTick(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, ptr(30)))

	done, err := s.Tick(t0, 10)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 10, s.ElapsedSeconds)

	require.NoError(t, s.EnterRest(t0, ptr(30)))
	done, err = s.Tick(t0, 20)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 10, *s.RestRemainingSeconds)

	require.NoError(t, s.Pause(t0))
	done, err = s.Tick(t0, 20)
	require.NoError(t, err)
	assert.False(t, done, "paused sessions do not tick")
	assert.Equal(t, 10, *s.RestRemainingSeconds)

	require.NoError(t, s.Resume(t0))
	done, err = s.Tick(t0, 25)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 0, *s.RestRemainingSeconds)
}

func TestClone_IsDeep(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))
	require.NoError(t, s.CompleteSubStep(t0, ptr(50.0), 5, ""))
	require.NoError(t, s.EnterRest(t0, ptr(30)))

	c := s.Clone()
	*c.CompletedItems[0].Magnitude = 70
	*c.RestRemainingSeconds = 1
	c.CompletedItems = append(c.CompletedItems, CompletedItem{})

	assert.Equal(t, 50.0, *s.CompletedItems[0].Magnitude)
	assert.Equal(t, 30, *s.RestRemainingSeconds)
	assert.Len(t, s.CompletedItems, 1)
}
