package workout

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runWorkout records every set of the day, skipping each rest, and checks
// that CompletedItems grows by exactly one per set.
func runWorkout(t *testing.T, s *Session, weights []float64, reps int) {
	t.Helper()
	now := s.StartedAt
	for i := 0; !s.Finished(); i++ {
		require.Less(t, i, len(weights), "more sets recorded than expected")
		now = now.Add(time.Minute)
		before := len(s.CompletedItems)

		out, err := s.Record(now, SetInput{Magnitude: ptr(weights[i]), Repetitions: reps})
		require.NoError(t, err)
		require.Len(t, s.CompletedItems, before+1)

		if out.Transition != TransitionFinished {
			require.Equal(t, PhaseResting, s.Phase)
			require.NoError(t, s.SkipRest(now))
			require.Equal(t, PhaseActive, s.Phase)
		}
	}
}

func TestRecord_TwoStepsThreeSets(t *testing.T) {
	s := newTestSession(t, testDay(2, 3, ptr(90)))

	runWorkout(t, s, []float64{100, 100, 100, 110, 110, 110}, 10)

	assert.Equal(t, PhaseFinished, s.Phase)
	require.Len(t, s.CompletedItems, 6)

	sum := Summarize(s, s.StartedAt.Add(6*time.Minute))
	require.Len(t, sum.Entries, 2)
	assert.Equal(t, 100.0, *sum.Entries[0].Load)
	assert.Equal(t, 110.0, *sum.Entries[1].Load)
	assert.Equal(t, 3, sum.Entries[0].Sets)
	assert.Equal(t, "30", sum.Entries[0].Reps)
	assert.Equal(t, "ex-2", sum.Entries[1].CatalogID)
	assert.Equal(t, 6, sum.DurationMinutes)
}

func TestRecord_AlwaysFinishesOnLastSet(t *testing.T) {
	for steps := 1; steps <= 4; steps++ {
		for sets := 1; sets <= 4; sets++ {
			t.Run(fmt.Sprintf("%dx%d", steps, sets), func(t *testing.T) {
				s := newTestSession(t, testDay(steps, sets, nil))
				weights := make([]float64, steps*sets)
				runWorkout(t, s, weights, 5)

				assert.Equal(t, PhaseFinished, s.Phase)
				assert.Len(t, s.CompletedItems, steps*sets)
			})
		}
	}
}

func TestRecord_RestWithinStep(t *testing.T) {
	day := testDay(2, 3, ptr(45))
	s := newTestSession(t, day)

	out, err := s.Record(t0, SetInput{Magnitude: ptr(60.0), Repetitions: 8})
	require.NoError(t, err)
	assert.Equal(t, TransitionRest, out.Transition)
	assert.Equal(t, 45, out.RestSeconds)
	assert.Equal(t, PhaseResting, s.Phase)
	assert.Equal(t, 0, s.StepIndex)
	assert.Equal(t, 0, s.SubStepIndex, "sub-step advances when the rest ends")

	require.NoError(t, s.SkipRest(t0))
	assert.Equal(t, 1, s.SubStepIndex)
}

func TestRecord_StepChangeIsAtomic(t *testing.T) {
	day := testDay(2, 1, nil)
	day.Steps[0].RestSeconds = ptr(120)
	day.Steps[1].RestSeconds = ptr(15)
	s := newTestSession(t, day)

	out, err := s.Record(t0, SetInput{Magnitude: ptr(60.0), Repetitions: 8})
	require.NoError(t, err)

	assert.Equal(t, TransitionNextStep, out.Transition)
	assert.Equal(t, PhaseResting, s.Phase)
	assert.Equal(t, 1, s.StepIndex)
	assert.Equal(t, 0, s.SubStepIndex)
	require.NotNil(t, s.RestRemainingSeconds)
	assert.Equal(t, 120, *s.RestRemainingSeconds, "rest comes from the step just left")

	require.NoError(t, s.SkipRest(t0))
	assert.Equal(t, PhaseActive, s.Phase)
	assert.Equal(t, 1, s.StepIndex)
	assert.Equal(t, 0, s.SubStepIndex, "first set of the new step is not skipped")
}

func TestRecord_RequiresActivePhase(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))
	_, err := s.Record(t0, SetInput{Repetitions: 5})
	require.NoError(t, err)

	before := *s
	_, err = s.Record(t0, SetInput{Repetitions: 5})
	assert.True(t, IsInvalidOperation(err))
	assert.Len(t, s.CompletedItems, len(before.CompletedItems))
}

func TestRecord_FailureLeavesSessionUnchanged(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))

	_, err := s.Record(t0, SetInput{Repetitions: -1})
	assert.True(t, IsInvalidOperation(err))
	assert.Empty(t, s.CompletedItems)
	assert.Equal(t, PhaseActive, s.Phase)
}

func TestCompletedItems_NonDecreasingCursor(t *testing.T) {
	s := newTestSession(t, testDay(3, 2, nil))
	runWorkout(t, s, make([]float64, 6), 5)

	for i := 1; i < len(s.CompletedItems); i++ {
		prev, cur := s.CompletedItems[i-1], s.CompletedItems[i]
		ok := cur.StepIndex > prev.StepIndex ||
			(cur.StepIndex == prev.StepIndex && cur.SubStepIndex >= prev.SubStepIndex)
		assert.True(t, ok, "item %d (%d,%d) precedes item %d (%d,%d)",
			i, cur.StepIndex, cur.SubStepIndex, i-1, prev.StepIndex, prev.SubStepIndex)
	}
}

func TestSkipRest_NotResting(t *testing.T) {
	s := newTestSession(t, testDay(1, 2, nil))
	assert.True(t, IsInvalidOperation(s.SkipRest(t0)))
}
