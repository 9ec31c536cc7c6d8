package workout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_SkipsStepsWithoutCatalogID(t *testing.T) {
	day := testDay(3, 1, nil)
	day.Steps[1].CatalogID = nil
	s := newTestSession(t, day)
	runWorkout(t, s, []float64{40, 50, 60}, 12)

	sum := Summarize(s, s.StartedAt.Add(3*time.Minute))
	require.Len(t, sum.Entries, 2)
	assert.Equal(t, 0, sum.Entries[0].StepIndex)
	assert.Equal(t, 2, sum.Entries[1].StepIndex)
}

func TestSummarize_LoadIgnoresNilMagnitudes(t *testing.T) {
	s := newTestSession(t, testDay(1, 3, nil))
	require.NoError(t, s.CompleteSubStep(t0, nil, 10, ""))
	require.NoError(t, s.CompleteSubStep(t0, ptr(20.0), 8, ""))
	require.NoError(t, s.CompleteSubStep(t0, nil, 6, ""))

	sum := Summarize(s, t0)
	require.Len(t, sum.Entries, 1)
	assert.Equal(t, 20.0, *sum.Entries[0].Load)
	assert.Equal(t, "24", sum.Entries[0].Reps)
	assert.Equal(t, 3, sum.Entries[0].Sets)
}

func TestSummarize_BodyweightOnlyHasNilLoad(t *testing.T) {
	s := newTestSession(t, testDay(1, 2, nil))
	require.NoError(t, s.CompleteSubStep(t0, nil, 15, ""))

	sum := Summarize(s, t0)
	require.Len(t, sum.Entries, 1)
	assert.Nil(t, sum.Entries[0].Load)
}

func TestSummarize_DurationRoundsToNearestMinute(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{29 * time.Second, 0},
		{30 * time.Second, 1},
		{89 * time.Second, 1},
		{90 * time.Second, 2},
		{47*time.Minute + 10*time.Second, 47},
	}
	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			s := newTestSession(t, testDay(1, 1, nil))
			assert.Equal(t, tt.want, Summarize(s, t0.Add(tt.elapsed)).DurationMinutes)
		})
	}
}
