package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	phase   string
	records map[string]int
	err     error
}

func (f fakeState) activePhase(context.Context) (string, error) { return f.phase, f.err }

func (f fakeState) recordCount(_ context.Context, c string) (int, error) {
	return f.records[c], f.err
}

var requests = []string{
	"POST /api/sessions",
	"PUT /api/sessions/id-0001",
	"PUT /api/sessions/id-0001",
	"POST /api/personal-records",
}

func TestAssertRequestOrder(t *testing.T) {
	tests := []struct {
		name string
		want []string
		ok   bool
	}{
		{"in order", []string{"POST /api/sessions", "POST /api/personal-records"}, true},
		{"repeated", []string{"PUT /api/sessions/id-0001", "PUT /api/sessions/id-0001"}, true},
		{"too many repeats", []string{"POST /api/sessions", "POST /api/sessions"}, false},
		{"reversed", []string{"POST /api/personal-records", "POST /api/sessions"}, false},
		{"missing", []string{"DELETE /api/sessions/id-0001"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertRequestOrder(requests, tt.want)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertRequestOrder, ae.Type)
		})
	}
}

func TestAssertRequestCount(t *testing.T) {
	assert.NoError(t, assertRequestCount(requests, "PUT /api/sessions/id-0001", 2))
	assert.NoError(t, assertRequestCount(requests, "DELETE /api/sessions/id-0001", 0))

	err := assertRequestCount(requests, "POST /api/sessions", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sent 1 times")
}

func TestAssertionError_ListsRequests(t *testing.T) {
	err := &AssertionError{Type: "request_count", Expected: "x", Actual: "y", Requests: requests[:1]}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: request_count")
	assert.Contains(t, msg, "  Expected: x")
	assert.Contains(t, msg, "[1] POST /api/sessions")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Requests = requests
	result.Queue = 2
	result.DeadLetters = 1
	state := fakeState{phase: "resting", records: map[string]int{"weight-entries": 3}}

	errs := EvaluateAssertions(context.Background(), result, []Assertion{
		{Type: AssertQueueLength, Count: 2},
		{Type: AssertDeadLetters, Count: 1},
		{Type: AssertSessionPhase, Phase: "resting"},
		{Type: AssertRecordCount, Collection: "weight-entries", Count: 3},
		{Type: AssertRequestCount, Request: "POST /api/sessions", Count: 1},
	}, state)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(context.Background(), result, []Assertion{
		{Type: AssertQueueLength, Count: 0},
		{Type: AssertSessionPhase, Phase: "none"},
	}, state)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[0]")
	assert.Contains(t, errs[1], "Actual: resting")
}

func TestEvaluateAssertions_StateError(t *testing.T) {
	errs := EvaluateAssertions(context.Background(), NewResult(),
		[]Assertion{{Type: AssertRecordCount, Collection: "splits"}},
		fakeState{err: errors.New("db closed")})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "db closed")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
