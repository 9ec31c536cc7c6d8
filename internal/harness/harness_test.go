package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := filepath.Base(path[:len(path)-len(filepath.Ext(path))])
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name should match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/offline_session_then_drain.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalSnapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ReportsExpectMismatch(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/online_session_finish.yaml")
	require.NoError(t, err)
	scenario.Flow[0].Expect = &Expect{Phase: "resting"}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], `flow[0] start: phase: expected "resting", got "active-step"`)
}

func TestRun_UnexpectedErrorFailsStep(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/online_session_finish.yaml")
	require.NoError(t, err)
	scenario.Flow = append([]Step{{Op: "finish"}}, scenario.Flow...)
	scenario.Assertions = []Assertion{{Type: AssertQueueLength}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "NO_SESSION", result.Trace[0].Error)
	assert.Contains(t, result.Errors[0], "unexpected error NO_SESSION")
}

func TestRun_FailingAssertion(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/dead_letter_and_requeue.yaml")
	require.NoError(t, err)
	scenario.Assertions = []Assertion{{Type: AssertRequestCount, Request: "POST /api/weight-entries", Count: 2}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "sent 4 times")
}

func TestRun_MissingPlanDay(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/online_session_finish.yaml")
	require.NoError(t, err)
	scenario.Day = "legs"

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select plan day")
}
