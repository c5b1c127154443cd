package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oscilloscope() AssetFixture {
	return AssetFixture{AssetID: "AST-1", AssetName: "Oscilloscope", Status: "available"}
}

func TestRun_OnlineCheckSent(t *testing.T) {
	scenario := &Scenario{
		Name:        "online_sent",
		Description: "A check made online is sent immediately",
		Online:      true,
		Remote:      RemoteFixture{Assets: []AssetFixture{oscilloscope()}},
		Steps: []Step{
			{Do: StepScan, Payload: "AST-1", Expect: map[string]interface{}{"source": "remote"}},
			{Do: StepSubmit, Status: "available", Date: "2024-01-15", Expect: map[string]interface{}{"disposition": "sent", "state": "idle"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Subject: SubjectQueue, Expect: map[string]interface{}{"length": 0}},
			{Type: AssertFinalState, Subject: SubjectRemote, Expect: map[string]interface{}{"submitted": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, 1, result.Trace[0].Seq)
	assert.Equal(t, "AST-1", result.Trace[0].Input["payload"])
	assert.Equal(t, "2024-01-15", result.Trace[1].Input["date"])
}

func TestRun_DefaultDateFromClock(t *testing.T) {
	scenario := &Scenario{
		Name:        "default_date",
		Description: "Submit without a date uses the harness clock",
		Online:      false,
		Cache:       []AssetFixture{oscilloscope()},
		Steps: []Step{
			{Do: StepScan, Payload: "AST-1"},
			{Do: StepSubmit, Status: "lost"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: StepSubmit, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, Epoch.Format("2006-01-02"), result.Trace[1].Input["date"])
	assert.Equal(t, "entry-0001", result.Trace[1].Outcome["entry_id"])
}

func TestRun_StepExpectationFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectation",
		Description: "A step whose outcome disagrees with expect fails the result",
		Online:      false,
		Steps: []Step{
			{Do: StepScan, Payload: "AST-1", Expect: map[string]interface{}{"state": "reviewing"}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: StepScan, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] scan: state: expected reviewing, got idle")
	assert.Equal(t, "NOT_FOUND", result.Trace[0].Outcome["error"])
}

func TestRun_AssertionFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_assertion",
		Description: "A failing assertion fails the result",
		Online:      false,
		Cache:       []AssetFixture{oscilloscope()},
		Steps: []Step{
			{Do: StepScan, Payload: "AST-1"},
			{Do: StepSubmit, Status: "available"},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Subject: SubjectQueue, Expect: map[string]interface{}{"length": 0}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "length: expected 0, got 1")
}

func TestRun_ConnectivityFlips(t *testing.T) {
	scenario := &Scenario{
		Name:        "flips",
		Description: "Connectivity steps report the monitor's view",
		Online:      true,
		Steps: []Step{
			{Do: StepGoOffline, Expect: map[string]interface{}{"connected": false}},
			{Do: StepGoOnline, Expect: map[string]interface{}{"connected": true}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceOrder, Actions: []string{StepGoOffline, StepGoOnline}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_InvalidCheckStaysReviewing(t *testing.T) {
	scenario := &Scenario{
		Name:        "invalid_check",
		Description: "A check with an unknown status is refused locally",
		Online:      true,
		Remote:      RemoteFixture{Assets: []AssetFixture{oscilloscope()}},
		Steps: []Step{
			{Do: StepScan, Payload: "AST-1"},
			{Do: StepSubmit, Status: "exploded", Expect: map[string]interface{}{"state": "reviewing", "error": "INVALID_CHECK"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Subject: SubjectRemote, Expect: map[string]interface{}{"submit_calls": 0}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_UnknownStep(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown",
		Description: "Unknown steps stop the run",
		Steps:       []Step{{Do: "dance"}},
		Assertions:  []Assertion{{Type: AssertTraceCount, Action: "dance"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown step "dance"`)
}

func TestRun_Isolated(t *testing.T) {
	scenario := &Scenario{
		Name:        "isolated",
		Description: "Each run starts from an empty queue",
		Online:      false,
		Cache:       []AssetFixture{oscilloscope()},
		Steps: []Step{
			{Do: StepScan, Payload: "AST-1"},
			{Do: StepSubmit, Status: "available", Expect: map[string]interface{}{"entry_id": "entry-0001"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Subject: SubjectQueue, Expect: map[string]interface{}{"length": 1}},
		},
	}

	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
	}
}
