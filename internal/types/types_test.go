package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

func boolPtr(b bool) *bool { return &b }

// cleanRun returns a cycle whose phases all behaved as expected.
func cleanRun() types.CycleRun {
	return types.CycleRun{
		ID: "CYCLE_1",
		RGR: types.RGR{
			Red:      types.PhaseRun{ExitCode: 1},
			Green:    types.PhaseRun{ExitCode: 0, CoverageGate: boolPtr(true)},
			Refactor: types.PhaseRun{ExitCode: 0, CoverageGate: boolPtr(true)},
		},
	}
}

// ---------------------------------------------------------------------------
// CycleRun.Failed
// ---------------------------------------------------------------------------

func TestCycleRunFailed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.CycleRun)
		want   bool
	}{
		{"clean cycle", func(*types.CycleRun) {}, false},
		{"red unexpectedly passed", func(c *types.CycleRun) { c.RGR.Red.ExitCode = 0 }, true},
		{"green exit non-zero", func(c *types.CycleRun) { c.RGR.Green.ExitCode = 1 }, true},
		{"refactor exit non-zero", func(c *types.CycleRun) { c.RGR.Refactor.ExitCode = 2 }, true},
		{"green gate false", func(c *types.CycleRun) { c.RGR.Green.CoverageGate = boolPtr(false) }, true},
		{"refactor gate false", func(c *types.CycleRun) { c.RGR.Refactor.CoverageGate = boolPtr(false) }, true},
		{"refactor gate missing", func(c *types.CycleRun) { c.RGR.Refactor.CoverageGate = nil }, true},
		{"red timed out is still a red", func(c *types.CycleRun) { c.RGR.Red.ExitCode = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := cleanRun()
			tt.mutate(&run)
			assert.Equal(t, tt.want, run.Failed())
		})
	}
}

// ---------------------------------------------------------------------------
// Threshold.Validate
// ---------------------------------------------------------------------------

func TestThresholdValidate(t *testing.T) {
	assert.NoError(t, types.Threshold{}.Validate())
	assert.NoError(t, types.Threshold{Lines: 100, Functions: 50}.Validate())
	assert.Error(t, types.Threshold{Branches: -1}.Validate())
	assert.Error(t, types.Threshold{Statements: 101}.Validate())
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

func TestAllPhases_Order(t *testing.T) {
	assert.Equal(t, []types.Phase{types.PhaseRed, types.PhaseGreen, types.PhaseRefactor}, types.AllPhases())
}

func TestCycleState_IsTerminal(t *testing.T) {
	assert.True(t, types.CycleStatePassed.IsTerminal())
	assert.True(t, types.CycleStateFailed.IsTerminal())
	assert.False(t, types.CycleStateGreenRun.IsTerminal())
	assert.False(t, types.CycleStatePlanned.IsTerminal())
}

func TestPhaseRun_RedOmitsCoverage(t *testing.T) {
	data, err := json.Marshal(types.PhaseRun{Status: "→RC", ExitCode: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "coverage")
	assert.NotContains(t, string(data), "coverageGate")
}

func TestPhaseCounts_JSONKeys(t *testing.T) {
	data, err := json.Marshal(types.PhaseCounts{Red: 1, Green: 2, Refactor: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"RED":1,"GREEN":2,"REFACTOR":3}`, string(data))
}
