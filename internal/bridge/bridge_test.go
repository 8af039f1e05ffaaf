package bridge_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/bridge"
)

func TestBuildContext_NullSessionFields(t *testing.T) {
	ctx := bridge.BuildContext(bridge.ContextInput{
		Module:             "auth",
		DesignPath:         "design.md",
		PlanPath:           "tdd_plan.md",
		InterfaceSignature: "function login(user) {",
	})

	data, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"module": "auth",
		"designPath": "design.md",
		"planPath": "tdd_plan.md",
		"interfaceSignature": "function login(user) {",
		"session": {"sid": null, "cycle": null, "phase": null, "round": null}
	}`, string(data))
}

func TestBuildContext_KeepsZeroRound(t *testing.T) {
	round := 0
	ctx := bridge.BuildContext(bridge.ContextInput{Module: "m", Cycle: "CYCLE_1", Phase: "RED", Round: &round})

	require.NotNil(t, ctx.Session.Round)
	assert.Equal(t, 0, *ctx.Session.Round)
	require.NotNil(t, ctx.Session.Cycle)
	assert.Equal(t, "CYCLE_1", *ctx.Session.Cycle)
	assert.Nil(t, ctx.Session.SID)
}

func TestToHandoff_Defaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := bridge.ToHandoff(bridge.HandoffInput{From: "orchestrator", To: "qa", Now: now})

	assert.Equal(t, "general", h.Task.Type)
	assert.Equal(t, "unspecified", h.Task.Purpose)
	assert.NotNil(t, h.Task.Parameters)
	assert.Empty(t, h.Task.Parameters)
	assert.Equal(t, "2026-01-02T03:04:05Z", h.Metadata["timestamp"])
}

func TestToHandoff_KeepsSuppliedValues(t *testing.T) {
	h := bridge.ToHandoff(bridge.HandoffInput{
		From: "orchestrator",
		To:   "dev",
		Task: &bridge.Task{Type: "implementation", Purpose: "GREEN", Parameters: map[string]any{"k": 1}},
		Metadata: map[string]any{
			"timestamp": "2020-01-01T00:00:00Z",
			"runId":     "abc",
		},
	})

	assert.Equal(t, "implementation", h.Task.Type)
	assert.Equal(t, "GREEN", h.Task.Purpose)
	assert.Equal(t, 1, h.Task.Parameters["k"])
	assert.Equal(t, "2020-01-01T00:00:00Z", h.Metadata["timestamp"])
	assert.Equal(t, "abc", h.Metadata["runId"])
}

func TestToHandoff_DoesNotMutateInputMetadata(t *testing.T) {
	meta := map[string]any{"runId": "x"}
	bridge.ToHandoff(bridge.HandoffInput{Metadata: meta})
	_, stamped := meta["timestamp"]
	assert.False(t, stamped)
}
