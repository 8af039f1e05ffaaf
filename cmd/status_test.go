package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/orchestrator"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

func TestRenderStatus_NotInstalled(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &orchestrator.Status{Module: "calc"})
	out := buf.String()
	if !strings.Contains(out, "sigma status: calc") {
		t.Errorf("missing title:\n%s", out)
	}
	if !strings.Contains(out, "sigma plan calc") {
		t.Errorf("missing plan hint:\n%s", out)
	}
}

func TestRenderStatus_Installed(t *testing.T) {
	st := &orchestrator.Status{
		Module:    "calc",
		Installed: true,
		ModuleStatus: &orchestrator.ModuleStatus{
			PlanStatus:        "plan_completed",
			TDDStatus:         types.SnapshotFailed,
			FailedCycles:      []string{"CYCLE_2", "CYCLE_3"},
			CoverageThreshold: types.Threshold{Lines: 80},
			ReviewSummary:     &types.ReviewSummary{TotalCycles: 3, PassedCycles: 1, Timestamp: "2024-03-04T05:06:07.008Z"},
		},
	}
	var buf bytes.Buffer
	renderStatus(&buf, st)
	out := buf.String()
	for _, want := range []string{
		"plan_completed",
		"failed",
		"CYCLE_2, CYCLE_3",
		"lines=80%",
		"1/3 passed",
		"2024-03-04T05:06:07.008Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatus_NoReviewNoFailures(t *testing.T) {
	st := &orchestrator.Status{
		Module:    "calc",
		Installed: true,
		ModuleStatus: &orchestrator.ModuleStatus{
			PlanStatus:   "unknown",
			TDDStatus:    "unknown",
			FailedCycles: []string{},
		},
	}
	var buf bytes.Buffer
	renderStatus(&buf, st)
	out := buf.String()
	if !strings.Contains(out, "none") {
		t.Errorf("expected no failed cycles marker:\n%s", out)
	}
	if !strings.Contains(out, "not run") {
		t.Errorf("expected review not run marker:\n%s", out)
	}
}
