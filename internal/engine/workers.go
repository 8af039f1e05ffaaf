package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/agent"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/bridge"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

var errNoSpawner = errors.New("no worker spawner configured")

// Worker templates requested per role.
const (
	QATemplate  = "omega-3-qa-agent"
	DevTemplate = "omega-3-dev-agent"
)

// language maps a kit name to the language/framework pair handed to the
// dev worker.
var language = map[string][2]string{
	"jest": {"javascript", "node"},
	"go":   {"go", "go test"},
}

func qaDescriptor(req Request, c types.Cycle, kit string, now time.Time) agent.Descriptor {
	purpose := "RED tests for " + c.Interface
	return agent.Descriptor{
		Name:         req.Module + "-qa-" + c.ID,
		Role:         agent.RoleQA,
		Purpose:      purpose,
		Template:     QATemplate,
		Capabilities: []string{"testing"},
		Tools:        []string{"Read", "Write"},
		Params:       map[string]string{"testType": "unit", "cycle": c.ID, "runner": kit},
		Handoff:      handoff(req, c, "qa", agent.RoleQA, purpose, types.PhaseRed, now),
	}
}

func devDescriptor(req Request, c types.Cycle, kit string, now time.Time) agent.Descriptor {
	purpose := "GREEN impl for " + c.Interface
	params := map[string]string{"cycle": c.ID, "runner": kit}
	if lf, ok := language[kit]; ok {
		params["language"], params["framework"] = lf[0], lf[1]
	}
	return agent.Descriptor{
		Name:         req.Module + "-dev-" + c.ID,
		Role:         agent.RoleDev,
		Purpose:      purpose,
		Template:     DevTemplate,
		Capabilities: []string{"coding"},
		Tools:        []string{"Read", "Write"},
		Params:       params,
		Handoff:      handoff(req, c, "dev", agent.RoleDev, purpose, types.PhaseGreen, now),
	}
}

func handoff(req Request, c types.Cycle, to, taskType, purpose string, phase types.Phase, now time.Time) *bridge.Handoff {
	h := bridge.ToHandoff(bridge.HandoffInput{
		From: "orchestrator",
		To:   to,
		Task: &bridge.Task{
			Type:       taskType,
			Purpose:    purpose,
			Parameters: map[string]any{"cycle": c.ID},
		},
		Context: bridge.BuildContext(bridge.ContextInput{
			Module:             req.Module,
			DesignPath:         req.DesignPath,
			PlanPath:           req.PlanPath,
			InterfaceSignature: c.Interface,
			Cycle:              c.ID,
			Phase:              string(phase),
		}),
		Now: now,
	})
	return &h
}

// spawn requests one worker. Failures are logged and annotated on the
// record; they never fail the cycle.
func (e *Engine) spawn(ctx context.Context, d agent.Descriptor) types.WorkerRecord {
	rec := types.WorkerRecord{Name: d.Name, Role: d.Role}
	if e.spawner == nil {
		rec.Error = errNoSpawner.Error()
		e.tel.ObserveSpawnFailure(d.Role)
		return rec
	}
	h, err := e.spawner.Spawn(ctx, d)
	if err != nil {
		rec.Error = err.Error()
		e.tel.ObserveSpawnFailure(d.Role)
		e.logger.Warn("worker spawn failed", zap.String("worker", d.Name), zap.Error(err))
		return rec
	}
	rec.ID = h.ID
	return rec
}
