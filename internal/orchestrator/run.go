package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/agent"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/engine"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/events"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/plan"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/runner"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/statusmap"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/templates"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// Worker artifacts inside a module's metrics directory.
const (
	WorkersDir   = "workers"
	RegistryFile = "agents.yaml"
)

// PlanOptions tune RunPlan.
type PlanOptions struct {
	Overwrite bool
}

// PlanResult is returned by RunPlan.
type PlanResult struct {
	Success    bool           `json:"success"`
	Status     string         `json:"status"`
	StatusCode statusmap.Code `json:"statusCode"`
	Module     string         `json:"module"`
	PlanPath   string         `json:"planPath"`
}

// RunPlan generates the module's plan from its design and records a plan
// snapshot. A missing design returns an error wrapping plan.ErrDesignNotFound.
func (o *Orchestrator) RunPlan(ctx context.Context, module string, opts PlanOptions) (*PlanResult, error) {
	if err := ValidateModuleName(module); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths := o.ResolveModulePaths(module)

	res, err := o.planLoop().Generate(plan.Request{
		Module:     module,
		DesignPath: paths.DesignPath,
		PlanPath:   paths.PlanPath,
		Overwrite:  opts.Overwrite,
	})
	if err != nil {
		return nil, err
	}

	snap := types.PlanSnapshot{
		Module:    module,
		Status:    string(res.StatusCode),
		PlanPath:  paths.PlanPath,
		Timestamp: timestamp(o.now()),
	}
	if _, err := o.store(module).Write(types.KindPlan, snap); err != nil {
		return nil, err
	}
	o.logger.Info("plan recorded",
		zap.String("module", module),
		zap.String("code", string(res.StatusCode)))

	return &PlanResult{
		Success:    res.Success,
		Status:     StatusPlanCompleted,
		StatusCode: res.StatusCode,
		Module:     module,
		PlanPath:   paths.PlanPath,
	}, nil
}

// TDDOptions override the orchestrator's defaults for one run.
type TDDOptions struct {
	// Parallelism overrides Options.Parallelism when positive.
	Parallelism int
	// Threshold overrides Options.Threshold when non-nil.
	Threshold *types.Threshold
}

// TDDResult is returned by RunTDD.
type TDDResult struct {
	Success      bool              `json:"success"`
	Status       string            `json:"status"`
	RunID        string            `json:"runId"`
	Module       string            `json:"module"`
	FailedCycles []string          `json:"failedCycles"`
	Details      *types.TDDDetails `json:"details"`
	SnapshotPath string            `json:"snapshotPath"`
}

// RunTDD executes the module's plan and records a tdd snapshot. Failing
// cycles are reported in the result, not as an error.
func (o *Orchestrator) RunTDD(ctx context.Context, module string, opts TDDOptions) (*TDDResult, error) {
	if err := ValidateModuleName(module); err != nil {
		return nil, err
	}
	paths := o.ResolveModulePaths(module)
	if !state.Exists(paths.PlanPath) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, paths.PlanPath)
	}

	r, kit, err := o.toolchain()
	if err != nil {
		return nil, err
	}

	threshold := o.opts.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if err := threshold.Validate(); err != nil {
		return nil, err
	}
	parallelism := o.opts.Parallelism
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}

	runID := uuid.NewString()
	log := o.logger.With(zap.String("module", module), zap.String("run_id", runID))
	store := o.store(module)

	eng := engine.New(r, kit, o.workers(ctx, paths.MetricsDir, log), engine.Config{
		Parallelism: parallelism,
		Threshold:   threshold,
		WorkDir:     o.opts.WorkDir,
		TestTimeout: o.opts.TestTimeout,
	},
		engine.WithLogger(log),
		engine.WithTelemetry(o.tel),
		engine.WithEventLog(events.Open(store.EventsPath())),
		engine.WithClock(o.now),
	)

	details, err := eng.Execute(ctx, engine.Request{
		Module:         module,
		PlanPath:       paths.PlanPath,
		DesignPath:     paths.DesignPath,
		AllowEmptyPlan: true,
	})
	if err != nil {
		return nil, fmt.Errorf("run cycles for %s: %w", module, err)
	}

	failed := FailedCycles(details)
	success := len(failed) == 0
	snap := types.TDDSnapshot{
		RunID:             runID,
		Module:            module,
		Status:            types.SnapshotCompleted,
		FailedCycles:      failed,
		CoverageThreshold: threshold,
		Details:           *details,
		Timestamp:         timestamp(o.now()),
	}
	status := StatusTDDCompleted
	if !success {
		snap.Status = types.SnapshotFailed
		status = StatusTDDFailed
	}
	snapPath, err := store.Write(types.KindTDD, snap)
	if err != nil {
		return nil, err
	}
	log.Info("tdd recorded", zap.String("status", snap.Status), zap.Int("failed", len(failed)))

	return &TDDResult{
		Success:      success,
		Status:       status,
		RunID:        runID,
		Module:       module,
		FailedCycles: failed,
		Details:      details,
		SnapshotPath: snapPath,
	}, nil
}

// toolchain returns the runner and the scaffold kit for Options.Runner.
func (o *Orchestrator) toolchain() (runner.Runner, *templates.Kit, error) {
	kit, err := templates.Lookup(o.opts.Runner)
	if err != nil {
		return nil, nil, err
	}
	if o.runner != nil {
		return o.runner, kit, nil
	}
	r, err := runner.New(o.opts.Runner, runner.Options{
		Command:     o.opts.TestCommand,
		ProjectRoot: o.opts.ProjectRoot,
	})
	if err != nil {
		return nil, nil, err
	}
	return r, kit, nil
}

// workers returns the injected spawner or a local spawner writing briefs
// under the module's metrics directory. Registry failures only cost the
// registry; spawning continues.
func (o *Orchestrator) workers(ctx context.Context, metricsDir string, log *zap.Logger) agent.Spawner {
	if o.spawner != nil {
		return o.spawner
	}
	reg := o.registry
	if reg == nil {
		reg = &agent.FileRegistry{Path: filepath.Join(metricsDir, RegistryFile)}
	}
	if err := reg.Initialize(ctx); err != nil {
		log.Warn("worker registry unavailable", zap.Error(err))
		reg = nil
	}
	s := &agent.LocalSpawner{Dir: filepath.Join(metricsDir, WorkersDir), Now: o.now}
	if reg != nil {
		s.Registry = reg
	}
	return s
}

// FailedCycles returns the ids of cycles that violated an expected phase
// outcome, in plan order. The result is never nil.
func FailedCycles(d *types.TDDDetails) []string {
	out := []string{}
	if d == nil {
		return out
	}
	for _, b := range d.Batches {
		for _, c := range b.Cycles {
			if c.Failed() {
				out = append(out, c.ID)
			}
		}
	}
	return out
}
