// Package engine is the cycle engine: it reads a plan, partitions its cycles
// into batches and drives every cycle through RED, GREEN and REFACTOR in an
// isolated workspace.
//
// Batches run strictly one after another. Within a batch up to Parallelism
// cycles run concurrently on an errgroup. A cycle always executes all three
// phases; phase outcomes that contradict expectations are recorded as data on
// the cycle (types.FailureKind), never returned as errors.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/agent"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/events"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/plan"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/runner"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/telemetry"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/templates"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// ErrPlanNotProvided is returned by Execute when the request has no plan path.
var ErrPlanNotProvided = errors.New("plan path not provided")

// Config holds the run parameters fixed at construction.
type Config struct {
	// Parallelism bounds the batch size and the number of concurrent cycles.
	// Values below 1 are treated as 1.
	Parallelism int
	Threshold   types.Threshold
	// WorkDir is the root under which <module>/<cycleID> workspaces are created.
	WorkDir string
	// TestTimeout bounds each runner invocation. Zero disables the bound.
	TestTimeout time.Duration
}

// Request identifies the plan to execute.
type Request struct {
	Module     string
	PlanPath   string
	DesignPath string
	// AllowEmptyPlan treats an unreadable or unparseable plan as a plan with
	// zero cycles instead of failing the run.
	AllowEmptyPlan bool
}

// Engine executes plans. It is safe to call Execute from one goroutine at a time.
type Engine struct {
	runner  runner.Runner
	kit     *templates.Kit
	spawner agent.Spawner
	cfg     Config

	logger *zap.Logger
	tel    *telemetry.Recorder
	events *events.Log
	now    func() time.Time
	cwd    string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTelemetry records phase, gate, cycle and spawn metrics on r.
func WithTelemetry(r *telemetry.Recorder) Option {
	return func(e *Engine) { e.tel = r }
}

// WithEventLog appends one event per executed phase to l.
func WithEventLog(l *events.Log) Option {
	return func(e *Engine) { e.events = l }
}

// WithClock overrides time.Now for spawn handoff timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Engine. spawner may be nil, in which case cycles are
// annotated with a spawn failure and run anyway.
func New(r runner.Runner, kit *templates.Kit, spawner agent.Spawner, cfg Config, opts ...Option) *Engine {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	cwd, _ := os.Getwd()
	e := &Engine{
		runner:  r,
		kit:     kit,
		spawner: spawner,
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
		cwd:     cwd,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every cycle of the plan at req.PlanPath and returns the batch
// tree. Cancelling ctx stops scheduling further batches; the partial tree is
// returned together with ctx.Err().
func (e *Engine) Execute(ctx context.Context, req Request) (*types.TDDDetails, error) {
	if req.PlanPath == "" {
		return nil, ErrPlanNotProvided
	}

	p, err := e.loadPlan(req)
	if err != nil {
		return nil, err
	}

	if e.spawner != nil {
		if err := e.spawner.Initialize(ctx); err != nil {
			e.logger.Warn("worker spawner unavailable", zap.Error(err))
		}
	}

	n := e.cfg.Parallelism
	details := &types.TDDDetails{
		Batches:     []types.Batch{},
		TotalCycles: len(p.Cycles),
		Parallelism: n,
	}

	for i, batch := range Batches(p.Cycles, n) {
		if err := ctx.Err(); err != nil {
			return details, err
		}
		e.logger.Debug("batch start",
			zap.String("module", req.Module),
			zap.Int("batch", i),
			zap.Int("size", len(batch)))

		runs := make([]types.CycleRun, len(batch))
		var g errgroup.Group
		g.SetLimit(n)
		for j, c := range batch {
			g.Go(func() error {
				runs[j] = e.runCycle(ctx, req, c)
				return nil
			})
		}
		_ = g.Wait()

		details.Batches = append(details.Batches, types.Batch{Index: i, Size: len(batch), Cycles: runs})
	}
	return details, ctx.Err()
}

// loadPlan parses and validates the plan document.
func (e *Engine) loadPlan(req Request) (*types.Plan, error) {
	p, err := plan.ParseFile(req.PlanPath)
	if err != nil {
		if req.AllowEmptyPlan {
			e.logger.Warn("plan unreadable, running zero cycles",
				zap.String("plan", req.PlanPath), zap.Error(err))
			return &types.Plan{Module: req.Module}, nil
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if p.Module == "" {
		p.Module = req.Module
	}
	if err := plan.Validate(p); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", req.PlanPath, err)
	}
	return p, nil
}

// Batches partitions cycles into consecutive groups of at most n, preserving
// plan order. n below 1 is treated as 1.
func Batches(cycles []types.Cycle, n int) [][]types.Cycle {
	if n < 1 {
		n = 1
	}
	var out [][]types.Cycle
	for i := 0; i < len(cycles); i += n {
		end := min(i+n, len(cycles))
		out = append(out, cycles[i:end])
	}
	return out
}
