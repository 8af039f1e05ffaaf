// Package orchestrator is the façade over the plan loop and the cycle
// engine. It resolves per-module paths, wires the runner, spawner, event log
// and snapshot store for each run, and derives review and status views from
// the recorded metrics.
package orchestrator

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/agent"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/config"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/metrics"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/plan"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/runner"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/telemetry"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

var (
	// ErrPlanNotFound is returned by RunTDD when the module has no plan document.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrMetricsNotFound is returned by RunReview when nothing has been
	// recorded for the module.
	ErrMetricsNotFound = errors.New("metrics not found")
	// ErrInvalidModule is returned for module names that cannot be used as a
	// single path segment.
	ErrInvalidModule = errors.New("invalid module name")
)

// File names inside a module's memory-bank directory.
const (
	DesignFile = "design.md"
	PlanFile   = "tdd_plan.md"
)

// Run status values.
const (
	StatusPlanCompleted   = "plan_completed"
	StatusTDDCompleted    = "tdd_completed"
	StatusTDDFailed       = "tdd_failed"
	StatusReviewCompleted = "review_completed"
	StatusUnknown         = "unknown"
)

// Options are the run parameters. Empty paths and non-positive numbers fall
// back to the config package defaults. Relative paths are resolved against
// ProjectRoot.
type Options struct {
	MemoryBankRoot string
	MetricsRoot    string
	WorkDir        string
	Parallelism    int
	Threshold      types.Threshold
	Runner         string
	TestCommand    string
	TestTimeout    time.Duration
	ProjectRoot    string
}

// Orchestrator runs plan, tdd, review and status for modules.
type Orchestrator struct {
	opts Options

	logger   *zap.Logger
	tel      *telemetry.Recorder
	runner   runner.Runner
	spawner  agent.Spawner
	registry agent.Registry
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger passed down to the engine.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTelemetry records engine metrics on r.
func WithTelemetry(r *telemetry.Recorder) Option {
	return func(o *Orchestrator) { o.tel = r }
}

// WithRunner replaces the runner built from Options.Runner. The scaffold kit
// is still chosen by Options.Runner.
func WithRunner(r runner.Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithSpawner replaces the file-backed local spawner.
func WithSpawner(s agent.Spawner) Option {
	return func(o *Orchestrator) { o.spawner = s }
}

// WithRegistry replaces the per-module agents.yaml registry.
func WithRegistry(r agent.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithClock overrides time.Now for timestamps and snapshot names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an Orchestrator.
func New(opts Options, options ...Option) *Orchestrator {
	def := config.Defaults(opts.ProjectRoot)
	if opts.MemoryBankRoot == "" {
		opts.MemoryBankRoot = def.MemoryBankRoot
	}
	if opts.MetricsRoot == "" {
		opts.MetricsRoot = def.MetricsRoot
	}
	if opts.WorkDir == "" {
		opts.WorkDir = def.WorkDir
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = def.Parallel
	}
	if opts.Runner == "" {
		opts.Runner = def.Runner
	}
	if opts.TestTimeout <= 0 {
		opts.TestTimeout = def.TestTimeout
	}
	opts.MemoryBankRoot = resolve(opts.ProjectRoot, opts.MemoryBankRoot)
	opts.MetricsRoot = resolve(opts.ProjectRoot, opts.MetricsRoot)
	opts.WorkDir = resolve(opts.ProjectRoot, opts.WorkDir)

	o := &Orchestrator{
		opts:   opts,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Options returns the resolved options.
func (o *Orchestrator) Options() Options { return o.opts }

// ModulePaths locates a module's artifacts.
type ModulePaths struct {
	ModuleRoot string
	DesignPath string
	PlanPath   string
	MetricsDir string
}

// ResolveModulePaths returns the artifact paths for module.
func (o *Orchestrator) ResolveModulePaths(module string) ModulePaths {
	root := filepath.Join(o.opts.MemoryBankRoot, module)
	return ModulePaths{
		ModuleRoot: root,
		DesignPath: filepath.Join(root, DesignFile),
		PlanPath:   filepath.Join(root, PlanFile),
		MetricsDir: filepath.Join(o.opts.MetricsRoot, module),
	}
}

// ValidateModuleName rejects names that are empty or would escape the
// memory-bank and metrics roots.
func ValidateModuleName(module string) error {
	switch {
	case strings.TrimSpace(module) == "":
		return fmt.Errorf("%w: empty", ErrInvalidModule)
	case module == "." || module == "..":
		return fmt.Errorf("%w: %q", ErrInvalidModule, module)
	case strings.ContainsAny(module, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidModule, module)
	}
	return nil
}

func (o *Orchestrator) store(module string) *metrics.Store {
	return metrics.NewStore(o.ResolveModulePaths(module).MetricsDir).WithClock(o.now)
}

func (o *Orchestrator) planLoop() *plan.Loop {
	return &plan.Loop{Now: o.now}
}

// timestamp formats t as an ISO-8601 UTC instant with milliseconds.
func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func resolve(root, p string) string {
	if root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
