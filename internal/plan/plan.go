// Package plan implements the Plan Loop: it turns a module's design document
// into a persisted plan with one RGR cycle per extracted interface signature.
package plan

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/statusmap"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// ErrDesignNotFound is returned when the design document does not exist.
var ErrDesignNotFound = errors.New("design document not found")

// Request describes one plan generation.
type Request struct {
	Module     string
	DesignPath string
	PlanPath   string
	Overwrite  bool
}

// Result reports the outcome of Generate.
type Result struct {
	Success    bool
	StatusCode statusmap.Code
	PlanPath   string
	Plan       *types.Plan
}

// Loop generates plans. The zero value is ready to use.
type Loop struct {
	// Now returns the generation timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Generate builds and writes the plan for req.
//
// A missing design returns ErrDesignNotFound with a DESIGN_NOT_FOUND result.
// An existing plan is left untouched unless req.Overwrite is set, and the
// result carries the plan-revised code. Otherwise the plan is written and
// the result carries the plan-drafted code.
func (l *Loop) Generate(req Request) (Result, error) {
	design, err := os.ReadFile(req.DesignPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{StatusCode: statusmap.DesignNotFound, PlanPath: req.PlanPath},
				fmt.Errorf("%w: %s", ErrDesignNotFound, req.DesignPath)
		}
		return Result{}, fmt.Errorf("read design %s: %w", req.DesignPath, err)
	}

	if !req.Overwrite && state.Exists(req.PlanPath) {
		return Result{Success: true, StatusCode: statusmap.PlanRevised, PlanPath: req.PlanPath}, nil
	}

	p := Build(req.Module, ExtractSignatures(string(design)), l.now())
	doc, err := Render(p)
	if err != nil {
		return Result{}, err
	}
	if err := state.WriteAtomic(req.PlanPath, []byte(doc)); err != nil {
		return Result{}, fmt.Errorf("write plan: %w", err)
	}
	return Result{Success: true, StatusCode: statusmap.PlanDrafted, PlanPath: req.PlanPath, Plan: &p}, nil
}

// Build assembles a plan with one cycle per signature, ids CYCLE_1..CYCLE_n.
func Build(module string, signatures []string, at time.Time) types.Plan {
	cycles := make([]types.Cycle, len(signatures))
	for i, sig := range signatures {
		cycles[i] = types.Cycle{
			ID:        CycleID(i + 1),
			Interface: sig,
			Phases:    types.AllPhases(),
		}
	}
	return types.Plan{
		Module:      module,
		Cycles:      cycles,
		GeneratedAt: at.UTC().Format(time.RFC3339Nano),
	}
}

// CycleID returns the id of the n-th cycle (1-based).
func CycleID(n int) string {
	return fmt.Sprintf("CYCLE_%d", n)
}

func (l *Loop) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
