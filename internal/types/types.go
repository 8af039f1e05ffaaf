// Package types defines the shared records used across the sigma engine:
// plans and cycles, phase results, coverage, events, metrics snapshots and the
// review summary. JSON tags match the on-disk artifact schema (camelCase field
// names), which is shared with earlier tooling that reads the same files.
package types

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Typed constants
// ---------------------------------------------------------------------------

// Phase is one step of the RED → GREEN → REFACTOR sequence.
type Phase string

const (
	PhaseRed      Phase = "RED"
	PhaseGreen    Phase = "GREEN"
	PhaseRefactor Phase = "REFACTOR"
)

// AllPhases returns the RGR sequence in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseRed, PhaseGreen, PhaseRefactor}
}

// CycleState is the lifecycle state of a single cycle within one engine run.
// Progression is linear: PLANNED → RED_RUN → GREEN_RUN → REFACTOR_RUN → PASSED|FAILED.
type CycleState string

const (
	CycleStatePlanned     CycleState = "PLANNED"
	CycleStateRedRun      CycleState = "RED_RUN"
	CycleStateGreenRun    CycleState = "GREEN_RUN"
	CycleStateRefactorRun CycleState = "REFACTOR_RUN"
	CycleStatePassed      CycleState = "PASSED"
	CycleStateFailed      CycleState = "FAILED"
)

// IsTerminal reports whether no further phase can run in this state.
func (s CycleState) IsTerminal() bool {
	return s == CycleStatePassed || s == CycleStateFailed
}

// FailureKind classifies why a phase violated its expected outcome.
// The empty value means the phase behaved as expected.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureUnexpectedPass FailureKind = "unexpected_pass"
	FailureUnexpectedFail FailureKind = "unexpected_fail"
	FailureTimeout        FailureKind = "timeout"
	FailureException      FailureKind = "exception"
	FailureCoverageGate   FailureKind = "coverage_gate"
)

// ---------------------------------------------------------------------------
// Coverage
// ---------------------------------------------------------------------------

// Coverage holds the four percentages reported by a coverage summary.
type Coverage struct {
	Lines      float64 `json:"lines"`
	Functions  float64 `json:"functions"`
	Branches   float64 `json:"branches"`
	Statements float64 `json:"statements"`
}

// Threshold is the per-metric minimum a Coverage must meet to pass the gate.
// The zero value is always satisfied.
type Threshold struct {
	Lines      float64 `json:"lines" yaml:"lines"`
	Functions  float64 `json:"functions" yaml:"functions"`
	Branches   float64 `json:"branches" yaml:"branches"`
	Statements float64 `json:"statements" yaml:"statements"`
}

// Validate rejects negative or out-of-range percentages.
func (t Threshold) Validate() error {
	for name, v := range map[string]float64{
		"lines":      t.Lines,
		"functions":  t.Functions,
		"branches":   t.Branches,
		"statements": t.Statements,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("coverage threshold %s must be between 0 and 100, got %v", name, v)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Plan
// ---------------------------------------------------------------------------

// Plan is the canonical record embedded in a plan document.
type Plan struct {
	Module      string  `json:"module"`
	Cycles      []Cycle `json:"cycles"`
	GeneratedAt string  `json:"generatedAt"`
}

// Cycle is one planned unit of RGR work for a single interface signature.
type Cycle struct {
	ID        string  `json:"id"`
	Interface string  `json:"interface"`
	Phases    []Phase `json:"phases"`
}

// ---------------------------------------------------------------------------
// Engine results
// ---------------------------------------------------------------------------

// PhaseRun records the outcome of one test-runner invocation.
// Coverage and CoverageGate are nil for RED, which never collects coverage.
type PhaseRun struct {
	Status       string      `json:"status"`
	ExitCode     int         `json:"exitCode"`
	Coverage     *Coverage   `json:"coverage,omitempty"`
	CoverageGate *bool       `json:"coverageGate,omitempty"`
	Failure      FailureKind `json:"failure,omitempty"`
	DurationMs   int64       `json:"durationMs"`
}

// GateOK reports whether the coverage gate was evaluated and satisfied.
func (p PhaseRun) GateOK() bool {
	return p.CoverageGate != nil && *p.CoverageGate
}

// RGR groups the three phase runs of a cycle.
type RGR struct {
	Red       PhaseRun `json:"red"`
	Green     PhaseRun `json:"green"`
	Refactor  PhaseRun `json:"refactor"`
	Workspace string   `json:"workspace"`
}

// WorkerRecord annotates a cycle with the outcome of a worker spawn request.
// Spawn failures are recorded here and never fail the cycle.
type WorkerRecord struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Error string `json:"error,omitempty"`
}

// CycleRun is the complete record of one cycle in one engine run.
type CycleRun struct {
	ID        string       `json:"id"`
	Interface string       `json:"interface"`
	QA        WorkerRecord `json:"qa"`
	Dev       WorkerRecord `json:"dev"`
	RGR       RGR          `json:"rgr"`
	State     CycleState   `json:"status"`
}

// Failed reports whether the cycle violated any expected phase outcome:
// RED unexpectedly passed, GREEN or REFACTOR exited non-zero, or either
// GREEN or REFACTOR missed the coverage gate.
func (c CycleRun) Failed() bool {
	if c.RGR.Red.ExitCode == 0 {
		return true
	}
	if c.RGR.Green.ExitCode != 0 || c.RGR.Refactor.ExitCode != 0 {
		return true
	}
	return !c.RGR.Green.GateOK() || !c.RGR.Refactor.GateOK()
}

// Batch is a contiguous group of cycles executed within one parallelism window.
type Batch struct {
	Index  int        `json:"batchIndex"`
	Size   int        `json:"size"`
	Cycles []CycleRun `json:"spawned"`
}

// TDDDetails is the full batch/cycle tree produced by one engine run.
type TDDDetails struct {
	Batches     []Batch `json:"batches"`
	TotalCycles int     `json:"totalCycles"`
	Parallelism int     `json:"parallel"`
}

// ---------------------------------------------------------------------------
// Event log
// ---------------------------------------------------------------------------

// Event is one line of the append-only event log.
type Event struct {
	TS           time.Time   `json:"ts"`
	Cycle        string      `json:"cycle,omitempty"`
	Phase        Phase       `json:"phase"`
	Code         string      `json:"code"`
	ExitCode     int         `json:"exitCode"`
	Coverage     *Coverage   `json:"coverage,omitempty"`
	CoverageGate *bool       `json:"coverageGate,omitempty"`
	Failure      FailureKind `json:"failure,omitempty"`
	TestFile     string      `json:"testFile"`
}

// PhaseCounts tallies events per phase.
type PhaseCounts struct {
	Red      int `json:"RED"`
	Green    int `json:"GREEN"`
	Refactor int `json:"REFACTOR"`
}

// ---------------------------------------------------------------------------
// Metrics snapshots
// ---------------------------------------------------------------------------

// Snapshot kinds.
const (
	KindPlan = "plan"
	KindTDD  = "tdd"
)

// PlanSnapshot is persisted after every plan run.
type PlanSnapshot struct {
	Module    string `json:"module"`
	Status    string `json:"status"`
	PlanPath  string `json:"planPath"`
	Timestamp string `json:"timestamp"`
}

// TDDSnapshot is persisted after every engine run.
type TDDSnapshot struct {
	RunID             string     `json:"runId,omitempty"`
	Module            string     `json:"module"`
	Status            string     `json:"status"`
	FailedCycles      []string   `json:"failedCycles"`
	CoverageThreshold Threshold  `json:"coverageThreshold"`
	Details           TDDDetails `json:"details"`
	Timestamp         string     `json:"timestamp"`
}

// Snapshot status values.
const (
	SnapshotCompleted = "completed"
	SnapshotFailed    = "failed"
)

// ---------------------------------------------------------------------------
// Review
// ---------------------------------------------------------------------------

// LineCoverageStats is the min/avg of line coverage over all GREEN and
// REFACTOR samples.
type LineCoverageStats struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
}

// ReviewCoverage wraps the per-metric statistics in the review summary.
type ReviewCoverage struct {
	Lines LineCoverageStats `json:"lines"`
}

// ReviewSummary is derived from the latest TDD snapshot and the event log.
type ReviewSummary struct {
	Module            string         `json:"module"`
	TotalCycles       int            `json:"totalCycles"`
	PassedCycles      int            `json:"passedCycles"`
	FailedCycles      []string       `json:"failedCycles"`
	CoverageThreshold Threshold      `json:"coverageThreshold"`
	Coverage          ReviewCoverage `json:"coverage"`
	Phases            PhaseCounts    `json:"phases"`
	Timestamp         string         `json:"timestamp"`
}
