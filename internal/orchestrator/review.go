package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/events"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/metrics"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/state"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// ReviewResult is returned by RunReview.
type ReviewResult struct {
	Success        bool                `json:"success"`
	Status         string              `json:"status"`
	Module         string              `json:"module"`
	ReviewJSON     string              `json:"reviewJson"`
	ReviewMarkdown string              `json:"reviewMd"`
	Summary        types.ReviewSummary `json:"summary"`
}

// RunReview summarizes the latest tdd snapshot and the event log into
// review.json and review.md in the module's metrics directory.
func (o *Orchestrator) RunReview(ctx context.Context, module string) (*ReviewResult, error) {
	if err := ValidateModuleName(module); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store := o.store(module)
	if !store.Exists() {
		return nil, fmt.Errorf("%w for module %s", ErrMetricsNotFound, module)
	}

	var snap types.TDDSnapshot
	snapPath, err := store.LoadLatest(types.KindTDD, &snap)
	if err != nil {
		if errors.Is(err, metrics.ErrNoSnapshot) {
			return nil, fmt.Errorf("%w: no readable tdd snapshot for module %s", ErrMetricsNotFound, module)
		}
		return nil, fmt.Errorf("load tdd snapshot: %w", err)
	}
	if snapPath != store.LatestPath(types.KindTDD) {
		o.logger.Warn("latest tdd snapshot unreadable, using newest timestamped snapshot",
			zap.String("module", module), zap.String("snapshot", snapPath))
	}

	evs, malformed, err := events.Read(store.EventsPath())
	if err != nil {
		return nil, err
	}
	if malformed > 0 {
		o.logger.Warn("skipped malformed event lines",
			zap.String("module", module), zap.Int("count", malformed))
	}

	summary := BuildReviewSummary(module, &snap, evs, o.now())
	jsonPath, mdPath := store.ReviewPaths()
	if err := state.SaveJSON(jsonPath, summary); err != nil {
		return nil, fmt.Errorf("write review: %w", err)
	}
	if err := state.WriteAtomic(mdPath, []byte(RenderReviewMarkdown(summary))); err != nil {
		return nil, fmt.Errorf("write review report: %w", err)
	}

	return &ReviewResult{
		Success:        true,
		Status:         StatusReviewCompleted,
		Module:         module,
		ReviewJSON:     jsonPath,
		ReviewMarkdown: mdPath,
		Summary:        summary,
	}, nil
}

// BuildReviewSummary derives the review from a tdd snapshot and the event
// log. Line coverage samples are every GREEN and REFACTOR coverage record
// across all cycles; min and avg are 0 when there are none, and avg is
// rounded to the nearest integer.
func BuildReviewSummary(module string, snap *types.TDDSnapshot, evs []types.Event, now time.Time) types.ReviewSummary {
	failed := snap.FailedCycles
	if failed == nil {
		failed = []string{}
	}
	total := snap.Details.TotalCycles

	var samples []float64
	for _, b := range snap.Details.Batches {
		for _, c := range b.Cycles {
			if cov := c.RGR.Green.Coverage; cov != nil {
				samples = append(samples, cov.Lines)
			}
			if cov := c.RGR.Refactor.Coverage; cov != nil {
				samples = append(samples, cov.Lines)
			}
		}
	}
	var stats types.LineCoverageStats
	if len(samples) > 0 {
		stats.Min = samples[0]
		var sum float64
		for _, v := range samples {
			stats.Min = math.Min(stats.Min, v)
			sum += v
		}
		stats.Avg = math.Round(sum / float64(len(samples)))
	}

	return types.ReviewSummary{
		Module:            module,
		TotalCycles:       total,
		PassedCycles:      max(total-len(failed), 0),
		FailedCycles:      failed,
		CoverageThreshold: snap.CoverageThreshold,
		Coverage:          types.ReviewCoverage{Lines: stats},
		Phases:            events.CountPhases(evs),
		Timestamp:         timestamp(now),
	}
}

// RenderReviewMarkdown renders the human-readable review report.
func RenderReviewMarkdown(s types.ReviewSummary) string {
	failed := "None"
	if len(s.FailedCycles) > 0 {
		failed = strings.Join(s.FailedCycles, ", ")
	}
	th := s.CoverageThreshold

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Review Report for %s\n\n", s.Module)
	fmt.Fprintf(&sb, "Generated: %s\n\n", s.Timestamp)
	fmt.Fprintf(&sb, "- Total cycles: %d\n", s.TotalCycles)
	fmt.Fprintf(&sb, "- Passed cycles: %d\n", s.PassedCycles)
	fmt.Fprintf(&sb, "- Failed cycles: %s\n", failed)
	fmt.Fprintf(&sb, "- Coverage threshold: lines=%s%% functions=%s%% branches=%s%% statements=%s%%\n",
		num(th.Lines), num(th.Functions), num(th.Branches), num(th.Statements))
	fmt.Fprintf(&sb, "- Coverage (lines): min=%s%% avg=%s%%\n\n",
		num(s.Coverage.Lines.Min), num(s.Coverage.Lines.Avg))
	sb.WriteString("## Phase Events\n")
	fmt.Fprintf(&sb, "- RED: %d\n", s.Phases.Red)
	fmt.Fprintf(&sb, "- GREEN: %d\n", s.Phases.Green)
	fmt.Fprintf(&sb, "- REFACTOR: %d\n", s.Phases.Refactor)
	return sb.String()
}

// num prints a percentage without trailing zeros: 80, 83.33.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Status is the module overview returned by GetStatus. The embedded
// details are absent when nothing has been recorded for the module.
type Status struct {
	Module    string `json:"module"`
	Installed bool   `json:"installed"`
	*ModuleStatus
}

// ModuleStatus is the recorded state of an installed module.
type ModuleStatus struct {
	PlanStatus        string               `json:"planStatus"`
	TDDStatus         string               `json:"tddStatus"`
	FailedCycles      []string             `json:"failedCycles"`
	CoverageThreshold types.Threshold      `json:"coverageThreshold"`
	ReviewSummary     *types.ReviewSummary `json:"reviewSummary"`
}

// GetStatus reports what has been recorded for module. Missing or corrupt
// artifacts degrade to "unknown", empty or null values; only an invalid
// module name is an error.
func (o *Orchestrator) GetStatus(module string) (*Status, error) {
	if err := ValidateModuleName(module); err != nil {
		return nil, err
	}
	store := o.store(module)
	if !store.Exists() {
		return &Status{Module: module}, nil
	}

	ms := &ModuleStatus{
		PlanStatus:   StatusUnknown,
		TDDStatus:    StatusUnknown,
		FailedCycles: []string{},
	}

	var planSnap types.PlanSnapshot
	if metrics.SafeRead(store.LatestPath(types.KindPlan), &planSnap) && planSnap.Status != "" {
		ms.PlanStatus = planSnap.Status
	}

	var tddSnap types.TDDSnapshot
	if metrics.SafeRead(store.LatestPath(types.KindTDD), &tddSnap) {
		if tddSnap.Status != "" {
			ms.TDDStatus = tddSnap.Status
		}
		if tddSnap.FailedCycles != nil {
			ms.FailedCycles = tddSnap.FailedCycles
		}
		ms.CoverageThreshold = tddSnap.CoverageThreshold
	}

	jsonPath, _ := store.ReviewPaths()
	var review types.ReviewSummary
	if metrics.SafeRead(jsonPath, &review) {
		ms.ReviewSummary = &review
	}

	return &Status{Module: module, Installed: true, ModuleStatus: ms}, nil
}
