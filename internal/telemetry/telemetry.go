// Package telemetry records Prometheus metrics for engine runs: phase
// outcomes and durations, cycle verdicts, worker spawn failures and
// coverage gate results.
//
// Metrics live on a Recorder's own registry rather than the global default,
// so each run (and each test) starts from zero. A run can be exported to a
// node_exporter textfile with WriteTextfile. A nil *Recorder is valid and
// records nothing.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

const namespace = "sigma"

// Recorder holds the engine's metrics.
type Recorder struct {
	registry *prometheus.Registry

	// PhaseRuns counts test-runner invocations.
	// Labels: phase (RED, GREEN, REFACTOR), code (status code recorded for the phase)
	PhaseRuns *prometheus.CounterVec

	// PhaseDuration measures test-runner wall time.
	// Labels: phase
	PhaseDuration *prometheus.HistogramVec

	// Cycles counts finished cycles.
	// Labels: result (passed, failed)
	Cycles *prometheus.CounterVec

	// SpawnFailures counts worker spawn requests that returned an error.
	// Labels: role (testing, implementation)
	SpawnFailures *prometheus.CounterVec

	// CoverageGate counts coverage gate evaluations.
	// Labels: phase (GREEN, REFACTOR), result (pass, fail)
	CoverageGate *prometheus.CounterVec
}

// New creates a Recorder on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		PhaseRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_runs_total",
			Help:      "Test-runner invocations by phase and resulting status code.",
		}, []string{"phase", "code"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each test-runner invocation.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Finished cycles by verdict.",
		}, []string{"result"}),
		SpawnFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_failures_total",
			Help:      "Worker spawn requests that failed, by role.",
		}, []string{"role"}),
		CoverageGate: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coverage_gate_total",
			Help:      "Coverage gate evaluations by phase and result.",
		}, []string{"phase", "result"}),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePhase records one phase run.
func (r *Recorder) ObservePhase(phase types.Phase, code string, d time.Duration) {
	if r == nil {
		return
	}
	r.PhaseRuns.WithLabelValues(string(phase), code).Inc()
	r.PhaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

// ObserveGate records a coverage gate evaluation.
func (r *Recorder) ObserveGate(phase types.Phase, ok bool) {
	if r == nil {
		return
	}
	result := "fail"
	if ok {
		result = "pass"
	}
	r.CoverageGate.WithLabelValues(string(phase), result).Inc()
}

// ObserveCycle records a cycle verdict.
func (r *Recorder) ObserveCycle(failed bool) {
	if r == nil {
		return
	}
	result := "passed"
	if failed {
		result = "failed"
	}
	r.Cycles.WithLabelValues(result).Inc()
}

// ObserveSpawnFailure records a failed spawn for role.
func (r *Recorder) ObserveSpawnFailure(role string) {
	if r == nil {
		return
	}
	r.SpawnFailures.WithLabelValues(role).Inc()
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
