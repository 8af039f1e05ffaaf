package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/log"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/metrics"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/orchestrator"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/telemetry"
)

// tddFlags hold CLI values that override sigma.yaml. Only flags explicitly
// changed by the user are applied (checked via cmd.Flags().Changed).
var tddFlags struct {
	memoryBank    string
	parallel      int
	covLines      float64
	covFuncs      float64
	covBranches   float64
	covStatements float64
	out           string
	runner        string
	timeout       time.Duration
	metricsFile   string
	json          bool
}

var tddCmd = &cobra.Command{
	Use:   "tdd <module>",
	Short: "Run every planned cycle through RED, GREEN and REFACTOR",
	Long: "Execute tdd_plan.md for a module: cycles run in batches of --parallel, " +
		"each in its own workspace, and a tdd snapshot is recorded. Exits 2 when " +
		"any cycle fails.",
	Args: cobra.ExactArgs(1),
	RunE: runTDD,
}

func init() {
	f := tddCmd.Flags()
	f.StringVar(&tddFlags.memoryBank, "memory-bank", "", "override memory_bank_root from sigma.yaml")
	f.IntVar(&tddFlags.parallel, "parallel", 0, "override parallel from sigma.yaml")
	f.Float64Var(&tddFlags.covLines, "cov-lines", 0, "minimum line coverage percentage")
	f.Float64Var(&tddFlags.covFuncs, "cov-funcs", 0, "minimum function coverage percentage")
	f.Float64Var(&tddFlags.covBranches, "cov-branches", 0, "minimum branch coverage percentage")
	f.Float64Var(&tddFlags.covStatements, "cov-statements", 0, "minimum statement coverage percentage")
	f.StringVar(&tddFlags.out, "out", "", "override work_dir (cycle workspaces) from sigma.yaml")
	f.StringVar(&tddFlags.runner, "runner", "", "override runner from sigma.yaml (jest|go)")
	f.DurationVar(&tddFlags.timeout, "timeout", 0, "override test_timeout from sigma.yaml")
	f.StringVar(&tddFlags.metricsFile, "metrics-file", "", "write Prometheus metrics for the run to this file")
	f.BoolVar(&tddFlags.json, "json", false, "print the result as JSON")
}

func runTDD(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyTDDFlags(cmd, s)
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	module := args[0]

	if err := orchestrator.CheckDependencies(s.cfg.Runner, s.cfg.TestCommand, s.root); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel := telemetry.New()
	o := s.orchestrator(orchestrator.WithTelemetry(tel))

	if !tddFlags.json {
		log.Section(fmt.Sprintf("TDD: %s (%s, parallel %d)", module, s.cfg.Runner, s.cfg.Parallel))
	}
	start := time.Now()
	res, err := o.RunTDD(ctx, module, orchestrator.TDDOptions{})
	if err != nil {
		return err
	}

	if tddFlags.metricsFile != "" {
		if err := tel.WriteTextfile(tddFlags.metricsFile); err != nil {
			log.Warning(err.Error())
		}
	}

	if tddFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		metrics.PrintRunSummary(cmd.OutOrStdout(), module, res.Details, res.FailedCycles, time.Since(start))
	}

	if !res.Success {
		return &exitError{code: 2, msg: fmt.Sprintf("%d of %d cycle(s) failed for %s: %v",
			len(res.FailedCycles), res.Details.TotalCycles, module, res.FailedCycles)}
	}
	if !tddFlags.json {
		log.Success(fmt.Sprintf("all %d cycle(s) passed for %s", res.Details.TotalCycles, module))
	}
	return nil
}

// applyTDDFlags overlays explicitly set tdd flags on the loaded config.
func applyTDDFlags(cmd *cobra.Command, s *settings) {
	f := cmd.Flags()
	if f.Changed("memory-bank") {
		s.cfg.MemoryBankRoot = tddFlags.memoryBank
	}
	if f.Changed("parallel") {
		s.cfg.Parallel = tddFlags.parallel
	}
	if f.Changed("cov-lines") {
		s.cfg.Coverage.Lines = tddFlags.covLines
	}
	if f.Changed("cov-funcs") {
		s.cfg.Coverage.Functions = tddFlags.covFuncs
	}
	if f.Changed("cov-branches") {
		s.cfg.Coverage.Branches = tddFlags.covBranches
	}
	if f.Changed("cov-statements") {
		s.cfg.Coverage.Statements = tddFlags.covStatements
	}
	if f.Changed("out") {
		s.cfg.WorkDir = tddFlags.out
	}
	if f.Changed("runner") {
		s.cfg.Runner = tddFlags.runner
	}
	if f.Changed("timeout") {
		s.cfg.TestTimeout = tddFlags.timeout
	}
}
