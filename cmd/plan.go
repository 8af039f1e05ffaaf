package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/log"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/orchestrator"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/plan"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/statusmap"
)

var planFlags struct {
	memoryBank string
	overwrite  bool
	json       bool
}

var planCmd = &cobra.Command{
	Use:   "plan <module>",
	Short: "Draft the TDD plan for a module from its design document",
	Long: "Extract interface signatures from the fenced code excerpts of " +
		"<memory-bank>/<module>/design.md and write one RED/GREEN/REFACTOR " +
		"cycle per signature to tdd_plan.md. An existing plan is left untouched " +
		"unless --overwrite is set.",
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFlags.memoryBank, "memory-bank", "", "override memory_bank_root from sigma.yaml")
	planCmd.Flags().BoolVar(&planFlags.overwrite, "overwrite", false, "regenerate an existing plan")
	planCmd.Flags().BoolVar(&planFlags.json, "json", false, "print the result as JSON")
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("memory-bank") {
		s.cfg.MemoryBankRoot = planFlags.memoryBank
	}
	module := args[0]

	res, err := s.orchestrator().RunPlan(commandContext(cmd), module, orchestrator.PlanOptions{Overwrite: planFlags.overwrite})
	if err != nil {
		if errors.Is(err, plan.ErrDesignNotFound) {
			return fmt.Errorf("%w (run `sigma init %s` to create a starter design)", err, module)
		}
		return err
	}

	if planFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	switch res.StatusCode {
	case statusmap.PlanRevised:
		log.Info(fmt.Sprintf("plan for %s already exists (%s), ready for review; use --overwrite to regenerate", module, res.PlanPath))
	default:
		log.Success(fmt.Sprintf("plan for %s %s: %s", module, statusmap.Map(string(res.StatusCode)), res.PlanPath))
	}
	return nil
}
