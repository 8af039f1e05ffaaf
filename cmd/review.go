package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/log"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/orchestrator"
)

var reviewFlags struct {
	json bool
}

var reviewCmd = &cobra.Command{
	Use:   "review <module>",
	Short: "Summarize the latest tdd run into review.json and review.md",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewFlags.json, "json", false, "print the review summary as JSON")
}

func runReview(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	res, err := s.orchestrator().RunReview(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	if reviewFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Summary)
	}
	fmt.Fprint(cmd.OutOrStdout(), orchestrator.RenderReviewMarkdown(res.Summary))
	log.Success(fmt.Sprintf("review written: %s, %s", res.ReviewJSON, res.ReviewMarkdown))
	return nil
}
