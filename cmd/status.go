package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/orchestrator"
	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

var statusFlags struct {
	json bool
}

var statusCmd = &cobra.Command{
	Use:   "status <module>",
	Short: "Show what has been recorded for a module",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false, "print the status as JSON")
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(20)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	st, err := s.orchestrator().GetStatus(args[0])
	if err != nil {
		return err
	}

	if statusFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	renderStatus(cmd.OutOrStdout(), st)
	return nil
}

// renderStatus prints st as a styled key/value block.
func renderStatus(w io.Writer, st *orchestrator.Status) {
	fmt.Fprintln(w, titleStyle.Render("sigma status: "+st.Module))
	if !st.Installed {
		fmt.Fprintln(w, dimStyle.Render("nothing recorded yet; run `sigma plan "+st.Module+"` first"))
		return
	}

	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label), value)
	}
	row("Plan:", st.PlanStatus)
	row("TDD:", styleVerdict(st.TDDStatus))
	if len(st.FailedCycles) > 0 {
		row("Failed cycles:", badStyle.Render(strings.Join(st.FailedCycles, ", ")))
	} else {
		row("Failed cycles:", "none")
	}
	row("Coverage minimum:", formatThreshold(st.CoverageThreshold))
	if r := st.ReviewSummary; r != nil {
		row("Review:", fmt.Sprintf("%d/%d passed, lines min=%v%% avg=%v%% (%s)",
			r.PassedCycles, r.TotalCycles, r.Coverage.Lines.Min, r.Coverage.Lines.Avg, r.Timestamp))
	} else {
		row("Review:", dimStyle.Render("not run"))
	}
}

func styleVerdict(status string) string {
	switch status {
	case types.SnapshotCompleted:
		return okStyle.Render(status)
	case types.SnapshotFailed:
		return badStyle.Render(status)
	default:
		return dimStyle.Render(status)
	}
}

func formatThreshold(t types.Threshold) string {
	return fmt.Sprintf("lines=%v%% functions=%v%% branches=%v%% statements=%v%%",
		t.Lines, t.Functions, t.Branches, t.Statements)
}
