package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/ZHUBoer/claude-code-sub-agent-collective/internal/types"
)

// PrintRunSummary writes a box-draw table summarizing an engine run: cycle
// and batch counts, failed cycles, total wall time and average time per cycle.
func PrintRunSummary(w io.Writer, module string, d *types.TDDDetails, failed []string, elapsed time.Duration) {
	total := 0
	if d != nil {
		total = d.TotalCycles
	}
	batches := 0
	if d != nil {
		batches = len(d.Batches)
	}

	totalSec := int(elapsed.Round(time.Second) / time.Second)
	avgSec := 0
	if total > 0 {
		avgSec = totalSec / total
	}

	failedFmt := "None"
	if len(failed) > 0 {
		failedFmt = fmt.Sprintf("%d %v", len(failed), failed)
	}

	const line = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
	fmt.Fprintf(w, "\n%s\n", line)
	fmt.Fprintf(w, "TDD SUMMARY: %s\n", module)
	fmt.Fprintf(w, "%s\n", line)
	fmt.Fprintf(w, "  %-22s %d\n", "Total Cycles:", total)
	fmt.Fprintf(w, "  %-22s %d\n", "Passed Cycles:", total-len(failed))
	fmt.Fprintf(w, "  %-22s %s\n", "Failed Cycles:", failedFmt)
	fmt.Fprintf(w, "  %-22s %d\n", "Batches:", batches)
	fmt.Fprintf(w, "  %-22s %s\n", "Total Time:", formatDuration(totalSec))
	fmt.Fprintf(w, "  %-22s %s\n", "Average Time:", fmt.Sprintf("%ds per cycle", avgSec))
	fmt.Fprintf(w, "%s\n\n", line)
}

// formatDuration converts a duration in seconds to a human-readable string.
// Examples: "0s", "45s", "3m 15s", "1h 2m 30s".
func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
