package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/runbench/internal/orchestrator"
)

// RenderSummary renders the outcome of a run as a bordered box.
func RenderSummary(s orchestrator.Summary) string {
	var badge string
	switch {
	case s.DryRun:
		badge = WarningBadge("DRY RUN")
	case s.Success():
		badge = SuccessBadge("SUCCESS")
	default:
		badge = ErrorBadge("FAILED")
	}

	rows := []string{badge, ""}
	row := func(label, value string) {
		rows = append(rows, SummaryLabelStyle.Render(label)+value)
	}
	row("Benchmark", s.Benchmark)
	row("Target", s.Target)
	if s.DryRun {
		row("Configs", fmt.Sprintf("%d", s.Total))
	} else {
		row("Completed", fmt.Sprintf("%d/%d", s.Completed, s.Total))
		row("Output", s.OutputDir)
		row("Duration", s.Duration.Round(time.Second).String())
	}
	if s.Err != nil {
		// Only the first line; the full chain goes to the log.
		msg, _, _ := strings.Cut(s.Err.Error(), "\n")
		row("Error", lipgloss.NewStyle().Foreground(Error).Render(msg))
	}
	return SummaryStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
