package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexDash/internal/tui"
	"github.com/dyike/CortexDash/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	columnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(22)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func renderBanner() string {
	return titleStyle.Render("CortexDash") + mutedStyle.Render(" · live view of the trading analysis pipeline")
}

// renderRows renders label/value pairs as an aligned block.
func renderRows(rows [][2]string) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(r[1])
		b.WriteString("\n")
	}
	return b.String()
}

func renderCheck(ok bool) string {
	if ok {
		return successStyle.Render("✅")
	}
	return errorStyle.Render("❌")
}

// renderTransition is one headless progress line.
func renderTransition(agent string, status models.AgentStatus) string {
	style := tui.StyleForStatus(status)
	return fmt.Sprintf("%s %s %s", tui.StatusIcon(status), agent, style.Render(string(status)))
}

func renderOutcome(outcome models.RunOutcome, decision string) string {
	switch outcome {
	case models.OutcomeCompleted:
		return successStyle.Render("✅ Analysis completed") + "  🎯 " + decision
	case models.OutcomeStopped:
		return warnStyle.Render("⏹  Analysis stopped") + "  🎯 " + decision
	default:
		return errorStyle.Render("❌ Analysis failed") + "  🎯 " + decision
	}
}

func renderHistory(items []models.HistoryListItem) string {
	if len(items) == 0 {
		return mutedStyle.Render("No runs recorded yet.") + "\n"
	}
	var b strings.Builder
	head := fmt.Sprintf("%-36s  %-8s  %-10s  %-9s  %-8s  %s", "RUN ID", "TICKER", "DATE", "STATUS", "DECISION", "CREATED")
	b.WriteString(columnStyle.Render(head))
	b.WriteString("\n")
	for _, it := range items {
		fmt.Fprintf(&b, "%-36s  %-8s  %-10s  %-9s  %-8s  %s\n",
			it.Id, it.Ticker, it.AnalysisDate, it.Status, it.Decision, it.CreatedAt)
	}
	return b.String()
}
