package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexDash/internal/conn"
	"github.com/dyike/CortexDash/models"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	ProgressStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(0, 1)

	ReportsStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444"))

	HelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	PendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	InProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	CompletedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	ErrorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

// StyleForStatus returns the style an agent status is rendered with.
func StyleForStatus(status models.AgentStatus) lipgloss.Style {
	switch status {
	case models.StatusInProgress:
		return InProgressStyle
	case models.StatusCompleted:
		return CompletedStyle
	case models.StatusError:
		return ErrorStyle
	default:
		return PendingStyle
	}
}

func StatusIcon(status models.AgentStatus) string {
	switch status {
	case models.StatusPending:
		return "⏳"
	case models.StatusInProgress:
		return "🔄"
	case models.StatusCompleted:
		return "✅"
	case models.StatusError:
		return "❌"
	default:
		return "❓"
	}
}

func connectionBadge(s conn.Status) string {
	switch s {
	case conn.StatusConnected:
		return CompletedStyle.Render("● connected")
	case conn.StatusConnecting:
		return InProgressStyle.Render("◌ connecting")
	default:
		return ErrorStyle.Render("○ disconnected")
	}
}

func decisionStyle(decision string) lipgloss.Style {
	switch decision {
	case models.DecisionBuy:
		return CompletedStyle
	case models.DecisionSell:
		return ErrorStyle
	case models.DecisionHold:
		return InProgressStyle
	default:
		return PendingStyle
	}
}
