package tui

import (
	"fmt"
	"strings"

	"github.com/dyike/CortexDash/models"
)

var teamIcons = map[string]string{
	"analyst":   "👥",
	"research":  "🔬",
	"trader":    "💼",
	"risk":      "⚖️",
	"portfolio": "📁",
}

// RenderTeams draws every team with its agents and a completion count.
func RenderTeams(teams []models.Team, spin string) string {
	var b strings.Builder
	total, done := 0, 0
	for i, team := range teams {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s\n", teamIcons[team.Name], TitleStyle.Render(team.Label))
		for _, a := range team.Agents {
			total++
			if a.Status == models.StatusCompleted {
				done++
			}
			icon := StatusIcon(a.Status)
			if a.Status == models.StatusInProgress && spin != "" {
				icon = spin
			}
			style := StyleForStatus(a.Status)
			fmt.Fprintf(&b, "  %s %s %s\n", icon, style.Render(a.Name), style.Render(string(a.Status)))
		}
	}
	fmt.Fprintf(&b, "\n📊 %d/%d completed", done, total)
	return b.String()
}
