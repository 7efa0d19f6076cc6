package pipeline

import (
	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/models"
)

// NewTeams builds the pending team template for a run. The analyst team is
// restricted to the selected analysts; an empty selection keeps all of them.
func NewTeams(analysts []string) []models.Team {
	selected := make(map[string]bool, len(analysts))
	for _, key := range analysts {
		if name, ok := consts.AnalystAgents[key]; ok {
			selected[name] = true
		}
	}

	teams := make([]models.Team, 0, len(consts.TeamOrder))
	for _, id := range consts.TeamOrder {
		team := models.Team{Name: id, Label: consts.TeamLabels[id]}
		for _, name := range consts.TeamAgents[id] {
			if id == consts.Team_Analyst && len(selected) > 0 && !selected[name] {
				continue
			}
			team.Agents = append(team.Agents, models.Agent{Name: name, Status: models.StatusPending})
		}
		teams = append(teams, team)
	}
	return teams
}

func cloneTeams(teams []models.Team) []models.Team {
	out := make([]models.Team, len(teams))
	for i, t := range teams {
		out[i] = t
		out[i].Agents = append([]models.Agent(nil), t.Agents...)
	}
	return out
}
