package consts

// Agent display names as reported by the pipeline service.
const (
	// Analyst Team
	Agent_MarketAnalyst       = "Market Analyst"
	Agent_SocialAnalyst       = "Social Analyst"
	Agent_NewsAnalyst         = "News Analyst"
	Agent_FundamentalsAnalyst = "Fundamentals Analyst"
	// Research Team
	Agent_BullResearcher  = "Bull Researcher"
	Agent_BearResearcher  = "Bear Researcher"
	Agent_ResearchManager = "Research Manager"
	// Trading Team
	Agent_Trader = "Trader"
	// Risk Management Team
	Agent_RiskyAnalyst   = "Risky Analyst"
	Agent_NeutralAnalyst = "Neutral Analyst"
	Agent_SafeAnalyst    = "Safe Analyst"
	// Portfolio Management Team
	Agent_PortfolioManager = "Portfolio Manager"
)

// Team identifiers, in display order.
const (
	Team_Analyst   = "analyst"
	Team_Research  = "research"
	Team_Trader    = "trader"
	Team_Risk      = "risk"
	Team_Portfolio = "portfolio"
)

const (
	State_Pending    = "pending"
	State_InProgress = "in_progress"
	State_Completed  = "completed"
	State_Error      = "error"
)

// DefaultDecision is shown until a run resolves a decision.
const DefaultDecision = "Awaiting run"

// TeamOrder lists the teams in the order they run.
var TeamOrder = []string{Team_Analyst, Team_Research, Team_Trader, Team_Risk, Team_Portfolio}

// TeamLabels are the human readable team titles.
var TeamLabels = map[string]string{
	Team_Analyst:   "Analyst Team",
	Team_Research:  "Research Team",
	Team_Trader:    "Trading Team",
	Team_Risk:      "Risk Management",
	Team_Portfolio: "Portfolio Management",
}

// TeamAgents is the full agent template of every team.
var TeamAgents = map[string][]string{
	Team_Analyst:   {Agent_MarketAnalyst, Agent_SocialAnalyst, Agent_NewsAnalyst, Agent_FundamentalsAnalyst},
	Team_Research:  {Agent_BullResearcher, Agent_BearResearcher, Agent_ResearchManager},
	Team_Trader:    {Agent_Trader},
	Team_Risk:      {Agent_RiskyAnalyst, Agent_NeutralAnalyst, Agent_SafeAnalyst},
	Team_Portfolio: {Agent_PortfolioManager},
}

// AgentTeam maps an agent name to the team it belongs to.
var AgentTeam = func() map[string]string {
	m := make(map[string]string)
	for team, agents := range TeamAgents {
		for _, name := range agents {
			m[name] = team
		}
	}
	return m
}()
