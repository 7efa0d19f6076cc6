package consts

// Analyst selection keys accepted in a start request.
const (
	MarketAnalyst       = "market"
	SocialMediaAnalyst  = "social"
	NewsAnalyst         = "news"
	FundamentalsAnalyst = "fundamentals"
)

// AnalystOrder is the default analyst selection.
var AnalystOrder = []string{MarketAnalyst, SocialMediaAnalyst, NewsAnalyst, FundamentalsAnalyst}

// AnalystAgents maps a selection key to the agent it enables.
var AnalystAgents = map[string]string{
	MarketAnalyst:       Agent_MarketAnalyst,
	SocialMediaAnalyst:  Agent_SocialAnalyst,
	NewsAnalyst:         Agent_NewsAnalyst,
	FundamentalsAnalyst: Agent_FundamentalsAnalyst,
}

// Research depth values and the debate rounds they imply.
const (
	DepthShallow = "shallow"
	DepthMedium  = "medium"
	DepthDeep    = "deep"
)

var ResearchRounds = map[string]int{
	DepthShallow: 1,
	DepthMedium:  3,
	DepthDeep:    5,
}

// Report length values accepted by the service.
const (
	ReportLengthSummary = "summary report"
	ReportLengthFull    = "full report"
)
