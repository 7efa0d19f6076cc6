package consts

// Report modes.
const (
	ModeSummary = "summary"
	ModeFull    = "full"
	// ModeAll marks sections shown regardless of the requested mode.
	ModeAll = "all"
)

// Report keys shared with the pipeline service.
const (
	Report_SummaryMarket        = "Summarize_market_report"
	Report_SummarySocial        = "Summarize_social_report"
	Report_SummaryNews          = "Summarize_news_report"
	Report_SummaryFundamentals  = "Summarize_fundamentals_report"
	Report_SummaryInvestPlan    = "Summarize_investment_plan_report"
	Report_SummaryTrader        = "Summarize_trader_report"
	Report_SummaryConservative  = "Summarize_conservative_report"
	Report_SummaryAggressive    = "Summarize_aggressive_report"
	Report_SummaryNeutral       = "Summarize_neutral_report"
	Report_SummaryFinalDecision = "Summarize_final_trade_decision_report"

	Report_Market        = "market_report"
	Report_Sentiment     = "sentiment_report"
	Report_News          = "news_report"
	Report_Fundamentals  = "fundamentals_report"
	Report_InvestDebate  = "investment_debate_state"
	Report_InvestPlan    = "investment_plan"
	Report_TraderPlan    = "trader_investment_plan"
	Report_RiskDebate    = "risk_debate_state"
	Report_FinalDecision = "final_trade_decision"

	// Synthetic entries appended by the client.
	Report_Error      = "error"
	Report_Incomplete = "incomplete_agents"
)

// SectionInfo classifies a report key.
type SectionInfo struct {
	Label string
	Mode  string
}

// ReportOrder is the canonical display order of known report keys.
var ReportOrder = []string{
	Report_SummaryMarket,
	Report_SummarySocial,
	Report_SummaryNews,
	Report_SummaryFundamentals,
	Report_SummaryInvestPlan,
	Report_SummaryTrader,
	Report_SummaryConservative,
	Report_SummaryAggressive,
	Report_SummaryNeutral,
	Report_SummaryFinalDecision,
	Report_Market,
	Report_Sentiment,
	Report_News,
	Report_Fundamentals,
	Report_InvestDebate,
	Report_InvestPlan,
	Report_TraderPlan,
	Report_RiskDebate,
	Report_FinalDecision,
	Report_Incomplete,
	Report_Error,
}

// ReportSections holds the label and mode of every known report key.
var ReportSections = map[string]SectionInfo{
	Report_SummaryMarket:        {Label: "Market Analysis", Mode: ModeSummary},
	Report_SummarySocial:        {Label: "Social Sentiment", Mode: ModeSummary},
	Report_SummaryNews:          {Label: "News Analysis", Mode: ModeSummary},
	Report_SummaryFundamentals:  {Label: "Fundamentals", Mode: ModeSummary},
	Report_SummaryInvestPlan:    {Label: "Research Decision", Mode: ModeSummary},
	Report_SummaryTrader:        {Label: "Trading Plan", Mode: ModeSummary},
	Report_SummaryConservative:  {Label: "Conservative Risk View", Mode: ModeSummary},
	Report_SummaryAggressive:    {Label: "Aggressive Risk View", Mode: ModeSummary},
	Report_SummaryNeutral:       {Label: "Neutral Risk View", Mode: ModeSummary},
	Report_SummaryFinalDecision: {Label: "Final Decision", Mode: ModeSummary},

	Report_Market:        {Label: "Market Analysis", Mode: ModeFull},
	Report_Sentiment:     {Label: "Social Sentiment", Mode: ModeFull},
	Report_News:          {Label: "News Analysis", Mode: ModeFull},
	Report_Fundamentals:  {Label: "Fundamentals", Mode: ModeFull},
	Report_InvestDebate:  {Label: "Research Debate", Mode: ModeFull},
	Report_InvestPlan:    {Label: "Research Decision", Mode: ModeFull},
	Report_TraderPlan:    {Label: "Trading Plan", Mode: ModeFull},
	Report_RiskDebate:    {Label: "Risk Debate", Mode: ModeFull},
	Report_FinalDecision: {Label: "Final Decision", Mode: ModeFull},

	Report_Incomplete: {Label: "Incomplete Agents", Mode: ModeAll},
	Report_Error:      {Label: "Error", Mode: ModeAll},
}
