package models

// Canonical decision tokens.
const (
	DecisionBuy    = "BUY"
	DecisionSell   = "SELL"
	DecisionHold   = "HOLD"
	DecisionReview = "REVIEW"
)
