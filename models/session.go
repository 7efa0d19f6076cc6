package models

import "time"

// RunRecord is a persisted pipeline run.
type RunRecord struct {
	Id           string
	Ticker       string
	AnalysisDate string
	Request      StartRequest
	Status       string
	Decision     string
	FinalState   *Payload
	Thai         []ThaiReportSection
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
