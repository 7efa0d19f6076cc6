package models

import (
	"strings"
	"time"

	"github.com/dyike/CortexDash/consts"
)

// AgentStatus is the progress state of a single agent.
type AgentStatus string

const (
	StatusPending    AgentStatus = consts.State_Pending
	StatusInProgress AgentStatus = consts.State_InProgress
	StatusCompleted  AgentStatus = consts.State_Completed
	StatusError      AgentStatus = consts.State_Error
)

// ParseAgentStatus maps a wire status string to an AgentStatus.
func ParseAgentStatus(s string) (AgentStatus, bool) {
	switch AgentStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusError:
		return StatusError, true
	}
	return "", false
}

// Terminal reports whether no further transition is allowed within a run.
func (s AgentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanAdvanceTo reports whether moving from s to next keeps status monotonic:
// pending -> in_progress -> completed, with error reachable from any
// non-terminal state.
func (s AgentStatus) CanAdvanceTo(next AgentStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusError:
		return true
	case StatusCompleted:
		return true
	case StatusInProgress:
		return s == StatusPending
	}
	return false
}

// Agent is a named unit of work within a team.
type Agent struct {
	Name   string      `json:"name"`
	Status AgentStatus `json:"status"`
}

// Team groups agents under one of the fixed team names.
type Team struct {
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Agents []Agent `json:"agents"`
}

// ThaiReportSection is one localized section pushed by the service.
type ThaiReportSection struct {
	Section    string `json:"section"`
	ReportType string `json:"report_type"`
	Label      string `json:"label"`
	Content    string `json:"content"`
}

// DisplayMode selects summary or full report sections.
type DisplayMode string

const (
	ModeSummary DisplayMode = consts.ModeSummary
	ModeFull    DisplayMode = consts.ModeFull
)

// ParseDisplayMode accepts "summary"/"full" and the report_length spellings.
func ParseDisplayMode(s string) (DisplayMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case consts.ModeSummary, consts.ReportLengthSummary:
		return ModeSummary, true
	case consts.ModeFull, consts.ReportLengthFull:
		return ModeFull, true
	}
	return "", false
}

// Language selects the report language.
type Language string

const (
	LangEnglish Language = "en"
	LangThai    Language = "th"
)

func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "english":
		return LangEnglish, true
	case "th", "thai":
		return LangThai, true
	}
	return "", false
}

// RunOutcome is how a run ended.
type RunOutcome string

const (
	OutcomeNone      RunOutcome = ""
	OutcomeCompleted RunOutcome = "completed"
	OutcomeFailed    RunOutcome = "failed"
	OutcomeStopped   RunOutcome = "stopped"
)

// Run describes the current or last pipeline run.
type Run struct {
	ID         string       `json:"id"`
	Ticker     string       `json:"ticker"`
	IsRunning  bool         `json:"is_running"`
	Request    StartRequest `json:"request"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Outcome    RunOutcome   `json:"outcome"`
}
