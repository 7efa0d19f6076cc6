package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dyike/CortexDash/consts"
)

// ErrInvalidRequest is returned when a start request fails validation.
var ErrInvalidRequest = errors.New("invalid start request")

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// StartRequest 描述一次分析任务的启动参数
type StartRequest struct {
	Ticker         string   `json:"ticker"`
	AnalysisDate   string   `json:"analysis_date"`
	Analysts       []string `json:"analysts"`
	ResearchDepth  string   `json:"research_depth"`
	LLMProvider    string   `json:"llm_provider"`
	BackendURL     string   `json:"backend_url"`
	ShallowThinker string   `json:"shallow_thinker"`
	DeepThinker    string   `json:"deep_thinker"`
	ReportLength   string   `json:"report_length"`
	RunID          string   `json:"run_id,omitempty"`
}

// Normalize validates the request and fills defaults. The receiver is not modified.
func (r StartRequest) Normalize(now time.Time) (StartRequest, error) {
	out := r

	out.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if out.Ticker == "" {
		return StartRequest{}, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}
	if !tickerPattern.MatchString(out.Ticker) {
		return StartRequest{}, fmt.Errorf("%w: invalid ticker %q", ErrInvalidRequest, r.Ticker)
	}

	out.AnalysisDate = strings.TrimSpace(r.AnalysisDate)
	if out.AnalysisDate == "" {
		out.AnalysisDate = now.Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", out.AnalysisDate); err != nil {
		return StartRequest{}, fmt.Errorf("%w: invalid analysis_date: %v", ErrInvalidRequest, err)
	}

	analysts, err := normalizeAnalysts(r.Analysts)
	if err != nil {
		return StartRequest{}, err
	}
	out.Analysts = analysts

	out.ResearchDepth = strings.ToLower(strings.TrimSpace(r.ResearchDepth))
	if out.ResearchDepth == "" {
		out.ResearchDepth = consts.DepthShallow
	}
	if _, ok := consts.ResearchRounds[out.ResearchDepth]; !ok {
		return StartRequest{}, fmt.Errorf("%w: unknown research_depth %q", ErrInvalidRequest, r.ResearchDepth)
	}

	out.ReportLength = strings.ToLower(strings.TrimSpace(r.ReportLength))
	switch out.ReportLength {
	case "", consts.ModeSummary, consts.ReportLengthSummary:
		out.ReportLength = consts.ReportLengthSummary
	case consts.ModeFull, consts.ReportLengthFull:
		out.ReportLength = consts.ReportLengthFull
	default:
		return StartRequest{}, fmt.Errorf("%w: unknown report_length %q", ErrInvalidRequest, r.ReportLength)
	}

	out.LLMProvider = strings.TrimSpace(r.LLMProvider)
	out.BackendURL = strings.TrimSpace(r.BackendURL)
	out.ShallowThinker = strings.TrimSpace(r.ShallowThinker)
	out.DeepThinker = strings.TrimSpace(r.DeepThinker)
	return out, nil
}

// DisplayMode returns the report mode implied by ReportLength.
func (r StartRequest) DisplayMode() DisplayMode {
	if r.ReportLength == consts.ReportLengthFull {
		return ModeFull
	}
	return ModeSummary
}

func normalizeAnalysts(in []string) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), consts.AnalystOrder...), nil
	}
	selected := make(map[string]bool, len(in))
	for _, a := range in {
		key := strings.ToLower(strings.TrimSpace(a))
		if _, ok := consts.AnalystAgents[key]; !ok {
			return nil, fmt.Errorf("%w: unknown analyst %q", ErrInvalidRequest, a)
		}
		selected[key] = true
	}
	// keep the canonical order regardless of input order
	out := make([]string, 0, len(selected))
	for _, key := range consts.AnalystOrder {
		if selected[key] {
			out = append(out, key)
		}
	}
	return out, nil
}
