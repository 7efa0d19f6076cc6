// Package export writes a run's report as Markdown and HTML files.
package export

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dyike/CortexDash/internal/pipeline"
	"github.com/dyike/CortexDash/internal/report"
	"github.com/dyike/CortexDash/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Meta is the run header of an exported report.
type Meta struct {
	RunID        string
	Ticker       string
	AnalysisDate string
	Decision     string
	Outcome      models.RunOutcome
	Mode         models.DisplayMode
	Language     models.Language
	StartedAt    time.Time
	FinishedAt   time.Time
	Teams        []models.Team
}

func MetaOf(st pipeline.State, mode models.DisplayMode, lang models.Language) Meta {
	return Meta{
		RunID:        st.Run.ID,
		Ticker:       st.Run.Ticker,
		AnalysisDate: st.Run.Request.AnalysisDate,
		Decision:     st.Decision,
		Outcome:      st.Run.Outcome,
		Mode:         mode,
		Language:     lang,
		StartedAt:    st.Run.StartedAt,
		FinishedAt:   st.Run.FinishedAt,
		Teams:        st.Teams,
	}
}

// MetaOfRecord builds the header of a run replayed from history. Agent
// statuses are not persisted, so the completion table is left out.
func MetaOfRecord(rec models.RunRecord, mode models.DisplayMode, lang models.Language) Meta {
	outcome := models.RunOutcome(rec.Status)
	switch outcome {
	case models.OutcomeCompleted, models.OutcomeFailed, models.OutcomeStopped:
	default:
		outcome = models.OutcomeNone
	}
	meta := Meta{
		RunID:        rec.Id,
		Ticker:       rec.Ticker,
		AnalysisDate: rec.AnalysisDate,
		Decision:     rec.Decision,
		Outcome:      outcome,
		Mode:         mode,
		Language:     lang,
		StartedAt:    rec.CreatedAt,
	}
	if outcome != models.OutcomeNone {
		meta.FinishedAt = rec.UpdatedAt
	}
	return meta
}

// Markdown renders the header, agent table and every entry in order.
func Markdown(meta Meta, entries []report.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Trading Analysis Report: %s\n\n", meta.Ticker)
	fmt.Fprintf(&b, "**Ticker Symbol:** %s  \n", meta.Ticker)
	fmt.Fprintf(&b, "**Analysis Date:** %s  \n", meta.AnalysisDate)
	if meta.RunID != "" {
		fmt.Fprintf(&b, "**Run ID:** %s  \n", meta.RunID)
	}
	if meta.Outcome != models.OutcomeNone {
		fmt.Fprintf(&b, "**Outcome:** %s  \n", meta.Outcome)
	}
	fmt.Fprintf(&b, "**Decision:** %s  \n", meta.Decision)
	fmt.Fprintf(&b, "**Report:** %s / %s  \n", meta.Mode, meta.Language)
	if !meta.StartedAt.IsZero() {
		fmt.Fprintf(&b, "**Start Time:** %s  \n", meta.StartedAt.Format(timeLayout))
	}
	if !meta.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "**End Time:** %s  \n", meta.FinishedAt.Format(timeLayout))
		if !meta.StartedAt.IsZero() {
			fmt.Fprintf(&b, "**Total Duration:** %s  \n", meta.FinishedAt.Sub(meta.StartedAt).Round(time.Second))
		}
	}

	if len(meta.Teams) > 0 {
		b.WriteString("\n## Agent Completion Status\n\n")
		b.WriteString("| Team | Agent | Status |\n|---|---|---|\n")
		for _, team := range meta.Teams {
			for _, a := range team.Agents {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", team.Label, a.Name, a.Status)
			}
		}
	}

	b.WriteString("\n## Generated Reports\n\n")
	if len(entries) == 0 {
		b.WriteString("_No report sections._\n")
	}
	for i, e := range entries {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, e.Label)
		b.WriteString(e.Body())
		b.WriteString("\n\n")
	}
	return b.String()
}

// HTML converts markdown into a standalone HTML document.
func HTML(title, markdown string) (string, error) {
	var body bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), body.String()), nil
}

// FileBase names the exported files of a run.
func FileBase(meta Meta) string {
	date := strings.ReplaceAll(meta.AnalysisDate, "-", "")
	name := fmt.Sprintf("report_%s_%s_%s", meta.Ticker, date, meta.Mode)
	if meta.Language == models.LangThai {
		name += "_th"
	}
	return name
}

// WriteFiles writes <base>.md and <base>.html under dir and returns both paths.
func WriteFiles(dir string, meta Meta, entries []report.Entry) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	content := Markdown(meta, entries)
	page, err := HTML("Trading Analysis Report: "+meta.Ticker, content)
	if err != nil {
		return "", "", err
	}

	base := filepath.Join(dir, FileBase(meta))
	mdPath, htmlPath := base+".md", base+".html"
	if err := os.WriteFile(mdPath, []byte(content), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write file %s: %w", mdPath, err)
	}
	if err := os.WriteFile(htmlPath, []byte(page), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write file %s: %w", htmlPath, err)
	}
	return mdPath, htmlPath, nil
}
