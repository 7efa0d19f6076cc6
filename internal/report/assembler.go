// Package report derives the ordered, mode-filtered list of report sections
// shown for a run.
package report

import (
	"sort"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/models"
)

// Entry is one displayable report section.
type Entry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Assemble lists the payload sections visible in mode. Known keys follow
// order and are filtered by their classification in sections; keys missing
// from order are appended in first-seen order regardless of mode.
func Assemble(p *models.Payload, mode models.DisplayMode, order []string, sections map[string]consts.SectionInfo) []Entry {
	known := make(map[string]bool, len(order))
	var out []Entry
	for _, key := range order {
		known[key] = true
		raw, ok := p.Get(key)
		if !ok {
			continue
		}
		info := sections[key]
		if !modeMatches(info.Mode, mode) {
			continue
		}
		out = append(out, Entry{Key: key, Label: labelOf(key, info), Text: models.RawText(raw)})
	}
	for _, key := range p.Keys() {
		if known[key] {
			continue
		}
		raw, _ := p.Get(key)
		out = append(out, Entry{Key: key, Label: labelOf(key, sections[key]), Text: models.RawText(raw)})
	}
	return out
}

// AssembleThai lists localized sections visible in mode, ordered by the
// canonical position of their section key. Unknown sections keep arrival
// order after the known ones.
func AssembleThai(thai []models.ThaiReportSection, mode models.DisplayMode, order []string, sections map[string]consts.SectionInfo) []Entry {
	rank := make(map[string]int, len(order))
	for i, key := range order {
		rank[key] = i
	}
	type ranked struct {
		pos   int
		entry Entry
	}
	var picked []ranked
	for i, sec := range thai {
		info := sections[sec.Section]
		kind := sec.ReportType
		if kind != consts.ModeSummary && kind != consts.ModeFull {
			kind = info.Mode
		}
		if !modeMatches(kind, mode) {
			continue
		}
		pos, ok := rank[sec.Section]
		if !ok {
			pos = len(order) + i
		}
		label := sec.Label
		if label == "" {
			label = labelOf(sec.Section, info)
		}
		picked = append(picked, ranked{pos: pos, entry: Entry{Key: sec.Section, Label: label, Text: sec.Content}})
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].pos < picked[j].pos })

	out := make([]Entry, len(picked))
	for i, r := range picked {
		out[i] = r.entry
	}
	return out
}

// View returns the entries for a language and mode with the default key
// table. The Thai view falls back to English until a Thai section arrives;
// incomplete and error entries always come from the payload.
func View(lang models.Language, mode models.DisplayMode, p *models.Payload, thai []models.ThaiReportSection) []Entry {
	if lang != models.LangThai || len(thai) == 0 {
		return Assemble(p, mode, consts.ReportOrder, consts.ReportSections)
	}
	out := AssembleThai(thai, mode, consts.ReportOrder, consts.ReportSections)
	for _, key := range []string{consts.Report_Incomplete, consts.Report_Error} {
		if raw, ok := p.Get(key); ok {
			out = append(out, Entry{Key: key, Label: labelOf(key, consts.ReportSections[key]), Text: models.RawText(raw)})
		}
	}
	return out
}

func modeMatches(kind string, mode models.DisplayMode) bool {
	return kind == "" || kind == consts.ModeAll || kind == string(mode)
}

func labelOf(key string, info consts.SectionInfo) string {
	if info.Label != "" {
		return info.Label
	}
	return key
}
