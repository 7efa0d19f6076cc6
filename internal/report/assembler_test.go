package report

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/models"
)

func keysOf(entries []Entry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}

func TestAssembleSummaryExcludesFullKeys(t *testing.T) {
	p, err := models.ParsePayload([]byte(`{
		"market_report": {"body": "long"},
		"Summarize_market_report": {"body": "short"}
	}`))
	require.NoError(t, err)

	got := Assemble(p, models.ModeSummary, consts.ReportOrder, consts.ReportSections)
	require.Len(t, got, 1)
	assert.Equal(t, consts.Report_SummaryMarket, got[0].Key)
	assert.Equal(t, "Market Analysis", got[0].Label)
	assert.Equal(t, "{\n  \"body\": \"short\"\n}", got[0].Text)

	got = Assemble(p, models.ModeFull, consts.ReportOrder, consts.ReportSections)
	assert.Equal(t, []string{consts.Report_Market}, keysOf(got))
}

func TestAssembleCanonicalThenUnknown(t *testing.T) {
	p := models.NewPayload()
	p.SetText("zeta_notes", "z")
	p.SetText(consts.Report_FinalDecision, "BUY")
	p.SetText(consts.Report_Error, "boom")
	p.SetText("alpha_notes", "a")
	p.SetText(consts.Report_Market, "m")

	got := Assemble(p, models.ModeFull, consts.ReportOrder, consts.ReportSections)
	assert.Equal(t, []string{
		consts.Report_Market,
		consts.Report_FinalDecision,
		consts.Report_Error,
		"zeta_notes",
		"alpha_notes",
	}, keysOf(got))
	assert.Equal(t, "m", got[0].Text)
	assert.Equal(t, "zeta_notes", got[3].Label)

	summary := Assemble(p, models.ModeSummary, consts.ReportOrder, consts.ReportSections)
	assert.Equal(t, []string{consts.Report_Error, "zeta_notes", "alpha_notes"}, keysOf(summary))
}

func TestAssembleEmpty(t *testing.T) {
	assert.Empty(t, Assemble(nil, models.ModeSummary, consts.ReportOrder, consts.ReportSections))
	assert.Empty(t, Assemble(models.NewPayload(), models.ModeFull, consts.ReportOrder, consts.ReportSections))
}

func TestAssembleThai(t *testing.T) {
	thai := []models.ThaiReportSection{
		{Section: consts.Report_FinalDecision, ReportType: "full", Label: "การตัดสินใจ", Content: "ซื้อ"},
		{Section: "custom_section", ReportType: "other", Content: "x"},
		{Section: consts.Report_Market, ReportType: "full", Content: "ตลาด"},
		{Section: consts.Report_SummaryMarket, ReportType: "summary", Content: "สรุป"},
		{Section: consts.Report_News, ReportType: "legacy", Content: "ข่าว"},
	}

	full := AssembleThai(thai, models.ModeFull, consts.ReportOrder, consts.ReportSections)
	assert.Equal(t, []string{consts.Report_Market, consts.Report_News, consts.Report_FinalDecision, "custom_section"}, keysOf(full))
	assert.Equal(t, "การตัดสินใจ", full[2].Label)
	assert.Equal(t, "Market Analysis", full[0].Label)

	summary := AssembleThai(thai, models.ModeSummary, consts.ReportOrder, consts.ReportSections)
	assert.Equal(t, []string{consts.Report_SummaryMarket, "custom_section"}, keysOf(summary))
}

func TestViewThaiFallsBackToEnglish(t *testing.T) {
	p := models.NewPayload()
	p.SetText(consts.Report_SummaryMarket, "english")
	p.SetText(consts.Report_Incomplete, "Trader")

	got := View(models.LangThai, models.ModeSummary, p, nil)
	assert.Equal(t, []string{consts.Report_SummaryMarket, consts.Report_Incomplete}, keysOf(got))

	thai := []models.ThaiReportSection{{Section: consts.Report_SummaryMarket, ReportType: "summary", Content: "ไทย"}}
	got = View(models.LangThai, models.ModeSummary, p, thai)
	require.Equal(t, []string{consts.Report_SummaryMarket, consts.Report_Incomplete}, keysOf(got))
	assert.Equal(t, "ไทย", got[0].Text)

	got = View(models.LangEnglish, models.ModeSummary, p, thai)
	assert.Equal(t, "english", got[0].Text)
}

func TestAssembleDeterministicAcrossArrivalOrder(t *testing.T) {
	keys := append([]string(nil), consts.ReportOrder...)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("known keys assemble identically in any arrival order", prop.ForAll(
		func(seed int64, full bool) bool {
			mode := models.ModeSummary
			if full {
				mode = models.ModeFull
			}
			ordered := models.NewPayload()
			for _, k := range keys {
				ordered.SetText(k, "text of "+k)
			}
			shuffled := models.NewPayload()
			perm := rand.New(rand.NewSource(seed)).Perm(len(keys))
			for _, i := range perm {
				shuffled.SetText(keys[i], "text of "+keys[i])
			}
			a := Assemble(ordered, mode, consts.ReportOrder, consts.ReportSections)
			b := Assemble(shuffled, mode, consts.ReportOrder, consts.ReportSections)
			c := Assemble(shuffled, mode, consts.ReportOrder, consts.ReportSections)
			return reflect.DeepEqual(a, b) && reflect.DeepEqual(b, c)
		},
		gen.Int64(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestMarkdownFencesStructuredText(t *testing.T) {
	md := Markdown([]Entry{
		{Key: "a", Label: "Plain", Text: "  hello  "},
		{Key: "b", Label: "Structured", Text: "{\n  \"x\": 1\n}"},
	})
	assert.Equal(t, "## Plain\n\nhello\n\n## Structured\n\n```json\n{\n  \"x\": 1\n}\n```", md)
	assert.Empty(t, Markdown(nil))
}
