package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/CortexDash/config"
	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/models"
)

var errCancelled = errors.New("analysis cancelled")

// validateTicker accepts whatever a start request would accept.
func validateTicker(val interface{}) error {
	str, _ := val.(string)
	if strings.TrimSpace(str) == "" {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	_, err := models.StartRequest{Ticker: str}.Normalize(time.Now())
	return err
}

// dateValidator rejects malformed dates and dates after tomorrow.
func dateValidator(now func() time.Time) survey.Validator {
	return func(val interface{}) error {
		str, _ := val.(string)
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		parsed, err := time.Parse("2006-01-02", str)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		if parsed.After(now().AddDate(0, 0, 1)) {
			return fmt.Errorf("analysis date cannot be more than 1 day in the future")
		}
		return nil
	}
}

// PromptForTicker prompts the user to enter a stock ticker symbol
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Please enter a valid stock ticker symbol for analysis",
	}
	if err := survey.AskOne(prompt, &ticker, survey.WithValidator(validateTicker)); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForAnalysisDate prompts for a YYYY-MM-DD date, today by default.
func PromptForAnalysisDate() (string, error) {
	var date string
	prompt := &survey.Input{
		Message: "Enter the analysis date (YYYY-MM-DD):",
		Help:    "Format: YYYY-MM-DD (e.g., 2024-01-15). Leave empty for today's date.",
		Default: time.Now().Format("2006-01-02"),
	}
	if err := survey.AskOne(prompt, &date, survey.WithValidator(dateValidator(time.Now))); err != nil {
		return "", err
	}
	return strings.TrimSpace(date), nil
}

// PromptForAnalysts returns the selected analyst keys.
func PromptForAnalysts(defaults []string) ([]string, error) {
	options := make([]string, 0, len(consts.AnalystOrder))
	for _, key := range consts.AnalystOrder {
		options = append(options, consts.AnalystAgents[key])
	}
	var preselected []string
	for _, key := range defaults {
		if name, ok := consts.AnalystAgents[key]; ok {
			preselected = append(preselected, name)
		}
	}
	if len(preselected) == 0 {
		preselected = options
	}

	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Select analyst team members:",
		Options: options,
		Help:    "Use space to select, enter to confirm.",
		Default: preselected,
	}
	err := survey.AskOne(prompt, &selected, survey.WithValidator(func(val interface{}) error {
		if answers, ok := val.([]survey.OptionAnswer); ok && len(answers) == 0 {
			return fmt.Errorf("you must select at least one analyst")
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return analystKeys(selected), nil
}

func analystKeys(names []string) []string {
	picked := make(map[string]bool, len(names))
	for _, n := range names {
		picked[n] = true
	}
	var keys []string
	for _, key := range consts.AnalystOrder {
		if picked[consts.AnalystAgents[key]] {
			keys = append(keys, key)
		}
	}
	return keys
}

// PromptForResearchDepth prompts the user to select research depth
func PromptForResearchDepth(def string) (string, error) {
	depths := []string{consts.DepthShallow, consts.DepthMedium, consts.DepthDeep}
	options := make([]string, len(depths))
	defOption := ""
	for i, d := range depths {
		options[i] = depthOption(d)
		if d == def {
			defOption = options[i]
		}
	}
	if defOption == "" {
		defOption = options[0]
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select research depth:",
		Options: options,
		Help:    "More debate rounds give more thorough results but take longer.",
		Default: defOption,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return strings.ToLower(strings.Fields(selected)[0]), nil
}

func depthOption(depth string) string {
	rounds := consts.ResearchRounds[depth]
	unit := "rounds"
	if rounds == 1 {
		unit = "round"
	}
	return fmt.Sprintf("%s (%d %s)", strings.ToUpper(depth[:1])+depth[1:], rounds, unit)
}

// PromptForReportLength asks for the summary or full report.
func PromptForReportLength(def string) (string, error) {
	options := []string{consts.ReportLengthSummary, consts.ReportLengthFull}
	if def != consts.ReportLengthFull {
		def = consts.ReportLengthSummary
	}
	var selected string
	prompt := &survey.Select{
		Message: "Select report length:",
		Options: options,
		Default: def,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

// PromptForConfirmation prompts the user to confirm their selections
func PromptForConfirmation(req models.StartRequest) (bool, error) {
	names := make([]string, 0, len(req.Analysts))
	for _, key := range req.Analysts {
		names = append(names, consts.AnalystAgents[key])
	}
	fmt.Println(headerStyle.Render("Analysis Configuration Summary"))
	fmt.Print(renderRows([][2]string{
		{"📊 Ticker Symbol:", req.Ticker},
		{"📅 Analysis Date:", req.AnalysisDate},
		{"👥 Analyst Team:", strings.Join(names, ", ")},
		{"🔍 Research Depth:", depthOption(req.ResearchDepth)},
		{"📝 Report Length:", req.ReportLength},
		{"🤖 LLM Provider:", req.LLMProvider},
		{"⚡ Quick Model:", req.ShallowThinker},
		{"🧠 Deep Model:", req.DeepThinker},
	}))

	var confirmed bool
	prompt := &survey.Confirm{
		Message: "Proceed with this analysis configuration?",
		Default: true,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// promptRequest walks the user through a start request, using ticker
// without asking when it is given.
func promptRequest(cfg config.Config, ticker string) (models.StartRequest, error) {
	var err error
	if ticker == "" {
		if ticker, err = PromptForTicker(); err != nil {
			return models.StartRequest{}, err
		}
	}
	date, err := PromptForAnalysisDate()
	if err != nil {
		return models.StartRequest{}, err
	}
	req := cfg.DefaultRequest(ticker, date)

	if req.Analysts, err = PromptForAnalysts(cfg.Analysts); err != nil {
		return models.StartRequest{}, err
	}
	if req.ResearchDepth, err = PromptForResearchDepth(cfg.ResearchDepth); err != nil {
		return models.StartRequest{}, err
	}
	if req.ReportLength, err = PromptForReportLength(cfg.ReportLength); err != nil {
		return models.StartRequest{}, err
	}

	req, err = req.Normalize(time.Now())
	if err != nil {
		return models.StartRequest{}, err
	}
	ok, err := PromptForConfirmation(req)
	if err != nil {
		return models.StartRequest{}, err
	}
	if !ok {
		return models.StartRequest{}, errCancelled
	}
	return req, nil
}
