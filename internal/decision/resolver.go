// Package decision extracts the canonical trade decision from a run's final state.
package decision

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/models"
)

var proposalPattern = regexp.MustCompile(`(?i)final\s+transaction\s+proposal\s*:\s*[*_\s]*(buy|sell|hold)\b`)

// tokenTrim is stripped from both ends of a bare token.
const tokenTrim = " \t\r\n*_.:`\"'"

// Fields that carry a decision directly, in priority order.
var decisionFields = []string{"judge_decision", "decision", "recommendation", "action"}

// Fields that may carry free text with an embedded JSON object.
var textFields = []string{"text", "content", "raw", "output"}

// Payload keys probed for the completion decision, before the payload root.
var payloadKeys = []string{
	consts.Report_FinalDecision,
	consts.Report_SummaryFinalDecision,
	consts.Report_RiskDebate,
}

// Resolve returns the decision token for a finished run: the explicit value
// if usable, then direct decision fields of the final state, then JSON
// embedded in free text, and finally models.DecisionReview.
func Resolve(explicit string, state *models.Payload) string {
	if tok, ok := Normalize(explicit); ok {
		return tok
	}

	candidates := candidatesOf(state)
	for _, c := range candidates {
		if tok, ok := fromDirect(c); ok {
			return tok
		}
	}
	for _, c := range candidates {
		if tok, ok := fromFreeText(c); ok {
			return tok
		}
	}
	return models.DecisionReview
}

func candidatesOf(state *models.Payload) []gjson.Result {
	if state == nil || state.Len() == 0 {
		return nil
	}
	var out []gjson.Result
	for _, key := range payloadKeys {
		if raw, ok := state.Get(key); ok {
			out = append(out, gjson.ParseBytes(raw))
		}
	}
	if root, err := state.MarshalJSON(); err == nil {
		out = append(out, gjson.ParseBytes(root))
	}
	return out
}

// Normalize maps a decision string to BUY, SELL or HOLD. Text resolves
// through a "FINAL TRANSACTION PROPOSAL" marker or by being the bare token
// itself, give or take surrounding markdown and punctuation. Anything else,
// including a negated action, is not a decision.
func Normalize(s string) (string, bool) {
	if m := proposalPattern.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1]), true
	}
	tok := strings.ToUpper(strings.Trim(s, tokenTrim))
	switch tok {
	case models.DecisionBuy, models.DecisionSell, models.DecisionHold:
		return tok, true
	}
	return "", false
}

func fromDirect(r gjson.Result) (string, bool) {
	if r.Type == gjson.String {
		return Normalize(r.String())
	}
	if !r.IsObject() {
		return "", false
	}
	for _, field := range decisionFields {
		v := r.Get(field)
		switch {
		case v.Type == gjson.String:
			if tok, ok := Normalize(v.String()); ok {
				return tok, true
			}
		case v.IsObject():
			if tok, ok := fromDirect(v); ok {
				return tok, true
			}
		}
	}
	if tok, ok := scoreLabel(r.Get("score")); ok {
		return tok, true
	}
	return "", false
}

func fromFreeText(r gjson.Result) (string, bool) {
	var texts []string
	switch {
	case r.Type == gjson.String:
		texts = append(texts, r.String())
	case r.IsObject():
		for _, field := range append(append([]string(nil), textFields...), decisionFields...) {
			if v := r.Get(field); v.Type == gjson.String {
				texts = append(texts, v.String())
			}
		}
	}
	for _, text := range texts {
		obj, ok := EmbeddedObject(text)
		if !ok {
			continue
		}
		if tok, ok := fromDirect(obj); ok {
			return tok, true
		}
	}
	return "", false
}

// EmbeddedObject parses the JSON object spanning the first '{' to the last
// '}' of text.
func EmbeddedObject(text string) (gjson.Result, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	sub := text[start : end+1]
	if !gjson.Valid(sub) {
		return gjson.Result{}, false
	}
	obj := gjson.Parse(sub)
	return obj, obj.IsObject()
}

// scoreLabel turns a numeric score into a token. Scores in [-1, 1] are
// signed conviction; scores in (1, 100] are percentages.
func scoreLabel(v gjson.Result) (string, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return "", false
		}
		f = parsed
	default:
		return "", false
	}
	switch {
	case f >= -1 && f <= 1:
		if f > 0.2 {
			return models.DecisionBuy, true
		}
		if f < -0.2 {
			return models.DecisionSell, true
		}
		return models.DecisionHold, true
	case f > 1 && f <= 100:
		if f >= 60 {
			return models.DecisionBuy, true
		}
		if f <= 40 {
			return models.DecisionSell, true
		}
		return models.DecisionHold, true
	}
	return "", false
}
