package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/models"
)

func payload(t *testing.T, doc string) *models.Payload {
	t.Helper()
	p, err := models.ParsePayload([]byte(doc))
	require.NoError(t, err)
	return p
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"BUY", "BUY", true},
		{"  sell ", "SELL", true},
		{"**Hold.**", "HOLD", true},
		{"Strong Hold", "", false},
		{"Overweight", "", false},
		{"do not buy", "", false},
		{"N/A", "", false},
		{"", "", false},
		{"After weighing the bull and bear arguments at length we conclude the position should be reduced", "", false},
		{"Long analysis...\nFINAL TRANSACTION PROPOSAL: **SELL**", "SELL", true},
		{"final transaction proposal: hold", "HOLD", true},
	}
	for _, tc := range cases {
		got, ok := Normalize(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestResolveExplicitWins(t *testing.T) {
	p := payload(t, `{"final_trade_decision":{"decision":"SELL"}}`)
	assert.Equal(t, "BUY", Resolve("buy", p))
}

func TestResolveDirectFields(t *testing.T) {
	cases := map[string]string{
		`{"final_trade_decision":{"judge_decision":"Hold"}}`:                    "HOLD",
		`{"final_trade_decision":{"recommendation":"sell"}}`:                    "SELL",
		`{"final_trade_decision":"BUY"}`:                                        "BUY",
		`{"Summarize_final_trade_decision_report":{"decision":"SELL"}}`:         "SELL",
		`{"risk_debate_state":{"judge_decision":"FINAL TRANSACTION PROPOSAL: BUY"}}`: "BUY",
		`{"decision":"hold"}`:                                                   "HOLD",
		`{"final_trade_decision":{"decision":{"action":"buy"}}}`:                "BUY",
	}
	for doc, want := range cases {
		assert.Equal(t, want, Resolve("", payload(t, doc)), doc)
	}
}

func TestResolvePriorityOrder(t *testing.T) {
	p := payload(t, `{
		"risk_debate_state": {"judge_decision": "SELL"},
		"Summarize_final_trade_decision_report": {"decision": "HOLD"},
		"final_trade_decision": {"decision": "BUY"}
	}`)
	assert.Equal(t, "BUY", Resolve("", p))

	p = payload(t, `{
		"risk_debate_state": {"judge_decision": "SELL"},
		"Summarize_final_trade_decision_report": {"decision": "HOLD"}
	}`)
	assert.Equal(t, "HOLD", Resolve("", p))
}

func TestResolveScores(t *testing.T) {
	cases := map[string]string{
		`{"final_trade_decision":{"score":0.8}}`:   "BUY",
		`{"final_trade_decision":{"score":-0.5}}`:  "SELL",
		`{"final_trade_decision":{"score":0.1}}`:   "HOLD",
		`{"final_trade_decision":{"score":75}}`:    "BUY",
		`{"final_trade_decision":{"score":30}}`:    "SELL",
		`{"final_trade_decision":{"score":50}}`:    "HOLD",
		`{"final_trade_decision":{"score":"0.9"}}`: "BUY",
		`{"final_trade_decision":{"score":500}}`:   models.DecisionReview,
	}
	for doc, want := range cases {
		assert.Equal(t, want, Resolve("", payload(t, doc)), doc)
	}
}

func TestResolveEmbeddedJSON(t *testing.T) {
	p := payload(t, `{"final_trade_decision":{"text":"Here is my verdict: {\"decision\": \"SELL\", \"confidence\": 0.7} thanks"}}`)
	assert.Equal(t, "SELL", Resolve("", p))

	p = payload(t, `{"final_trade_decision":"The committee reviewed every report in depth before voting.\n{\"judge_decision\":\"hold\"}"}`)
	assert.Equal(t, "HOLD", Resolve("", p))
}

func TestResolveFallsBackToReview(t *testing.T) {
	assert.Equal(t, models.DecisionReview, Resolve("", nil))
	assert.Equal(t, models.DecisionReview, Resolve("", models.NewPayload()))

	p := payload(t, `{"final_trade_decision":{"text":"no structure here {not json}"}}`)
	assert.Equal(t, models.DecisionReview, Resolve("", p))
}

func TestResolveRejectsNonDecisions(t *testing.T) {
	cases := map[string]string{
		`{"final_trade_decision":"no clear signal"}`:                        models.DecisionReview,
		`{"final_trade_decision":{"decision":"Neutral, do not buy"}}`:       models.DecisionReview,
		`{"final_trade_decision":{"decision":"N/A","score":-0.6}}`:          "SELL",
		`{"final_trade_decision":{"decision":"undecided","recommendation":"Hold"}}`: "HOLD",
	}
	for doc, want := range cases {
		assert.Equal(t, want, Resolve("", payload(t, doc)), doc)
	}
	assert.Equal(t, models.DecisionReview, Resolve("N/A", nil))
	assert.Equal(t, "SELL", Resolve("maybe", payload(t, `{"decision":"sell"}`)))
}

func TestEmbeddedObject(t *testing.T) {
	obj, ok := EmbeddedObject(`prefix {"a":{"b":1}} suffix`)
	require.True(t, ok)
	assert.Equal(t, int64(1), obj.Get("a.b").Int())

	_, ok = EmbeddedObject("} backwards {")
	assert.False(t, ok)
	_, ok = EmbeddedObject("none")
	assert.False(t, ok)
}
