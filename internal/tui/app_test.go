package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/internal/conn"
	"github.com/dyike/CortexDash/internal/pipeline"
	"github.com/dyike/CortexDash/internal/report"
	"github.com/dyike/CortexDash/internal/session"
	"github.com/dyike/CortexDash/models"
)

type fakeController struct {
	snap    session.Snapshot
	entries []report.Entry
	stopErr error
	stops   int
	views   int
}

func (f *fakeController) Snapshot() session.Snapshot { return f.snap }

func (f *fakeController) View() []report.Entry {
	f.views++
	return f.entries
}

func (f *fakeController) StopRun() error {
	f.stops++
	return f.stopErr
}

func (f *fakeController) SetDisplayMode(m models.DisplayMode) {
	f.snap.Mode = m
	f.snap.Version++
}

func (f *fakeController) SetLanguage(l models.Language) {
	f.snap.Language = l
	f.snap.Version++
}

func newFake() *fakeController {
	teams := pipeline.NewTeams(nil)
	teams[0].Agents[0].Status = models.StatusInProgress
	return &fakeController{
		snap: session.Snapshot{
			State: pipeline.State{
				Run: models.Run{
					ID:        "run-1",
					Ticker:    "AAPL",
					IsRunning: true,
					Request:   models.StartRequest{Ticker: "AAPL", AnalysisDate: "2025-01-02"},
				},
				Teams:    teams,
				Decision: "BUY",
				Version:  1,
			},
			Connection: conn.StatusConnected,
			Mode:       models.ModeSummary,
			Language:   models.LangEnglish,
		},
		entries: []report.Entry{
			{Key: consts.Report_SummaryMarket, Label: "Market Summary", Text: "Momentum is strong"},
		},
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, m AppModel) AppModel {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return next.(AppModel)
}

func TestViewBeforeSize(t *testing.T) {
	m := NewAppModel(newFake(), nil, Options{GlamourStyle: "notty"})
	assert.Equal(t, "Initializing...", m.View())
}

func TestViewTooSmall(t *testing.T) {
	m := NewAppModel(newFake(), nil, Options{GlamourStyle: "notty"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Contains(t, next.(AppModel).View(), "Terminal too small")
}

func TestViewShowsRunAndReports(t *testing.T) {
	ctrl := newFake()
	m := sized(t, NewAppModel(ctrl, nil, Options{GlamourStyle: "notty"}))

	out := m.View()
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "2025-01-02")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, consts.Agent_MarketAnalyst)
	assert.Contains(t, out, "Momentum is strong")
	assert.Contains(t, out, "0/")
}

func TestRefreshSkipsUnchangedVersion(t *testing.T) {
	ctrl := newFake()
	m := sized(t, NewAppModel(ctrl, nil, Options{GlamourStyle: "notty"}))
	before := ctrl.views

	next, _ := m.Update(ChangeMsg{Change: session.Change{Kind: session.ChangeState}})
	assert.Equal(t, before, ctrl.views)

	ctrl.snap.Version++
	next.(AppModel).Update(ChangeMsg{Change: session.Change{Kind: session.ChangeState}})
	assert.Equal(t, before+1, ctrl.views)
}

func TestChangeMsgWaitsAgain(t *testing.T) {
	ch := make(chan session.Change, 1)
	m := NewAppModel(newFake(), ch, Options{GlamourStyle: "notty"})

	_, cmd := m.Update(ChangeMsg{})
	require.NotNil(t, cmd)

	ch <- session.Change{Kind: session.ChangeView}
	assert.Equal(t, ChangeMsg{Change: session.Change{Kind: session.ChangeView}}, cmd())

	close(ch)
	assert.Equal(t, ClosedMsg{}, cmd())
}

func TestToggleModeAndLanguage(t *testing.T) {
	ctrl := newFake()
	m := sized(t, NewAppModel(ctrl, nil, Options{GlamourStyle: "notty"}))

	next, _ := m.Update(key("m"))
	assert.Equal(t, models.ModeFull, ctrl.snap.Mode)
	next, _ = next.Update(key("m"))
	assert.Equal(t, models.ModeSummary, ctrl.snap.Mode)

	next, _ = next.Update(key("l"))
	assert.Equal(t, models.LangThai, ctrl.snap.Language)
	assert.Contains(t, next.View(), "summary/th")
}

func TestStopKeyReportsError(t *testing.T) {
	ctrl := newFake()
	ctrl.stopErr = errors.New("not connected")
	m := sized(t, NewAppModel(ctrl, nil, Options{GlamourStyle: "notty"}))

	next, cmd := m.Update(key("x"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, 1, ctrl.stops)

	next, _ = next.Update(msg)
	assert.True(t, strings.Contains(next.View(), "not connected"))
}

func TestQuit(t *testing.T) {
	m := NewAppModel(newFake(), nil, Options{GlamourStyle: "notty"})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
