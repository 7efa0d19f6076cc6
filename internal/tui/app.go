// Package tui is the live terminal dashboard for a session.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexDash/internal/report"
	"github.com/dyike/CortexDash/internal/session"
	"github.com/dyike/CortexDash/models"
)

// Controller is the part of the session the dashboard drives.
type Controller interface {
	Snapshot() session.Snapshot
	View() []report.Entry
	StopRun() error
	SetDisplayMode(models.DisplayMode)
	SetLanguage(models.Language)
}

type Options struct {
	// GlamourStyle names a glamour standard style; "dark" when empty.
	GlamourStyle string
}

const (
	progressWidth = 38
	headerHeight  = 3
	footerHeight  = 1
)

// AppModel is the top-level Bubble Tea model of the dashboard.
type AppModel struct {
	ctrl    Controller
	changes <-chan session.Change

	viewport viewport.Model
	spinner  spinner.Model

	style         string
	renderer      *glamour.TermRenderer
	rendererWidth int
	renderedKey   string

	snap   session.Snapshot
	notice string
	closed bool
	width  int
	height int
}

func NewAppModel(ctrl Controller, changes <-chan session.Change, opts Options) AppModel {
	style := opts.GlamourStyle
	if style == "" {
		style = "dark"
	}
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = InProgressStyle

	vp := viewport.New(80, 20)
	vp.SetContent("No report sections yet.")

	m := AppModel{
		ctrl:     ctrl,
		changes:  changes,
		viewport: vp,
		spinner:  sp,
		style:    style,
	}
	m.snap = ctrl.Snapshot()
	return m
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(WaitForChangeCmd(m.changes), m.spinner.Tick)
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh()
		return m, nil

	case ChangeMsg:
		m.refresh()
		return m, WaitForChangeCmd(m.changes)

	case ClosedMsg:
		m.closed = true
		m.notice = "session closed"
		return m, nil

	case ActionErrMsg:
		m.notice = msg.Err.Error()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "m":
		next := models.ModeFull
		if m.snap.Mode == models.ModeFull {
			next = models.ModeSummary
		}
		m.ctrl.SetDisplayMode(next)
		m.refresh()
		return m, nil
	case "l":
		next := models.LangThai
		if m.snap.Language == models.LangThai {
			next = models.LangEnglish
		}
		m.ctrl.SetLanguage(next)
		m.refresh()
		return m, nil
	case "x":
		m.notice = "stopping…"
		ctrl := m.ctrl
		return m, func() tea.Msg {
			if err := ctrl.StopRun(); err != nil {
				return ActionErrMsg{Err: err}
			}
			return nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *AppModel) resize() {
	w := m.width - progressWidth - 2
	if w < 20 {
		w = 20
	}
	h := m.height - headerHeight - footerHeight - 2
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
}

// refresh pulls a new snapshot and re-renders the report pane when its
// inputs changed.
func (m *AppModel) refresh() {
	m.snap = m.ctrl.Snapshot()
	key := fmt.Sprintf("%d|%s|%s|%d", m.snap.Version, m.snap.Mode, m.snap.Language, m.viewport.Width)
	if key == m.renderedKey {
		return
	}
	m.renderedKey = key
	m.viewport.SetContent(m.renderEntries(m.ctrl.View()))
}

func (m *AppModel) renderEntries(entries []report.Entry) string {
	if len(entries) == 0 {
		return "No report sections yet."
	}
	md := report.Markdown(entries)
	if m.renderer == nil || m.rendererWidth != m.viewport.Width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(m.viewport.Width-2),
		)
		if err != nil {
			return md
		}
		m.renderer, m.rendererWidth = r, m.viewport.Width
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 60 || m.height < 12 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 60x12.", m.width, m.height)
	}

	spin := ""
	if m.snap.Run.IsRunning {
		spin = m.spinner.View()
	}
	progress := ProgressStyle.Width(progressWidth - 2).Render(RenderTeams(m.snap.Teams, spin))
	reports := ReportsStyle.Render(m.viewport.View())

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, progress, reports))
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m AppModel) header() string {
	ticker := m.snap.Run.Ticker
	if ticker == "" {
		ticker = "no run"
	}
	parts := []string{
		TitleStyle.Render("CortexDash"),
		"📊 " + ticker,
	}
	if date := m.snap.Run.Request.AnalysisDate; date != "" {
		parts = append(parts, "📅 "+date)
	}
	parts = append(parts,
		connectionBadge(m.snap.Connection),
		"🎯 "+decisionStyle(m.snap.Decision).Render(m.snap.Decision),
		fmt.Sprintf("[%s/%s]", m.snap.Mode, m.snap.Language),
	)
	if m.snap.Run.IsRunning {
		parts = append(parts, InProgressStyle.Render(m.spinner.View()+" running"))
	} else if m.snap.Run.Outcome != models.OutcomeNone {
		parts = append(parts, string(m.snap.Run.Outcome))
	}
	return HeaderStyle.Width(m.width - 2).Render(strings.Join(parts, "  "))
}

func (m AppModel) footer() string {
	help := "m mode · l language · x stop · ↑/↓ scroll · q quit"
	if m.notice != "" {
		help += "  │ " + m.notice
	}
	return HelpStyle.Render(help)
}
