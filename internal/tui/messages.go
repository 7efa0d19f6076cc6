package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dyike/CortexDash/internal/session"
)

// ChangeMsg wraps a session change notification.
type ChangeMsg struct {
	Change session.Change
}

// ClosedMsg is sent once the session stops delivering changes.
type ClosedMsg struct{}

// ActionErrMsg reports a failed user command.
type ActionErrMsg struct {
	Err error
}

// WaitForChangeCmd blocks on the subscription and turns the next change
// into a ChangeMsg.
func WaitForChangeCmd(changes <-chan session.Change) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-changes
		if !ok {
			return ClosedMsg{}
		}
		return ChangeMsg{Change: c}
	}
}
