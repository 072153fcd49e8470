package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/linkguard/result"
	"github.com/lukemcguire/linkguard/verifier"
)

// ProgressMsg reports one completed check.
type ProgressMsg struct {
	verifier.Progress
}

// DoneMsg signals the verification run has completed.
type DoneMsg struct {
	Result *result.Result
	Err    error
}

// progressClosedMsg is sent once the progress channel closes. The run's
// result still arrives separately as a DoneMsg.
type progressClosedMsg struct{}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel.
func waitForProgress(ch <-chan verifier.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return ProgressMsg{Progress: p}
	}
}
