// Package tui provides the Bubble Tea terminal UI for linkguard,
// displaying live verification progress and a styled summary of results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/linkguard/result"
	"github.com/lukemcguire/linkguard/verifier"
)

const maxBarWidth = 60

// RunFunc performs the verification run and assembles its result. It is
// expected to publish progress on the channel handed to NewModel and to
// close that channel when it returns.
type RunFunc func(ctx context.Context) (*result.Result, error)

// Model is the Bubble Tea model for the verification TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	run        RunFunc
	spinner    spinner.Model
	bar        progress.Model
	progressCh <-chan verifier.Progress

	total     int
	completed int
	broken    int
	current   string
	quitting  bool
	done      bool
	result    *result.Result
	err       error
	width     int
}

// NewModel creates a TUI model that runs run and renders progress for total
// records read from progressCh.
func NewModel(ctx context.Context, cancel context.CancelFunc, run RunFunc, progressCh <-chan verifier.Progress, total int) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = maxBarWidth

	return Model{
		ctx:        ctx,
		cancel:     cancel,
		run:        run,
		spinner:    spin,
		bar:        bar,
		progressCh: progressCh,
		total:      total,
	}
}

// Init starts the spinner, the run, and the progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), waitForProgress(m.progressCh))
}

// startRun returns a tea.Cmd that performs the run and sends DoneMsg.
func (m Model) startRun() tea.Cmd {
	return func() tea.Msg {
		res, err := m.run(m.ctx)
		if err != nil {
			err = fmt.Errorf("verify: %w", err)
		}
		return DoneMsg{Result: res, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)

	case ProgressMsg:
		m.completed = msg.Completed
		m.broken = msg.Broken
		m.current = msg.Result.URL
		if msg.Total > 0 {
			m.total = msg.Total
		}
		return m, waitForProgress(m.progressCh)

	case progressClosedMsg:
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.result != nil {
		return RenderSummary(m.result)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.quitting {
		return dimStyle.Render("Cancelling...") + "\n"
	}
	return fmt.Sprintf("%s Checking links... %d/%d, broken %d\n%s\n%s\n",
		m.spinner.View(), m.completed, m.total, m.broken,
		m.bar.ViewAs(m.fraction()),
		dimStyle.Render("  "+m.current))
}

func (m Model) fraction() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.completed) / float64(m.total)
}

// Quitting reports whether the user interrupted the run.
func (m Model) Quitting() bool {
	return m.quitting
}

// HasBrokenLinks reports whether the run found any broken links.
func (m Model) HasBrokenLinks() bool {
	return m.result != nil && m.result.Stats.BrokenCount > 0
}

// GetResult returns the run result for output formatting.
func (m Model) GetResult() *result.Result {
	return m.result
}

// Err returns the error the run finished with, if any.
func (m Model) Err() error {
	return m.err
}
