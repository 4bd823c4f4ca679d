// Package tui renders bulk runs in the terminal: an interactive Bubble Tea
// progress view and plain-text helpers for non-interactive output.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/bulkops/internal/bulk"
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 80
	barPadding      = 4
)

// ProgressMsg carries a runner progress snapshot into the view.
type ProgressMsg struct {
	Progress bulk.Progress
}

// DoneMsg is sent once the run has returned.
type DoneMsg struct {
	Summary  bulk.Summary
	Failures []bulk.Failure
	Elapsed  time.Duration
}

// RunModel is the Bubble Tea model for an interactive bulk run.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type RunModel struct {
	title   string
	labels  []string
	tracker *bulk.RateTracker

	bar     progress.Model
	spinner spinner.Model

	done     bool
	detached bool
	result   DoneMsg
}

// NewRunModel creates a view for a run over total items. labels name the
// items by input position and may be nil.
func NewRunModel(title string, total int, labels []string) RunModel {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return RunModel{
		title:   title,
		labels:  labels,
		tracker: bulk.NewRateTracker(total),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
		spinner: s,
	}
}

// Init starts the spinner (Bubble Tea interface).
func (m RunModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state (Bubble Tea interface).
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.detached = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-barPadding, 1), maxBarWidth)
		return m, nil

	case ProgressMsg:
		m.tracker.Observe(msg.Progress)
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the model (Bubble Tea interface).
func (m RunModel) View() string {
	if m.done {
		return RenderSummary(m.result.Summary, m.result.Failures, m.labels, m.result.Elapsed) + "\n"
	}

	snap := m.tracker.Snapshot()
	p := snap.Progress

	var b strings.Builder
	fmt.Fprintf(&b, "\n %s %s\n\n", m.spinner.View(), HeaderStyle.Render(m.title))
	fmt.Fprintf(&b, " %s\n\n", m.bar.ViewAs(p.PercentComplete()/100))
	fmt.Fprintf(&b, " %s  %s  %s",
		LabelStyle.Render(fmt.Sprintf("%s/%s", FormatCount(p.Done()), FormatCount(p.Total))),
		SuccessStyle.Render("ok "+FormatCount(p.Completed)),
		failedText(p.Failed))

	if snap.ItemsPerSecond > 0 {
		fmt.Fprintf(&b, "  %s", MutedStyle.Render(fmt.Sprintf("%.1f/s", snap.ItemsPerSecond)))
	}
	if snap.Remaining > 0 {
		fmt.Fprintf(&b, "  %s", MutedStyle.Render("~"+snap.Remaining.Round(time.Second).String()+" left"))
	}
	fmt.Fprintf(&b, "  %s", MutedStyle.Render(snap.ElapsedTime.Round(time.Second).String()+" elapsed"))
	if p.CurrentItemLabel != "" {
		fmt.Fprintf(&b, "\n %s", MutedStyle.Render(p.CurrentItemLabel))
	}
	b.WriteString("\n\n" + MutedStyle.Render(" q: detach view (run continues)") + "\n")
	return b.String()
}

// Done reports whether the run finished while the view was attached.
func (m RunModel) Done() bool {
	return m.done
}

// Detached reports whether the user closed the view before the run finished.
func (m RunModel) Detached() bool {
	return m.detached
}

// Latest returns the last progress snapshot received.
func (m RunModel) Latest() bulk.Progress {
	return m.tracker.Latest()
}

func failedText(n int) string {
	text := "failed " + FormatCount(n)
	if n > 0 {
		return FailureStyle.Render(text)
	}
	return LabelStyle.Render(text)
}
