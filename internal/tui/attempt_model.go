// Package tui renders a running attempt in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/neudev/attemptd/internal/attempt"
	"github.com/neudev/attemptd/internal/model"
)

// Session is the part of attempt.Manager the view drives.
type Session interface {
	Snapshot() attempt.View
	FocusItem(ctx context.Context, itemID int64) error
	CheckItem(ctx context.Context) (*attempt.CheckResult, error)
	Finish(ctx context.Context) (*attempt.Outcome, error)
}

// AttemptModel is the Bubble Tea model of the countdown view.
type AttemptModel struct {
	session Session
	events  <-chan attempt.Event

	width  int
	height int
	view   attempt.View

	message string
	isError bool
	busy    bool

	// streamClosed is set once the manager stops publishing events.
	streamClosed bool
	quitting     bool
}

type eventMsg attempt.Event

type eventsClosedMsg struct{}

type refreshMsg struct{}

type focusDoneMsg struct{ err error }

type checkDoneMsg struct {
	result *attempt.CheckResult
	err    error
}

type finishDoneMsg struct {
	outcome *attempt.Outcome
	err     error
}

// NewAttemptModel creates the view of a started session.
func NewAttemptModel(session Session, events <-chan attempt.Event) AttemptModel {
	return AttemptModel{
		session: session,
		events:  events,
		view:    session.Snapshot(),
	}
}

// Init starts listening for events and refreshing the clock.
func (m AttemptModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), refresh())
}

func waitForEvent(events <-chan attempt.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// Update handles messages.
func (m AttemptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.view = m.session.Snapshot()
		m.applyEvent(attempt.Event(msg))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.streamClosed = true
		return m, nil

	case refreshMsg:
		m.view = m.session.Snapshot()
		if m.quitting {
			return m, nil
		}
		return m, refresh()

	case focusDoneMsg:
		m.busy = false
		m.view = m.session.Snapshot()
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil

	case checkDoneMsg:
		m.busy = false
		m.view = m.session.Snapshot()
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setInfo(fmt.Sprintf("Item %d checked: %d/%d points", msg.result.ItemID, msg.result.Score, msg.result.MaxPoints))
		return m, nil

	case finishDoneMsg:
		m.busy = false
		m.view = m.session.Snapshot()
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setInfo(fmt.Sprintf("Submitted: %.0f/%d", msg.outcome.FinalScore, msg.outcome.MaxPoints))
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m AttemptModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "q":
		m.quitting = true
		return m, tea.Quit
	}

	if m.busy || m.view.State != attempt.StateIdle || m.view.TimeExpired {
		return m, nil
	}

	switch msg.String() {
	case "left", "h":
		return m.focusRelative(-1)
	case "right", "l":
		return m.focusRelative(1)
	case "c":
		m.busy = true
		m.setInfo("Checking...")
		session := m.session
		return m, func() tea.Msg {
			res, err := session.CheckItem(context.Background())
			return checkDoneMsg{result: res, err: err}
		}
	case "f":
		m.busy = true
		m.setInfo("Submitting...")
		session := m.session
		return m, func() tea.Msg {
			out, err := session.Finish(context.Background())
			return finishDoneMsg{outcome: out, err: err}
		}
	}
	return m, nil
}

func (m AttemptModel) focusRelative(step int) (tea.Model, tea.Cmd) {
	items := m.items()
	if len(items) == 0 {
		return m, nil
	}

	idx := m.selectedIndex()
	next := (idx + step + len(items)) % len(items)
	if idx < 0 {
		next = 0
	}
	target := items[next].ItemID

	m.busy = true
	session := m.session
	return m, func() tea.Msg {
		return focusDoneMsg{err: session.FocusItem(context.Background(), target)}
	}
}

func (m *AttemptModel) applyEvent(ev attempt.Event) {
	switch ev.Type {
	case attempt.EventExpired:
		m.setError(fmt.Errorf("time is up, submitting"))
	case attempt.EventSubmitted:
		m.setInfo("Attempt submitted")
	case attempt.EventSubmitFailed:
		m.setError(fmt.Errorf("submission failed: %s", ev.Error))
	case attempt.EventPurged:
		m.setInfo("The attempt was reset by the server")
	case attempt.EventReconciled:
		m.setInfo("Synced with the server")
	}
}

func (m *AttemptModel) setInfo(s string) {
	m.message = s
	m.isError = false
}

func (m *AttemptModel) setError(err error) {
	m.message = err.Error()
	m.isError = true
}

func (m AttemptModel) items() []model.Item {
	if m.view.Activity == nil {
		return nil
	}
	return m.view.Activity.Items
}

func (m AttemptModel) selectedIndex() int {
	if m.view.Record == nil || m.view.Record.SelectedItem == nil {
		return -1
	}
	for i, it := range m.items() {
		if it.ItemID == *m.view.Record.SelectedItem {
			return i
		}
	}
	return -1
}

// Quitting reports whether the user asked to leave.
func (m AttemptModel) Quitting() bool { return m.quitting }

// View renders the countdown.
func (m AttemptModel) View() string {
	width := m.width
	if width == 0 {
		width = 60
	}

	var sections []string

	title := "Attempt"
	if m.view.Activity != nil && m.view.Activity.ActivityName != "" {
		title = m.view.Activity.ActivityName
	}
	sections = append(sections, lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorAccentBright)).
		Bold(true).
		Align(lipgloss.Center).
		Width(width).
		Render(title))

	sections = append(sections, m.renderClock(width))
	sections = append(sections, m.renderItems(width))
	sections = append(sections, m.renderScore(width))

	if m.message != "" {
		color := ColorSecondaryText
		if m.isError {
			color = ColorError
		}
		sections = append(sections, lipgloss.NewStyle().
			Foreground(lipgloss.Color(color)).
			Align(lipgloss.Center).
			Width(width).
			Render(m.message))
	}

	sections = append(sections, m.renderHelpBar(width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m AttemptModel) renderClock(width int) string {
	color := ColorPrimaryText
	switch {
	case m.view.TimeExpired || m.view.Remaining < dangerBelow:
		color = ColorError
	case m.view.Remaining < warnBelow:
		color = ColorWarning
	}

	text := m.view.RemainingText
	if m.view.TimeExpired {
		text = "TIME EXPIRED"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Bold(true).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorBorder)).
		Align(lipgloss.Center).
		Width(width - 2).
		Render(text)
}

func (m AttemptModel) renderItems(width int) string {
	items := m.items()
	if len(items) == 0 {
		return ""
	}

	selected := m.selectedIndex()
	rows := make([]string, 0, len(items))
	for i, it := range items {
		marker := "  "
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText))
		if i == selected {
			marker = "▶ "
			style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentMain)).Bold(true)
		}

		score := 0
		if m.view.Record != nil {
			score = attempt.ItemScore(m.view.Record, it)
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-30s %3d/%d  %s",
			marker, it.ItemName, score, it.MaxPoints(), m.itemTime(it.ItemID))))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(rows, "\n"))
}

func (m AttemptModel) itemTime(itemID int64) string {
	if m.view.Record == nil {
		return ""
	}
	t, ok := m.view.Record.ItemTimes[itemID]
	if !ok {
		return ""
	}
	secs := t.Accumulated
	if t.Start != nil {
		secs += (time.Now().UnixMilli() - *t.Start) / 1000
	}
	return (time.Duration(secs) * time.Second).String()
}

func (m AttemptModel) renderScore(width int) string {
	if m.view.Activity == nil || m.view.Record == nil {
		return ""
	}

	passed, total := attempt.PassCount(m.view.Record, m.view.Activity)
	line := fmt.Sprintf("Score %d/%d · %d/%d test cases · %s",
		m.view.Record.DraftScore, m.view.Activity.MaxPoints, passed, total, m.view.State)

	color := ColorSecondaryText
	if m.view.State == attempt.StateSubmitted {
		color = ColorSuccess
		if o := m.view.Outcome; o != nil {
			line = fmt.Sprintf("Final score %.0f/%d · %d/%d test cases", o.FinalScore, o.MaxPoints, o.PassedTestCases, o.TotalTestCases)
		}
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Align(lipgloss.Center).
		Width(width).
		Render(line)
}

func (m AttemptModel) renderHelpBar(width int) string {
	help := "←/→ switch item · c check · f finish · q quit and submit"
	if m.view.State == attempt.StateSubmitted {
		help = "q quit"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorHelpText)).
		Width(width).
		Render(help)
}

// RunAttemptTUI blocks until the user quits the view.
func RunAttemptTUI(session Session, events <-chan attempt.Event) error {
	p := tea.NewProgram(NewAttemptModel(session, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
