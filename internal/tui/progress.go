// Package tui shows a live view of a running audit: one line per stage with
// its status, driven by the engine's event bus.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tribunal/internal/event"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// stageLine is one row of the progress view.
type stageLine struct {
	id       string
	status   string // "running", "ok", "degraded", "failed"
	reason   string
	duration time.Duration
}

// Model is the bubbletea model for the progress view. Events arrive as
// tea.Msg values forwarded from the bus by Attach.
type Model struct {
	target   string
	total    int
	stages   map[string]*stageLine
	order    []string
	overall  float64
	finished bool
	events   <-chan event.Event
}

// NewModel creates a progress model reading from events.
func NewModel(events <-chan event.Event) Model {
	return Model{
		stages: make(map[string]*stageLine),
		events: events,
	}
}

// Attach subscribes the returned channel to all bus events. The channel is
// buffered so the engine never blocks on a slow terminal.
func Attach(bus *event.Bus) <-chan event.Event {
	ch := make(chan event.Event, 64)
	bus.SubscribeAll(func(e event.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return nil
		}
		return e
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case event.RunStartedEvent:
		m.target = msg.Target
		m.total = msg.Stages
		return m, m.waitForEvent()

	case event.StageStartedEvent:
		if _, seen := m.stages[msg.StageID]; !seen {
			m.order = append(m.order, msg.StageID)
		}
		m.stages[msg.StageID] = &stageLine{id: msg.StageID, status: "running"}
		return m, m.waitForEvent()

	case event.StageCompletedEvent:
		m.stages[msg.StageID] = &stageLine{
			id:       msg.StageID,
			status:   msg.Status,
			reason:   msg.Reason,
			duration: msg.Duration,
		}
		return m, m.waitForEvent()

	case event.RunCompletedEvent:
		m.finished = true
		m.overall = msg.OverallScore
		return m, tea.Quit
	}

	return m, m.waitForEvent()
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	title := "Tribunal audit"
	if m.target != "" {
		title += ": " + m.target
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	for _, id := range m.order {
		b.WriteString(renderStage(m.stages[id]) + "\n")
	}

	b.WriteString("\n")
	done := m.completedCount()
	if m.finished {
		b.WriteString(okStyle.Render(fmt.Sprintf("Run complete. Overall score %.2f/5", m.overall)) + "\n")
	} else {
		b.WriteString(pendingStyle.Render(fmt.Sprintf("%d/%d stages complete. Press q to quit.", done, m.total)) + "\n")
	}
	return b.String()
}

func (m Model) completedCount() int {
	n := 0
	for _, line := range m.stages {
		if line.status != "running" {
			n++
		}
	}
	return n
}

func renderStage(line *stageLine) string {
	var dot string
	switch line.status {
	case "running":
		dot = runningStyle.Render("●")
	case "ok":
		dot = okStyle.Render("●")
	case "degraded":
		dot = runningStyle.Render("◐")
	default:
		dot = failStyle.Render("●")
	}

	out := fmt.Sprintf("%s %-24s %s", dot, line.id, line.status)
	if line.duration > 0 {
		out += pendingStyle.Render(fmt.Sprintf("  %s", line.duration.Round(time.Millisecond)))
	}
	if line.reason != "" {
		out += pendingStyle.Render("  " + line.reason)
	}
	return out
}

// Run starts the progress program and blocks until the run completes or the
// user quits.
func Run(events <-chan event.Event) error {
	p := tea.NewProgram(NewModel(events))
	_, err := p.Run()
	return err
}
