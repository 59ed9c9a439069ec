package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tribunal/internal/event"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelTracksStageLifecycle(t *testing.T) {
	m := NewModel(nil)

	m = update(t, m, event.NewRunStartedEvent("run-1", "github.com/acme/widget", 3))
	m = update(t, m, event.NewStageStartedEvent("run-1", "git"))
	m = update(t, m, event.NewStageStartedEvent("run-1", "docs"))
	m = update(t, m, event.NewStageCompletedEvent("run-1", "git", "ok", "", 40*time.Millisecond))

	view := m.View()
	if !strings.Contains(view, "github.com/acme/widget") {
		t.Errorf("View() missing target:\n%s", view)
	}
	if !strings.Contains(view, "git") || !strings.Contains(view, "docs") {
		t.Errorf("View() missing stage lines:\n%s", view)
	}
	if !strings.Contains(view, "1/3 stages complete") {
		t.Errorf("View() missing progress count:\n%s", view)
	}
}

func TestModelDegradedStage(t *testing.T) {
	m := NewModel(nil)
	m = update(t, m, event.NewStageStartedEvent("run-1", "vision"))
	m = update(t, m, event.NewStageCompletedEvent("run-1", "vision", "degraded", "2 synthetic fallback opinions", 0))

	view := m.View()
	if !strings.Contains(view, "degraded") || !strings.Contains(view, "synthetic fallback") {
		t.Errorf("View() missing degraded detail:\n%s", view)
	}
}

func TestModelQuitsOnRunCompleted(t *testing.T) {
	m := NewModel(nil)
	next, cmd := m.Update(event.NewRunCompletedEvent("run-1", 4.25, false, nil))
	m = next.(Model)

	if cmd == nil {
		t.Fatal("Update(RunCompleted) cmd = nil, want tea.Quit")
	}
	if !strings.Contains(m.View(), "4.25/5") {
		t.Errorf("View() missing overall score:\n%s", m.View())
	}
}

func TestModelQuitsOnKey(t *testing.T) {
	m := NewModel(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("Update(q) cmd = nil, want tea.Quit")
	}
}

func TestAttachDropsWhenFull(t *testing.T) {
	bus := event.NewBus()
	ch := Attach(bus)

	// Overrun the buffer; Publish must never block.
	for i := 0; i < 200; i++ {
		bus.Publish(event.NewStageStartedEvent("run-1", "git"))
	}

	select {
	case e := <-ch:
		if e.EventType() != event.TypeStageStarted {
			t.Errorf("EventType() = %q, want %q", e.EventType(), event.TypeStageStarted)
		}
	default:
		t.Error("channel empty, want buffered events")
	}
}
