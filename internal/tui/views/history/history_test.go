package history

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/runtrace/runtrace/internal/tui/client"
)

func loaded() Model {
	m := New(nil)
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	m, _ = m.Update(LoadedMsg{Runs: []client.RunEntry{
		{ID: "b", SavedAt: at, DistanceM: 5000, ElapsedMs: 1_500_000, Pace: "8:03"},
		{ID: "a", SavedAt: at.Add(-24 * time.Hour), DistanceM: 1609.344, ElapsedMs: 600_000, Pace: "10:00"},
	}})
	return m
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestListAndSelect(t *testing.T) {
	m := loaded()

	out := m.View(100, 30)
	for _, want := range []string{"RUN HISTORY", "3.11 mi", "8:03 /mi", "> 2026-10-"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}

	m, _ = m.Update(keyPress('j'))
	m, _ = m.Update(keyPress('j'))
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1 (clamped)", m.selected)
	}
	m, _ = m.Update(keyPress('k'))
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m := loaded()

	m, _ = m.Update(keyPress('x'))
	if m.confirmID != "b" || !strings.Contains(m.View(100, 30), "Press x again") {
		t.Fatalf("first press should ask for confirmation, confirmID=%q", m.confirmID)
	}

	m, _ = m.Update(keyPress('j'))
	if m.confirmID != "" {
		t.Error("any other key cancels the pending delete")
	}

	m, _ = m.Update(DeletedMsg{ID: "a", Err: errors.New("DELETE /api/runs/a: 404 run not found")})
	if !strings.Contains(m.View(100, 30), "404 run not found") {
		t.Error("delete failure should be shown")
	}
}

func TestOpenedRunShowsReport(t *testing.T) {
	m := loaded()
	m, _ = m.Update(RunLoadedMsg{Run: &client.ArchivedRun{Run: session.Snapshot{ID: "b", Phase: session.Stopped, DistanceM: 5000}}})
	if !m.Viewing() {
		t.Fatal("loaded run should be open")
	}
	if !strings.Contains(m.View(100, 40), "esc:close") {
		t.Error("opened run should render as a report")
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.Viewing() {
		t.Error("esc should return to the list")
	}
}

func TestEmptyList(t *testing.T) {
	m := New(nil)
	if !strings.Contains(m.View(80, 24), "Loading runs") {
		t.Error("expected loading state")
	}
	m, _ = m.Update(LoadedMsg{})
	if !strings.Contains(m.View(80, 24), "No archived runs yet") {
		t.Error("expected empty state")
	}
	m, cmd := m.Update(keyPress('x'))
	if cmd != nil || m.confirmID != "" {
		t.Error("delete with no runs should do nothing")
	}
}
