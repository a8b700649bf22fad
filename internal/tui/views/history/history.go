// Package history provides the run history overlay: a list of archived
// runs that can be opened as a report or deleted.
package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/tui/client"
	"github.com/runtrace/runtrace/internal/tui/theme"
	"github.com/runtrace/runtrace/internal/tui/views/report"
)

// LoadedMsg is returned after fetching the run list.
type LoadedMsg struct {
	Runs []client.RunEntry
	Err  error
}

// RunLoadedMsg is returned after fetching one archived run.
type RunLoadedMsg struct {
	Run *client.ArchivedRun
	Err error
}

// DeletedMsg is returned after a delete call.
type DeletedMsg struct {
	ID  string
	Err error
}

// KeyMap holds the history-specific key bindings.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Delete key.Binding
	Escape key.Binding
}

// DefaultKeyMap returns the default history key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev run"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next run"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "delete"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}

// Model is the history overlay model.
type Model struct {
	http *client.HTTPClient
	keys KeyMap

	runs     []client.RunEntry
	selected int

	// opened is the archived run shown as a report, if any.
	opened *client.ArchivedRun

	// confirmID is set after the first delete press; a second press deletes.
	confirmID string

	loading   bool
	statusMsg string
}

// New creates a history model in the loading state.
func New(http *client.HTTPClient) Model {
	return Model{
		http:    http,
		keys:    DefaultKeyMap(),
		loading: true,
	}
}

// Init resets the view and fetches the run list.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	m.opened = nil
	m.confirmID = ""
	m.statusMsg = ""
	return fetchRuns(m.http)
}

// Viewing reports whether an archived run is open.
func (m Model) Viewing() bool {
	return m.opened != nil
}

// Update handles messages for the history overlay.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.statusMsg = "Error: " + msg.Err.Error()
			return m, nil
		}
		m.runs = msg.Runs
		m.selected = min(m.selected, max(len(m.runs)-1, 0))
		return m, nil

	case RunLoadedMsg:
		if msg.Err != nil {
			m.statusMsg = "Error: " + msg.Err.Error()
			return m, nil
		}
		m.opened = msg.Run
		return m, nil

	case DeletedMsg:
		if msg.Err != nil {
			m.statusMsg = "Error: " + msg.Err.Error()
			return m, nil
		}
		m.statusMsg = "Deleted"
		return m, fetchRuns(m.http)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	m.statusMsg = ""
	pending := m.confirmID
	m.confirmID = ""

	if m.opened != nil {
		if key.Matches(msg, m.keys.Escape) {
			m.opened = nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.runs)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Open):
		if e, ok := m.current(); ok {
			return m, fetchRun(m.http, e.ID)
		}

	case key.Matches(msg, m.keys.Delete):
		e, ok := m.current()
		if !ok {
			break
		}
		if pending != e.ID {
			m.confirmID = e.ID
			m.statusMsg = "Press x again to delete this run"
			break
		}
		return m, deleteRun(m.http, e.ID)
	}

	return m, nil
}

func (m Model) current() (client.RunEntry, bool) {
	if m.selected < 0 || m.selected >= len(m.runs) {
		return client.RunEntry{}, false
	}
	return m.runs[m.selected], true
}

// View renders the overlay at the given terminal size.
func (m Model) View(width, height int) string {
	if m.opened != nil {
		return report.Model{Run: m.opened.Run}.View(width, height)
	}
	if m.loading {
		return theme.StyleBorder.Padding(1, 2).Render("Loading runs...")
	}

	title := theme.StyleHeader.Render("RUN HISTORY")
	rows := []string{title, ""}

	if len(m.runs) == 0 {
		rows = append(rows, theme.StyleDimmed.Render("No archived runs yet."))
	}

	visible := max(height-10, 3)
	start := 0
	if m.selected >= visible {
		start = m.selected - visible + 1
	}
	for i := start; i < len(m.runs) && i < start+visible; i++ {
		rows = append(rows, renderRow(m.runs[i], i == m.selected))
	}

	rows = append(rows, "", theme.StyleDimmed.Render("j/k: select  enter: open  x: delete  esc: close"))
	if m.statusMsg != "" {
		rows = append(rows, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(m.statusMsg))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Padding(0, 1).
		Width(max(width-4, 40)).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderRow(e client.RunEntry, selected bool) string {
	when := e.SavedAt
	if e.StartedAt != nil {
		when = *e.StartedAt
	}
	pace := e.Pace
	if pace == "" {
		pace = "--:--"
	}
	line := fmt.Sprintf("%s  %6.2f mi  %8s  %s /mi",
		when.Local().Format("2006-01-02 15:04"),
		geo.MetersToMiles(e.DistanceM),
		geo.FormatElapsed(time.Duration(e.ElapsedMs)*time.Millisecond),
		pace,
	)

	prefix := "  "
	style := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	if selected {
		prefix = "> "
		style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBright)
	}
	return style.Render(prefix + line)
}

func fetchRuns(h *client.HTTPClient) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		runs, err := h.Runs()
		return LoadedMsg{Runs: runs, Err: err}
	}
}

func fetchRun(h *client.HTTPClient, id string) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		run, err := h.ArchivedRun(id)
		return RunLoadedMsg{Run: run, Err: err}
	}
}

func deleteRun(h *client.HTTPClient, id string) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: h.DeleteRun(id)}
	}
}
