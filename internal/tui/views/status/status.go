package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/runtrace/runtrace/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Phase     session.Phase
	Line      string
	Feed      session.FeedStatus
	Points    int
	Width     int

	spinner spinner.Model
}

// New creates a status bar model.
func New() Model {
	return Model{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.ColorAccent)),
		),
	}
}

// Tick starts the spinner animation.
func (m Model) Tick() tea.Msg {
	return m.spinner.Tick()
}

// Update advances the spinner.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// SetRun copies the fields the bar shows from a run.
func (m *Model) SetRun(run session.Snapshot) {
	m.Phase = run.Phase
	m.Line = run.Status
	m.Feed = run.Feed
	m.Points = len(run.Points)
}

// Waiting reports whether a run is active but has no accepted point yet.
func (m Model) Waiting() bool {
	return m.Phase == session.Running && m.Points == 0
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = m.spinner.View() + lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(" Connecting...")
	}

	phase := m.Phase.String()
	phaseStr := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.PhaseColor(phase)).
		Render(theme.PhaseGlyph(phase) + " " + strings.ToUpper(phase))

	parts := []string{connStr, phaseStr}

	if m.Feed.Name != "" {
		health := m.Feed.Health
		if health == "" {
			health = "healthy"
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.HealthColor(health)).Render(
			fmt.Sprintf("%s: %s", m.Feed.Name, health),
		))
	}

	line := m.Line
	if m.Waiting() {
		line = m.spinner.View() + " " + line
	}
	if line != "" {
		parts = append(parts, theme.StyleDimmed.Render(line))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}
