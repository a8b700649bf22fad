// Package summary renders the run numbers and the goal distance bar.
package summary

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/runtrace/runtrace/internal/tui/theme"
)

// FPS is the goal bar animation frame rate.
const FPS = 30

const settleEpsilon = 0.001

// Model holds the summary panel state. The goal bar eases toward the
// covered fraction of GoalM on a critically damped spring.
type Model struct {
	Width int
	GoalM float64

	sum    session.Summary
	spring harmonica.Spring
	pos    float64
	vel    float64
}

// New creates a summary panel with a goal in meters. goalM <= 0 hides the
// bar.
func New(goalM float64) Model {
	return Model{
		GoalM:  goalM,
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 6.0, 1.0),
	}
}

// SetSummary updates the numbers. It reports whether the goal bar needs
// animation frames to catch up.
func (m *Model) SetSummary(sum session.Summary) bool {
	m.sum = sum
	return !m.Settled()
}

// Summary returns the numbers last set.
func (m Model) Summary() session.Summary {
	return m.sum
}

// Target is the goal fraction the bar is heading to, capped at 1.
func (m Model) Target() float64 {
	if m.GoalM <= 0 {
		return 0
	}
	return math.Min(m.sum.DistanceM/m.GoalM, 1)
}

// Step advances the animation by one frame and reports whether it has
// settled.
func (m *Model) Step() bool {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.Target())
	if m.Settled() {
		m.pos, m.vel = m.Target(), 0
		return true
	}
	return false
}

// Settled reports whether the bar rests at its target.
func (m Model) Settled() bool {
	return math.Abs(m.pos-m.Target()) < settleEpsilon && math.Abs(m.vel) < settleEpsilon
}

// View renders the stats row and the goal bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	statStyle := lipgloss.NewStyle().Padding(0, 1)
	label := theme.StyleDimmed
	stat := func(name, value string) string {
		return statStyle.Render(label.Render(name+" ") + theme.StyleValue.Render(value))
	}

	stats := []string{
		stat("Time", m.sum.Elapsed),
		stat("Miles", fmt.Sprintf("%.2f", m.sum.Miles)),
		stat("Feet", fmt.Sprintf("%.0f", m.sum.Feet)),
		stat("Pace", m.sum.Pace+"/mi"),
		stat("Avg", fmt.Sprintf("%.1f mph", m.sum.AvgMPH)),
		stat("Points", fmt.Sprintf("%d", m.sum.PointCount)),
	}
	content := strings.Join(stats, lipgloss.NewStyle().Foreground(theme.ColorBorder).Render("|"))

	if m.GoalM > 0 {
		content = lipgloss.JoinVertical(lipgloss.Left, content, m.renderGoalBar(width-4))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

// renderGoalBar draws the animated progress toward the goal distance.
func (m Model) renderGoalBar(barWidth int) string {
	goalLabel := fmt.Sprintf(" %.1f/%.1f mi", m.sum.Miles, geo.MetersToMiles(m.GoalM))
	fillWidth := barWidth - len(goalLabel) - 1
	if fillWidth < 10 {
		fillWidth = 10
	}

	frac := math.Max(0, math.Min(m.pos, 1))
	filled := max(0, min(int(math.Round(frac*float64(fillWidth))), fillWidth))
	empty := fillWidth - filled

	color := theme.GoalBarColor(m.Target())
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	bar += lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", empty))

	return bar + lipgloss.NewStyle().Foreground(color).Render(goalLabel)
}
