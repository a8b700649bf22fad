// Package trace draws the live route in braille dots.
package trace

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/render"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/runtrace/runtrace/internal/tui/theme"
)

// Model holds the route view state.
type Model struct {
	Width  int
	Height int

	points []geo.Fix
	raw    *geo.Fix
	active bool
}

// New creates a route view.
func New() Model {
	return Model{}
}

// SetRun copies the track and the last raw fix from a run. The raw fix is
// only drawn while the run is active.
func (m *Model) SetRun(run session.Snapshot) {
	m.points = run.Points
	m.raw = run.LastFix
	m.active = run.Phase.Active()
}

// Draw projects the route onto a canvas of cols x rows cells.
func (m Model) Draw(cols, rows int) *Canvas {
	c := NewCanvas(cols, rows)
	w, h := c.Size()

	all := m.points
	showRaw := m.active && m.raw != nil
	if showRaw {
		all = append(append([]geo.Fix(nil), m.points...), *m.raw)
	}
	if len(all) == 0 {
		return c
	}

	px := render.Project(all, w-1, h-1, 1)
	dot := func(p render.Point) (int, int) {
		return int(math.Round(p.X)), int(math.Round(p.Y))
	}

	route := px[:len(m.points)]
	for i := 1; i < len(route); i++ {
		x0, y0 := dot(route[i-1])
		x1, y1 := dot(route[i])
		c.Line(x0, y0, x1, y1, LayerRoute)
	}
	if len(route) > 0 {
		x, y := dot(route[0])
		cross(c, x, y, LayerStart)
		x, y = dot(route[len(route)-1])
		block(c, x, y, LayerCurrent)
	}
	if showRaw {
		x, y := dot(px[len(px)-1])
		cross(c, x, y, LayerRawFix)
	}
	return c
}

func cross(c *Canvas, x, y int, l Layer) {
	c.Set(x, y, l)
	c.Set(x-1, y, l)
	c.Set(x+1, y, l)
	c.Set(x, y-1, l)
	c.Set(x, y+1, l)
}

func block(c *Canvas, x, y int, l Layer) {
	c.Set(x, y, l)
	c.Set(x+1, y, l)
	c.Set(x, y+1, l)
	c.Set(x+1, y+1, l)
}

var layerStyles = map[Layer]lipgloss.Style{
	LayerRoute:   lipgloss.NewStyle().Foreground(theme.ColorRoute),
	LayerStart:   lipgloss.NewStyle().Foreground(theme.ColorStart),
	LayerRawFix:  lipgloss.NewStyle().Foreground(theme.ColorRawFix),
	LayerCurrent: lipgloss.NewStyle().Foreground(theme.ColorCurrent),
}

// View renders the route inside a bordered panel.
func (m Model) View() string {
	cols := max(m.Width-4, 10)
	rows := max(m.Height-3, 3)

	var body string
	if len(m.points) == 0 && (m.raw == nil || !m.active) {
		body = theme.StyleDimmed.Render("No route yet")
	} else {
		body = colorize(m.Draw(cols, rows))
	}

	title := theme.StyleHeader.Render("ROUTE")
	legend := theme.StyleDimmed.Render("  + start  ") +
		layerStyles[LayerCurrent].Render("■") + theme.StyleDimmed.Render(" now  ") +
		layerStyles[LayerRawFix].Render("+") + theme.StyleDimmed.Render(" raw fix")

	return theme.StyleBorder.
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, title+legend, body))
}

// colorize renders the canvas, styling runs of cells that share a layer.
func colorize(c *Canvas) string {
	lines := make([]string, c.rows)
	for row := 0; row < c.rows; row++ {
		var b strings.Builder
		var run strings.Builder
		cur := LayerNone
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if style, ok := layerStyles[cur]; ok {
				b.WriteString(style.Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			run.Reset()
		}
		for col := 0; col < c.cols; col++ {
			r, l := c.Cell(col, row)
			if l != cur {
				flush()
				cur = l
			}
			run.WriteRune(r)
		}
		flush()
		lines[row] = b.String()
	}
	return strings.Join(lines, "\n")
}
