package trace

import (
	"strings"
	"testing"

	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/session"
)

func TestCanvasSetMapsBrailleDots(t *testing.T) {
	tests := []struct {
		x, y int
		want rune
	}{
		{0, 0, '⠁'},
		{1, 0, '⠈'},
		{0, 3, '⡀'},
		{1, 3, '⢀'},
	}
	for _, tt := range tests {
		c := NewCanvas(1, 1)
		c.Set(tt.x, tt.y, LayerRoute)
		if r, _ := c.Cell(0, 0); r != tt.want {
			t.Errorf("Set(%d,%d) = %q, want %q", tt.x, tt.y, r, tt.want)
		}
	}

	c := NewCanvas(1, 1)
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			c.Set(x, y, LayerRoute)
		}
	}
	if r, _ := c.Cell(0, 0); r != '⣿' {
		t.Errorf("full cell = %q", r)
	}

	c.Set(-1, 0, LayerRoute)
	c.Set(2, 0, LayerRoute)
	c.Set(0, 4, LayerRoute)
}

func TestCanvasLayerPriority(t *testing.T) {
	c := NewCanvas(1, 1)
	c.Set(0, 0, LayerCurrent)
	c.Set(1, 1, LayerRoute)
	if _, l := c.Cell(0, 0); l != LayerCurrent {
		t.Errorf("layer = %v, want current to win", l)
	}
}

func TestCanvasLine(t *testing.T) {
	c := NewCanvas(4, 1)
	c.Line(0, 0, 7, 0, LayerRoute)
	if got := c.String(); got != "⠉⠉⠉⠉" {
		t.Errorf("horizontal line = %q", got)
	}

	c = NewCanvas(1, 2)
	c.Line(0, 7, 0, 0, LayerRoute)
	if got := c.String(); got != "⡇\n⡇" {
		t.Errorf("vertical line = %q", got)
	}
}

func TestDrawMarksRoute(t *testing.T) {
	origin := geo.LatLon{Lat: 34, Lon: -117}
	var pts []geo.Fix
	for i := 0; i <= 10; i++ {
		p := geo.Offset(origin, 0, float64(i)*20)
		pts = append(pts, geo.Fix{Lat: p.Lat, Lon: p.Lon, Accuracy: 5})
	}

	m := New()
	m.SetRun(session.Snapshot{Phase: session.Running, Points: pts})
	c := m.Draw(20, 5)

	var route, start, current int
	for row := 0; row < 5; row++ {
		for col := 0; col < 20; col++ {
			switch _, l := c.Cell(col, row); l {
			case LayerRoute:
				route++
			case LayerStart:
				start++
			case LayerCurrent:
				current++
			}
		}
	}
	if route == 0 || start == 0 || current == 0 {
		t.Errorf("cells: route=%d start=%d current=%d", route, start, current)
	}
}

func TestRawFixOnlyWhileActive(t *testing.T) {
	raw := geo.Fix{Lat: 34.001, Lon: -117, Accuracy: 80}
	pts := []geo.Fix{{Lat: 34, Lon: -117, Accuracy: 5}}

	hasRaw := func(phase session.Phase) bool {
		m := New()
		m.SetRun(session.Snapshot{Phase: phase, Points: pts, LastFix: &raw})
		c := m.Draw(10, 5)
		for row := 0; row < 5; row++ {
			for col := 0; col < 10; col++ {
				if _, l := c.Cell(col, row); l == LayerRawFix {
					return true
				}
			}
		}
		return false
	}

	if !hasRaw(session.Running) {
		t.Error("raw fix should show while running")
	}
	if hasRaw(session.Stopped) {
		t.Error("raw fix should be hidden once stopped")
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	m.Width, m.Height = 40, 10
	if !strings.Contains(m.View(), "No route yet") {
		t.Error("empty view should say so")
	}
}
