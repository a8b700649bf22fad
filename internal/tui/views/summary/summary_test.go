package summary

import (
	"strings"
	"testing"

	"github.com/runtrace/runtrace/internal/session"
)

func TestGoalBarSettlesOnTarget(t *testing.T) {
	m := New(1000)
	if !m.SetSummary(session.Summary{DistanceM: 500, Miles: 0.31}) {
		t.Fatal("expected animation to be needed")
	}

	frames := 0
	for !m.Step() {
		frames++
		if frames > 10*FPS {
			t.Fatalf("bar did not settle within 10s of frames; pos=%v", m.pos)
		}
	}
	if m.pos != 0.5 {
		t.Errorf("pos = %v, want 0.5", m.pos)
	}
	if m.SetSummary(session.Summary{DistanceM: 500}) {
		t.Error("same distance should not need animation")
	}
}

func TestTargetCapsAtGoal(t *testing.T) {
	tests := []struct {
		goal, dist, want float64
	}{
		{1000, 0, 0},
		{1000, 250, 0.25},
		{1000, 5000, 1},
		{0, 5000, 0},
	}
	for _, tt := range tests {
		m := New(tt.goal)
		m.SetSummary(session.Summary{DistanceM: tt.dist})
		if got := m.Target(); got != tt.want {
			t.Errorf("Target(goal=%v, dist=%v) = %v, want %v", tt.goal, tt.dist, got, tt.want)
		}
	}
}

func TestViewShowsNumbers(t *testing.T) {
	m := New(5000)
	m.Width = 100
	m.SetSummary(session.Summary{Elapsed: "12:34", Miles: 1.5, Pace: "8:23", AvgMPH: 7.2, PointCount: 42})

	v := m.View()
	for _, want := range []string{"12:34", "1.50", "8:23/mi", "7.2 mph", "42", "/3.1 mi"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}

	if strings.Contains(New(0).View(), "░") {
		t.Error("zero goal should hide the bar")
	}
}
