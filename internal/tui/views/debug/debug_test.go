package debug

import (
	"strings"
	"testing"
	"time"
)

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(KindWS, "connected")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if e := m.Entries[0]; e.Kind != KindWS || e.Count != 1 {
		t.Errorf("entry = %+v", e)
	}
}

func TestRepeatsCollapse(t *testing.T) {
	clock := time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC)
	m := New()
	m.now = func() time.Time { return clock }

	m.Add(KindError, "GPS error: no signal")
	clock = clock.Add(time.Second)
	m.Add(KindError, "GPS error: no signal")
	m.Add(KindWS, "delta: +1 points")
	m.Add(KindError, "GPS error: no signal")

	if len(m.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(m.Entries))
	}
	first := m.Entries[0]
	if first.Count != 2 || first.Time.Second() != 1 {
		t.Errorf("collapsed entry = %+v, want count 2 stamped at the latest arrival", first)
	}
	if !strings.Contains(m.View(100, 20), "GPS error: no signal (x2)") {
		t.Error("view should show the repeat count")
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Addf(KindWS, "msg %d", i)
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if m.Entries[0].Message != "msg 50" {
		t.Errorf("oldest entry = %q, want msg 50", m.Entries[0].Message)
	}
}

func TestScroll(t *testing.T) {
	tests := []struct {
		name  string
		up    int
		down  int
		wantO int
	}{
		{"up", 5, 0, 5},
		{"up then down", 5, 3, 2},
		{"down past bottom", 2, 10, 0},
		{"up past top", 100, 0, 19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			for i := 0; i < 20; i++ {
				m.Addf(KindWS, "msg %d", i)
			}
			m.ScrollUp(tt.up)
			m.ScrollDown(tt.down)
			if m.Offset != tt.wantO {
				t.Errorf("offset = %d, want %d", m.Offset, tt.wantO)
			}
		})
	}
}

func TestAddResetsScroll(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Addf(KindWS, "msg %d", i)
	}
	m.ScrollUp(5)
	m.Add(KindWS, "new")
	if m.Offset != 0 {
		t.Error("adding entry should reset scroll to 0")
	}
}

func TestErrorsOnly(t *testing.T) {
	m := New()
	m.Add(KindWS, "connected")
	m.Add(KindError, "dial: refused")
	m.Add(KindControl, "start: changed=true")

	m.ToggleErrors()
	v := m.View(100, 20)
	if !strings.Contains(v, "dial: refused") || strings.Contains(v, "connected") {
		t.Errorf("errors-only view:\n%s", v)
	}
	m.ScrollUp(10)
	if m.Offset != 0 {
		t.Errorf("offset = %d, want scrolling capped to the one visible error", m.Offset)
	}

	m.ToggleErrors()
	if !strings.Contains(m.View(100, 20), "connected") {
		t.Error("toggling back should show every event")
	}
}

func TestView(t *testing.T) {
	at := time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		setup func(*Model)
		want  []string
	}{
		{"empty", func(*Model) {}, []string{"EVENT LOG", "No events recorded yet."}},
		{"no errors", func(m *Model) {
			m.Add(KindWS, "connected")
			m.ToggleErrors()
		}, []string{"No errors since the client started."}},
		{"entries", func(m *Model) {
			m.Add(KindWS, "connected")
			m.Addf(KindControl, "pause: changed=%v", true)
			m.Add(KindError, "timeout")
		}, []string{"07:30:00", "connected", "pause: changed=true", "timeout", "ws 1", "ctl 1", "err 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.now = func() time.Time { return at }
			tt.setup(&m)
			v := m.View(100, 20)
			for _, w := range tt.want {
				if !strings.Contains(v, w) {
					t.Errorf("view missing %q:\n%s", w, v)
				}
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{KindWS: "ws", KindControl: "ctl", KindError: "err", KindHealth: "hlth", KindAchievement: "ach", Kind(99): "?"} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d) = %q, want %q", k, got, want)
		}
	}
}
