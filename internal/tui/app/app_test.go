package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/runtrace/runtrace/internal/tui/client"
	"github.com/runtrace/runtrace/internal/tui/views/debug"
	"github.com/runtrace/runtrace/internal/tui/views/history"
)

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func runWith(n int) session.Snapshot {
	pts := make([]geo.Fix, n)
	for i := range pts {
		p := geo.Offset(geo.LatLon{Lat: 34, Lon: -117}, float64(i)*50, 0)
		pts[i] = geo.Fix{Lat: p.Lat, Lon: p.Lon, Accuracy: 5}
	}
	return session.Snapshot{ID: "run-1", Phase: session.Running, Points: pts, DistanceM: float64(max(n-1, 0)) * 50}
}

func TestDisconnectOverlay(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m.connected = false

	v := m.View()
	if !strings.Contains(v, "DISCONNECTED") {
		t.Error("disconnect overlay should contain 'DISCONNECTED'")
	}
	if !strings.Contains(v, "Reconnecting") {
		t.Error("disconnect overlay should contain 'Reconnecting'")
	}
}

func TestSnapshotThenDelta(t *testing.T) {
	m := sized(New(nil, nil, Options{GoalM: 5000}))
	m = update(t, m, client.WSConnectedMsg{})
	m = update(t, m, client.WSSnapshotMsg{Payload: client.SnapshotPayload{Run: runWith(2)}})

	extra := runWith(3).Points[2]
	m = update(t, m, client.WSDeltaMsg{Payload: session.Delta{
		ID: "run-1", Phase: session.Running, FromIndex: 2, Points: []geo.Fix{extra}, DistanceM: 100,
	}})

	if len(m.run.Points) != 3 || m.run.DistanceM != 100 {
		t.Errorf("run = %d points, %v m", len(m.run.Points), m.run.DistanceM)
	}
	if got := m.summary.Summary().PointCount; got != 3 {
		t.Errorf("summary point count = %d", got)
	}
	if !m.animating {
		t.Error("goal bar should animate toward the new distance")
	}
	if v := m.View(); !strings.Contains(v, "RUNNING") || !strings.Contains(v, "ROUTE") {
		t.Errorf("view missing phase or route:\n%s", v)
	}
}

func TestDeltaGapKeepsRunUntilResync(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})
	m = update(t, m, client.WSSnapshotMsg{Payload: client.SnapshotPayload{Run: runWith(2)}})

	m = update(t, m, client.WSDeltaMsg{Payload: session.Delta{ID: "run-1", FromIndex: 5, Points: runWith(1).Points}})
	if len(m.run.Points) != 2 {
		t.Errorf("a delta that skips points must not be applied; have %d points", len(m.run.Points))
	}

	m = update(t, m, client.WSDeltaMsg{Payload: session.Delta{ID: "run-1", FromIndex: 2}, Gap: true})
	if m.debugLog.Entries[len(m.debugLog.Entries)-1].Message != "delta from 2 does not apply, resyncing" {
		t.Errorf("last log entry = %+v", m.debugLog.Entries[len(m.debugLog.Entries)-1])
	}

	fresh := runWith(6)
	m = update(t, m, runFetchedMsg{Run: &fresh})
	if len(m.run.Points) != 6 {
		t.Errorf("resync should replace the run; have %d points", len(m.run.Points))
	}
}

func TestPauseKeyFollowsPhase(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"changed":true,"run":{"phase":"paused","points":[]}}`))
	}))
	defer srv.Close()

	press := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}}
	tests := []struct {
		phase session.Phase
		want  string
	}{
		{session.Running, "/api/run/pause"},
		{session.Paused, "/api/run/resume"},
		{session.Idle, ""},
		{session.Stopped, ""},
	}
	for _, tt := range tests {
		got = nil
		m := New(nil, client.NewHTTPClient(srv.URL, ""), Options{})
		m.run.Phase = tt.phase
		_, cmd := m.handleKey(press)
		if tt.want == "" {
			if cmd != nil {
				t.Errorf("%v: pause key should do nothing", tt.phase)
			}
			continue
		}
		if cmd == nil {
			t.Fatalf("%v: expected a control command", tt.phase)
		}
		res, ok := cmd().(controlResultMsg)
		if !ok || res.Err != nil {
			t.Fatalf("%v: result = %+v", tt.phase, res)
		}
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("%v: requests = %v, want %s", tt.phase, got, tt.want)
		}
	}
}

func TestStopOpensReport(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})

	stopped := runWith(4)
	stopped.Phase = session.Stopped
	m = update(t, m, controlResultMsg{Action: "stop", Resp: &client.ControlResponse{Changed: true, Run: stopped}})

	if m.overlay != OverlayReport {
		t.Fatalf("overlay = %v, want report", m.overlay)
	}
	if !strings.Contains(m.View(), "esc:close") {
		t.Error("report overlay not rendered")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Error("esc should close the overlay")
	}
}

func TestControlErrorShowsNotice(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})
	m = update(t, m, controlResultMsg{Action: "start", Err: errors.New("POST /api/run/start: 503 GPS unavailable")})

	if !strings.Contains(m.View(), "503 GPS unavailable") {
		t.Error("control failure should be shown in the footer")
	}
	if m.run.Phase != session.Idle {
		t.Errorf("phase = %v", m.run.Phase)
	}
}

func TestAchievementNotice(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})
	m = update(t, m, client.WSAchievementMsg{Payload: client.AchievementUnlockedPayload{Name: "5K", Tier: "bronze"}})

	if len(m.achievements) != 1 {
		t.Fatalf("achievements = %d", len(m.achievements))
	}
	if !strings.Contains(m.View(), "Achievement unlocked: 5K") {
		t.Error("achievement notice missing")
	}
}

func TestDebugOverlayScroll(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})
	for i := 0; i < 10; i++ {
		m.debugLog.Addf(debug.KindWS, "msg %d", i)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if m.overlay != OverlayDebug {
		t.Fatal("d should open the debug log")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	if m.debugLog.Offset != 1 {
		t.Errorf("offset = %d after scrolling up", m.debugLog.Offset)
	}
	if !strings.Contains(m.View(), "EVENT LOG") {
		t.Error("debug overlay not rendered")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	if !m.debugLog.ErrorsOnly || !strings.Contains(m.View(), "No errors since the client started.") {
		t.Error("f should filter the log to errors")
	}
}

func TestFeedHealthChangesAreLogged(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})

	run := runWith(2)
	for _, h := range []string{"healthy", "healthy", "degraded"} {
		run.Feed = session.FeedStatus{Name: "simulator", Health: h}
		m = update(t, m, client.WSSnapshotMsg{Payload: client.SnapshotPayload{Run: run}})
	}

	var got []string
	for _, e := range m.debugLog.Entries {
		if e.Kind == debug.KindHealth {
			got = append(got, e.Message)
		}
	}
	if strings.Join(got, "|") != "simulator feed healthy|simulator feed degraded" {
		t.Errorf("health entries = %q", got)
	}
}

func TestAchievementsOverlayMarksUnlock(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})
	m = update(t, m, recordsMsg{Records: &client.Records{Achievements: []client.Achievement{
		{ID: "five_k", Name: "5K", Tier: "bronze", Category: "Distance"},
	}}})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	if m.overlay != OverlayAchievements {
		t.Fatal("a should open the achievements panel")
	}
	m = update(t, m, client.WSAchievementMsg{Payload: client.AchievementUnlockedPayload{ID: "five_k", Name: "5K"}})
	if m.records.UnlockedCount() != 1 {
		t.Error("unlock notification should mark the achievement earned")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if !strings.Contains(m.View(), "1 / 1 unlocked") {
		t.Errorf("Distance tab should show the unlock:\n%s", m.View())
	}
}

func TestHistoryOverlay(t *testing.T) {
	m := sized(New(nil, nil, Options{}))
	m = update(t, m, client.WSConnectedMsg{})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	if m.overlay != OverlayHistory {
		t.Fatal("h should open the history")
	}
	m = update(t, m, history.LoadedMsg{Runs: []client.RunEntry{{ID: "r1", DistanceM: 1609.344, Pace: "9:00"}}})
	m = update(t, m, history.RunLoadedMsg{Run: &client.ArchivedRun{Run: session.Snapshot{ID: "r1", Phase: session.Stopped}}})

	// The first esc closes the opened run, the second the overlay.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayHistory || !strings.Contains(m.View(), "RUN HISTORY") {
		t.Fatal("esc should return to the run list")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Error("second esc should close the overlay")
	}
}
