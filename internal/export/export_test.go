package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/gpx"
	"github.com/runtrace/runtrace/internal/session"
)

var exportTime = time.Date(2026, 4, 12, 6, 30, 0, 0, time.UTC)

func sampleRun(t *testing.T, id string, started time.Time) session.Snapshot {
	t.Helper()
	alt := 120.5
	return session.Snapshot{
		ID:        id,
		Phase:     session.Stopped,
		StartedAt: &started,
		ElapsedMs: 600_000,
		DistanceM: 1609.344,
		Points: []geo.Fix{
			{Lat: 34.0, Lon: -117.0, Timestamp: started.UnixMilli(), Accuracy: 10, Altitude: &alt},
			{Lat: 34.001, Lon: -117.0, Timestamp: started.Add(time.Second).UnixMilli(), Accuracy: geo.UnknownAccuracy()},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	snap := sampleRun(t, uuid.NewString(), exportTime.Add(-10*time.Minute))

	var buf bytes.Buffer
	if err := WriteJSON(&buf, snap, exportTime); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["app"] != AppName {
		t.Errorf("app = %v, want %s", got["app"], AppName)
	}
	if got["exportedAt"] != "2026-04-12T06:30:00Z" {
		t.Errorf("exportedAt = %v", got["exportedAt"])
	}
	if got["elapsedMs"] != float64(600_000) {
		t.Errorf("elapsedMs = %v", got["elapsedMs"])
	}
	points, ok := got["points"].([]any)
	if !ok || len(points) != 2 {
		t.Fatalf("points = %v", got["points"])
	}
	second := points[1].(map[string]any)
	if second["accuracy"] != nil {
		t.Errorf("unknown accuracy should export as null, got %v", second["accuracy"])
	}
}

func TestWriteJSONEmptyRun(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, session.Snapshot{}, exportTime); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"points": []`) {
		t.Errorf("empty run should export an empty points array:\n%s", buf.String())
	}
}

func TestWriteGPX(t *testing.T) {
	snap := sampleRun(t, uuid.NewString(), exportTime.Add(-10*time.Minute))

	var buf bytes.Buffer
	if err := WriteGPX(&buf, snap, exportTime); err != nil {
		t.Fatalf("WriteGPX: %v", err)
	}

	doc, err := gpx.ParseReader(&buf)
	if err != nil {
		t.Fatalf("parse exported GPX: %v", err)
	}
	if doc.Creator != AppName {
		t.Errorf("creator = %q", doc.Creator)
	}
	points := doc.FlattenPoints()
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}

	first := points[0]
	if first.HDOP == nil || *first.HDOP != 2 {
		t.Errorf("first hdop = %v, want 2", first.HDOP)
	}
	if first.Elevation == nil || *first.Elevation != 120.5 {
		t.Errorf("first elevation = %v, want 120.5", first.Elevation)
	}
	if first.Time == nil || !first.Time.Equal(snap.Points[0].Time()) {
		t.Errorf("first time = %v, want %v", first.Time, snap.Points[0].Time())
	}
	if points[1].HDOP != nil {
		t.Errorf("unknown accuracy should omit hdop, got %v", *points[1].HDOP)
	}
}

func TestFilename(t *testing.T) {
	started := time.Date(2026, 4, 12, 6, 0, 0, 0, time.UTC)
	if got := Filename(session.Snapshot{StartedAt: &started}, "gpx"); got != "runtrace-2026-04-12-0600.gpx" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename(session.Snapshot{}, "json"); got != "runtrace.json" {
		t.Errorf("Filename without start = %q", got)
	}
}

func TestArchiveSaveLoad(t *testing.T) {
	a := NewArchive(t.TempDir())
	id := uuid.NewString()
	snap := sampleRun(t, id, exportTime)

	if err := a.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := a.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Version != archiveVersion {
		t.Errorf("version = %d", rec.Version)
	}
	if rec.Run.ID != id || len(rec.Run.Points) != 2 {
		t.Errorf("loaded run = %+v", rec.Run)
	}
	if rec.Summary.Pace != "10:00" {
		t.Errorf("summary pace = %q, want 10:00", rec.Summary.Pace)
	}

	// No temp files are left behind.
	matches, _ := filepath.Glob(filepath.Join(a.Dir(), ".run-*.tmp"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestArchiveRejectsBadIDs(t *testing.T) {
	a := NewArchive(t.TempDir())

	for _, id := range []string{"", "../escape", "not-a-uuid"} {
		if err := a.Save(session.Snapshot{ID: id}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Save(%q) error = %v, want ErrNotFound", id, err)
		}
		if _, err := a.Load(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestArchiveLoadMissing(t *testing.T) {
	a := NewArchive(t.TempDir())
	if _, err := a.Load(uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if err := a.Delete(uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestArchiveListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	a := NewArchive(dir)

	older, newer := uuid.NewString(), uuid.NewString()
	if err := a.Save(sampleRun(t, older, exportTime.Add(-24*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := a.Save(sampleRun(t, newer, exportTime)); err != nil {
		t.Fatal(err)
	}
	// Junk in the directory is ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, uuid.NewString()+".json"), []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	entries, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != newer || entries[1].ID != older {
		t.Errorf("order = %s, %s", entries[0].ID, entries[1].ID)
	}
	if entries[0].PointCount != 2 {
		t.Errorf("point count = %d", entries[0].PointCount)
	}

	if err := a.Delete(older); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	entries, _ = a.List()
	if len(entries) != 1 {
		t.Errorf("after delete got %d entries", len(entries))
	}
}

func TestArchiveListMissingDir(t *testing.T) {
	a := NewArchive(filepath.Join(t.TempDir(), "absent"))
	entries, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries", len(entries))
	}
}

func TestArchiveAppliesPrivacy(t *testing.T) {
	a := NewArchive(t.TempDir())
	a.SetPrivacy(session.PrivacyFilter{
		Zones: []session.Zone{{Lat: 34.0, Lon: -117.0, RadiusM: 50}},
	})
	id := uuid.NewString()
	if err := a.Save(sampleRun(t, id, exportTime)); err != nil {
		t.Fatal(err)
	}

	rec, err := a.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Run.Points) != 1 {
		t.Fatalf("got %d points, want the home point dropped", len(rec.Run.Points))
	}
	if rec.Run.DistanceM != 1609.344 {
		t.Errorf("distance = %v, privacy must not change totals", rec.Run.DistanceM)
	}
}

func TestDefaultArchiveDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg")
	if got := DefaultArchiveDir(); got != filepath.Join("/tmp/xdg", "runtrace", "runs") {
		t.Errorf("DefaultArchiveDir = %q", got)
	}
}
