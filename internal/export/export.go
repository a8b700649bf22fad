// Package export turns a run into shareable files and keeps the archive of
// finished runs.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/gpx"
	"github.com/runtrace/runtrace/internal/session"
)

// AppName is stamped into exported files.
const AppName = "runtrace"

// Track is the JSON track export.
type Track struct {
	App        string    `json:"app"`
	ExportedAt time.Time `json:"exportedAt"`
	ElapsedMs  int64     `json:"elapsedMs"`
	DistanceM  float64   `json:"distanceM"`
	Points     []geo.Fix `json:"points"`
}

// NewTrack builds the JSON export of a run.
func NewTrack(snap session.Snapshot, now time.Time) Track {
	points := snap.Points
	if points == nil {
		points = []geo.Fix{}
	}
	return Track{
		App:        AppName,
		ExportedAt: now.UTC(),
		ElapsedMs:  snap.ElapsedMs,
		DistanceM:  snap.DistanceM,
		Points:     points,
	}
}

// WriteJSON writes the JSON track export of snap to w.
func WriteJSON(w io.Writer, snap session.Snapshot, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewTrack(snap, now)); err != nil {
		return fmt.Errorf("encode track: %w", err)
	}
	return nil
}

// NewGPX builds a GPX 1.1 document with a single track segment holding the
// accepted points.
func NewGPX(snap session.Snapshot, now time.Time) *gpx.GPX {
	created := now.UTC()
	doc := &gpx.GPX{
		Version: gpx.Version,
		Creator: AppName,
		XMLNS:   gpx.Namespace,
		Metadata: &gpx.Metadata{
			Name: runName(snap),
			Time: &created,
		},
	}

	seg := gpx.TrackSegment{Points: make([]gpx.Point, 0, len(snap.Points))}
	for _, f := range snap.Points {
		p := gpx.Point{Lat: f.Lat, Lon: f.Lon}
		if f.Altitude != nil {
			ele := *f.Altitude
			p.Elevation = &ele
		}
		if f.Timestamp > 0 {
			ts := f.Time()
			p.Time = &ts
		}
		if hdop, ok := f.HDOP(); ok {
			p.HDOP = &hdop
		}
		seg.Points = append(seg.Points, p)
	}

	doc.Tracks = []gpx.Track{{
		Name:     runName(snap),
		Type:     "running",
		Segments: []gpx.TrackSegment{seg},
	}}
	return doc
}

// WriteGPX writes the GPX export of snap to w.
func WriteGPX(w io.Writer, snap session.Snapshot, now time.Time) error {
	return NewGPX(snap, now).WriteToWriter(w)
}

// Filename suggests a download name such as "runtrace-2026-04-12-0600.gpx".
func Filename(snap session.Snapshot, ext string) string {
	if snap.StartedAt == nil {
		return AppName + "." + ext
	}
	return fmt.Sprintf("%s-%s.%s", AppName, snap.StartedAt.UTC().Format("2006-01-02-1504"), ext)
}

func runName(snap session.Snapshot) string {
	if snap.StartedAt == nil {
		return "Run"
	}
	return "Run " + snap.StartedAt.UTC().Format("2006-01-02 15:04")
}
