package session

import (
	"time"

	"github.com/runtrace/runtrace/internal/geo"
)

// Snapshot is a read-only copy of a run for renderers and exporters.
// LastFix, Status and Feed are filled in by the tracker; the session itself
// does not know about the feed.
type Snapshot struct {
	ID        string     `json:"id,omitempty"`
	Phase     Phase      `json:"phase"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	ElapsedMs int64      `json:"elapsedMs"`
	DistanceM float64    `json:"distanceM"`
	Points    []geo.Fix  `json:"points"`
	LastFix   *geo.Fix   `json:"lastFix,omitempty"`
	Status    string     `json:"status,omitempty"`
	Feed      FeedStatus `json:"feed"`
}

// FeedStatus describes the location feed backing the run.
type FeedStatus struct {
	Name      string `json:"name"`
	Health    string `json:"health"`
	Failures  int    `json:"failures,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// Snapshot copies the session state. The returned points do not alias the
// session's track.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		Phase:     s.phase,
		ElapsedMs: s.Elapsed().Milliseconds(),
		DistanceM: s.distance,
		Points:    s.Track(),
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	return snap
}

// Elapsed returns the snapshot's elapsed time as a duration.
func (s Snapshot) Elapsed() time.Duration {
	return time.Duration(s.ElapsedMs) * time.Millisecond
}

// Summary is the derived, human-facing view of a run.
type Summary struct {
	ElapsedMs  int64   `json:"elapsedMs"`
	Elapsed    string  `json:"elapsed"`
	DistanceM  float64 `json:"distanceM"`
	Miles      float64 `json:"miles"`
	Feet       float64 `json:"feet"`
	Pace       string  `json:"pace"`
	AvgMPH     float64 `json:"avgMph"`
	PointCount int     `json:"pointCount"`
}

// Summarize derives the summary from a snapshot. It is recomputed on every
// call.
func Summarize(s Snapshot) Summary {
	elapsed := s.Elapsed()
	return Summary{
		ElapsedMs:  s.ElapsedMs,
		Elapsed:    geo.FormatElapsed(elapsed),
		DistanceM:  s.DistanceM,
		Miles:      geo.MetersToMiles(s.DistanceM),
		Feet:       geo.MetersToFeet(s.DistanceM),
		Pace:       geo.FormatPace(geo.PaceMinPerMile(s.DistanceM, elapsed)),
		AvgMPH:     geo.AverageMPH(s.DistanceM, elapsed),
		PointCount: len(s.Points),
	}
}
