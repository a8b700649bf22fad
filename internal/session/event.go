package session

import (
	"github.com/runtrace/runtrace/internal/geo"
)

// Delta carries what changed in a run since the previous update. Scalars
// are latest-wins; Points are the newly accepted points starting at track
// index FromIndex.
type Delta struct {
	ID        string     `json:"id,omitempty"`
	Phase     Phase      `json:"phase"`
	ElapsedMs int64      `json:"elapsedMs"`
	DistanceM float64    `json:"distanceM"`
	FromIndex int        `json:"fromIndex"`
	Points    []geo.Fix  `json:"points,omitempty"`
	LastFix   *geo.Fix   `json:"lastFix,omitempty"`
	Status    string     `json:"status,omitempty"`
	Feed      FeedStatus `json:"feed"`
}

// Merge folds a later delta into d. Points are concatenated only when next
// continues where d leaves off; ok is false when they do not line up and the
// caller should fall back to a full snapshot.
func (d Delta) Merge(next Delta) (merged Delta, ok bool) {
	if d.ID != next.ID {
		return next, false
	}
	if len(next.Points) > 0 && next.FromIndex != d.FromIndex+len(d.Points) {
		return next, false
	}
	merged = next
	merged.FromIndex = d.FromIndex
	merged.Points = append(append([]geo.Fix(nil), d.Points...), next.Points...)
	if merged.LastFix == nil {
		merged.LastFix = d.LastFix
	}
	return merged, true
}

// Apply applies a delta to a snapshot, as a renderer would. ok is false when
// the delta belongs to another run or skips points; the renderer then needs
// a fresh snapshot.
func (s Snapshot) Apply(d Delta) (Snapshot, bool) {
	if d.ID != s.ID || d.FromIndex > len(s.Points) {
		return s, false
	}
	out := s
	out.Phase = d.Phase
	out.ElapsedMs = d.ElapsedMs
	out.DistanceM = d.DistanceM
	out.Status = d.Status
	out.Feed = d.Feed
	if d.LastFix != nil {
		out.LastFix = d.LastFix
	}
	if len(d.Points) > 0 {
		// Overlapping points (a re-sent delta) are replaced, not duplicated.
		out.Points = append(append([]geo.Fix(nil), s.Points[:d.FromIndex]...), d.Points...)
	}
	return out, true
}
