package session

import (
	"crypto/sha256"
	"fmt"

	"github.com/runtrace/runtrace/internal/geo"
)

// Zone is a circle around a private location, such as home.
type Zone struct {
	Lat     float64 `yaml:"lat" json:"lat"`
	Lon     float64 `yaml:"lon" json:"lon"`
	RadiusM float64 `yaml:"radius_m" json:"radiusM"`
}

// Contains reports whether p lies inside the zone.
func (z Zone) Contains(p geo.LatLon) bool {
	return geo.Distance(geo.LatLon{Lat: z.Lat, Lon: z.Lon}, p) <= z.RadiusM
}

// PrivacyFilter hides sensitive parts of a run before it leaves the
// machine as an export. The zero value is a no-op filter.
type PrivacyFilter struct {
	Zones       []Zone
	MaskRunIDs  bool
	HideLastFix bool
}

// IsAllowed reports whether a point may appear in shared output. A point
// inside any zone is withheld.
func (f *PrivacyFilter) IsAllowed(p geo.LatLon) bool {
	for _, z := range f.Zones {
		if z.Contains(p) {
			return false
		}
	}
	return true
}

// Apply returns a copy of the snapshot with private points removed and
// identifiers masked. Distance and elapsed time are left as recorded, so
// the summary of a filtered run still matches the real one.
func (f *PrivacyFilter) Apply(s Snapshot) Snapshot {
	masked := s

	if len(f.Zones) > 0 {
		masked.Points = make([]geo.Fix, 0, len(s.Points))
		for _, p := range s.Points {
			if f.IsAllowed(p.LatLon()) {
				masked.Points = append(masked.Points, p)
			}
		}
		if masked.LastFix != nil && !f.IsAllowed(masked.LastFix.LatLon()) {
			masked.LastFix = nil
		}
	}

	if f.MaskRunIDs && masked.ID != "" {
		masked.ID = shortHash(masked.ID)
	}

	if f.HideLastFix {
		masked.LastFix = nil
	}

	return masked
}

// IsNoop reports whether the filter does nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return len(f.Zones) == 0 && !f.MaskRunIDs && !f.HideLastFix
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
