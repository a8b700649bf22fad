// Package geo holds the geodesy helpers shared by the tracker: great-circle
// distance, unit conversion, and pace/speed formatting.
package geo

import (
	"fmt"
	"math"
	"time"
)

const (
	// EarthRadiusM is the mean Earth radius used by Distance.
	EarthRadiusM = 6371000.0

	metersPerMile = 1609.344
	feetPerMeter  = 3.280839895
)

// LatLon is a geodetic coordinate in decimal degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance in meters between a and b
// using the atan2 form of the haversine formula.
func Distance(a, b LatLon) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h a hair outside [0,1] for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusM * c
}

// Offset returns the point northM meters north and eastM meters east of p.
// It uses a local flat-earth approximation, fine for the few kilometers a
// simulated course spans.
func Offset(p LatLon, northM, eastM float64) LatLon {
	dLat := northM / EarthRadiusM * 180 / math.Pi
	dLon := eastM / (EarthRadiusM * math.Cos(p.Lat*math.Pi/180)) * 180 / math.Pi
	return LatLon{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}

// MetersToMiles converts meters to statute miles.
func MetersToMiles(m float64) float64 {
	return m / metersPerMile
}

// MilesToMeters converts statute miles to meters.
func MilesToMeters(mi float64) float64 {
	return mi * metersPerMile
}

// MetersToFeet converts meters to feet.
func MetersToFeet(m float64) float64 {
	return m * feetPerMeter
}

// PaceMinPerMile returns minutes per mile for the given distance and
// elapsed time. Zero distance yields +Inf, which FormatPace renders as
// unknown.
func PaceMinPerMile(distanceM float64, elapsed time.Duration) float64 {
	miles := MetersToMiles(distanceM)
	if miles <= 0 {
		return math.Inf(1)
	}
	return elapsed.Minutes() / miles
}

// UnknownPace is rendered when no pace can be computed.
const UnknownPace = "--:--"

// FormatPace renders minutes-per-mile as m:ss. Non-finite or non-positive
// input yields UnknownPace.
func FormatPace(minPerMile float64) string {
	if math.IsNaN(minPerMile) || math.IsInf(minPerMile, 0) || minPerMile <= 0 {
		return UnknownPace
	}
	total := int(math.Round(minPerMile * 60))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// AverageMPH returns the average speed in miles per hour. Zero elapsed
// time yields 0.
func AverageMPH(distanceM float64, elapsed time.Duration) float64 {
	hours := elapsed.Hours()
	if hours <= 0 {
		return 0
	}
	return MetersToMiles(distanceM) / hours
}

// FormatElapsed renders a duration as mm:ss, or h:mm:ss once it reaches an
// hour. Negative durations render as 00:00.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
