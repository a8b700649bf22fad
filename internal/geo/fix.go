package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidFix is returned by Validate for a fix that cannot be a real
// position.
var ErrInvalidFix = errors.New("invalid fix")

// Fix is a single raw location reading. Accuracy is the horizontal
// uncertainty radius in meters; +Inf means the feed did not report one.
type Fix struct {
	Lat       float64
	Lon       float64
	Timestamp int64 // ms since epoch
	Accuracy  float64
	Altitude  *float64
	Speed     *float64
}

// LatLon returns the fix position.
func (f Fix) LatLon() LatLon {
	return LatLon{Lat: f.Lat, Lon: f.Lon}
}

// HasAccuracy reports whether the fix carries a finite accuracy value.
func (f Fix) HasAccuracy() bool {
	return !math.IsNaN(f.Accuracy) && !math.IsInf(f.Accuracy, 0)
}

// Validate checks that the position is finite and within the coordinate
// ranges, and that accuracy is not negative.
func (f Fix) Validate() error {
	switch {
	case math.IsNaN(f.Lat) || f.Lat < -90 || f.Lat > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidFix, f.Lat)
	case math.IsNaN(f.Lon) || f.Lon < -180 || f.Lon > 180:
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidFix, f.Lon)
	case f.Accuracy < 0:
		return fmt.Errorf("%w: negative accuracy %v", ErrInvalidFix, f.Accuracy)
	}
	return nil
}

// Time returns the fix timestamp as a time.Time in UTC.
func (f Fix) Time() time.Time {
	return time.UnixMilli(f.Timestamp).UTC()
}

// UERE is the user equivalent range error in meters. Horizontal accuracy
// is approximated as HDOP x UERE.
const UERE = 5.0

// HDOP returns the horizontal dilution of precision implied by the
// accuracy, or false when accuracy is unknown.
func (f Fix) HDOP() (float64, bool) {
	if !f.HasAccuracy() {
		return 0, false
	}
	return f.Accuracy / UERE, true
}

// UnknownAccuracy is the accuracy of a fix whose feed reported none.
func UnknownAccuracy() float64 {
	return math.Inf(1)
}

// fixRecord is the wire form of a Fix. Accuracy is a pointer so a
// non-finite value can travel as null.
type fixRecord struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Timestamp int64    `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

func (f Fix) MarshalJSON() ([]byte, error) {
	rec := fixRecord{
		Lat:       f.Lat,
		Lon:       f.Lon,
		Timestamp: f.Timestamp,
		Altitude:  f.Altitude,
		Speed:     f.Speed,
	}
	if f.HasAccuracy() {
		acc := f.Accuracy
		rec.Accuracy = &acc
	}
	return json.Marshal(rec)
}

func (f *Fix) UnmarshalJSON(data []byte) error {
	var rec fixRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*f = Fix{
		Lat:       rec.Lat,
		Lon:       rec.Lon,
		Timestamp: rec.Timestamp,
		Accuracy:  UnknownAccuracy(),
		Altitude:  rec.Altitude,
		Speed:     rec.Speed,
	}
	if rec.Accuracy != nil {
		f.Accuracy = *rec.Accuracy
	}
	return nil
}

// Clone returns a copy of f whose optional fields do not alias f's.
func (f Fix) Clone() Fix {
	if f.Altitude != nil {
		v := *f.Altitude
		f.Altitude = &v
	}
	if f.Speed != nil {
		v := *f.Speed
		f.Speed = &v
	}
	return f
}
