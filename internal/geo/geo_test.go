package geo

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

// offsetNorth returns a point d meters due north of p.
func offsetNorth(p LatLon, d float64) LatLon {
	return LatLon{Lat: p.Lat + (d/EarthRadiusM)*180/math.Pi, Lon: p.Lon}
}

func TestDistance(t *testing.T) {
	origin := LatLon{Lat: 34.0, Lon: -117.0}

	tests := []struct {
		name string
		a, b LatLon
		want float64
		tol  float64
	}{
		{"coincident", origin, origin, 0, 0},
		{"200m north", origin, offsetNorth(origin, 200), 200, 1e-6},
		{"2m north", origin, offsetNorth(origin, 2), 2, 1e-6},
		{"sub-millimeter", origin, offsetNorth(origin, 0.0005), 0.0005, 1e-6},
		{"antipodal", LatLon{0, 0}, LatLon{0, 180}, math.Pi * EarthRadiusM, 1e-3},
		{"pole to pole", LatLon{90, 0}, LatLon{-90, 0}, math.Pi * EarthRadiusM, 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Distance() = %.9f, want %.9f", got, tt.want)
			}
			if back := Distance(tt.b, tt.a); back != got {
				t.Errorf("Distance not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestDistanceKnownCities(t *testing.T) {
	// Jakarta to Bandung is roughly 115-120 km.
	d := Distance(LatLon{-6.2, 106.816}, LatLon{-6.9175, 107.6191})
	if d < 100000 || d > 140000 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestConversions(t *testing.T) {
	if got := MetersToMiles(1609.344); got != 1 {
		t.Errorf("MetersToMiles(1609.344) = %v, want 1", got)
	}
	if got := MetersToFeet(1); got != 3.280839895 {
		t.Errorf("MetersToFeet(1) = %v, want 3.280839895", got)
	}
	if got := MilesToMeters(2); got != 3218.688 {
		t.Errorf("MilesToMeters(2) = %v, want 3218.688", got)
	}
	if got := MetersToMiles(0); got != 0 {
		t.Errorf("MetersToMiles(0) = %v, want 0", got)
	}
}

func TestFormatPace(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{8.0, "8:00"},
		{8.5, "8:30"},
		{8.0467, "8:03"},
		{12.9999, "13:00"},
		{0, UnknownPace},
		{-3, UnknownPace},
		{math.Inf(1), UnknownPace},
		{math.NaN(), UnknownPace},
	}
	for _, tt := range tests {
		if got := FormatPace(tt.in); got != tt.want {
			t.Errorf("FormatPace(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPaceAndSpeedScenario(t *testing.T) {
	// 200 m in one minute.
	pace := PaceMinPerMile(200, time.Minute)
	if got := FormatPace(pace); got != "8:03" {
		t.Errorf("pace = %q, want 8:03", got)
	}
	mph := AverageMPH(200, time.Minute)
	if math.Abs(mph-7.456) > 0.01 {
		t.Errorf("AverageMPH = %v, want ~7.46", mph)
	}
}

func TestZeroGuards(t *testing.T) {
	if got := AverageMPH(500, 0); got != 0 {
		t.Errorf("AverageMPH with zero elapsed = %v, want 0", got)
	}
	if got := PaceMinPerMile(0, time.Minute); !math.IsInf(got, 1) {
		t.Errorf("PaceMinPerMile with zero distance = %v, want +Inf", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{15 * time.Second, "00:15"},
		{61*time.Second + 900*time.Millisecond, "01:01"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-time.Second, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFixJSONUnknownAccuracy(t *testing.T) {
	f := Fix{Lat: 1, Lon: 2, Timestamp: 1000, Accuracy: UnknownAccuracy()}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal to map error: %v", err)
	}
	if v, ok := raw["accuracy"]; !ok || v != nil {
		t.Errorf("accuracy = %v, want null", v)
	}
	if _, ok := raw["altitude"]; ok {
		t.Error("altitude should be omitted when unset")
	}

	var back Fix
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if back.HasAccuracy() {
		t.Errorf("decoded accuracy = %v, want unknown", back.Accuracy)
	}
}

func TestFixJSONMissingAccuracy(t *testing.T) {
	var f Fix
	if err := json.Unmarshal([]byte(`{"lat":34,"lon":-117,"timestamp":5,"speed":3.2}`), &f); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if f.HasAccuracy() {
		t.Error("missing accuracy should decode as unknown")
	}
	if f.Speed == nil || *f.Speed != 3.2 {
		t.Errorf("Speed = %v, want 3.2", f.Speed)
	}
}

func TestFixClone(t *testing.T) {
	alt := 120.0
	f := Fix{Altitude: &alt}
	c := f.Clone()
	*c.Altitude = 5
	if *f.Altitude != 120 {
		t.Error("clone aliases original altitude")
	}
}

func TestFixValidate(t *testing.T) {
	tests := []struct {
		name string
		fix  Fix
		ok   bool
	}{
		{"valid", Fix{Lat: 34, Lon: -117, Accuracy: 5}, true},
		{"unknown accuracy", Fix{Lat: 0, Lon: 0, Accuracy: UnknownAccuracy()}, true},
		{"poles and antimeridian", Fix{Lat: -90, Lon: 180}, true},
		{"lat too high", Fix{Lat: 91, Lon: 0}, false},
		{"lon too low", Fix{Lat: 0, Lon: -180.5}, false},
		{"nan lat", Fix{Lat: math.NaN()}, false},
		{"negative accuracy", Fix{Lat: 1, Lon: 1, Accuracy: -1}, false},
	}
	for _, tt := range tests {
		err := tt.fix.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() = %v, want ok=%v", tt.name, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidFix) {
			t.Errorf("%s: error %v does not wrap ErrInvalidFix", tt.name, err)
		}
	}
}

func TestOffset(t *testing.T) {
	origin := LatLon{Lat: 34, Lon: -117}
	tests := []struct {
		north, east float64
	}{
		{100, 0},
		{0, 100},
		{-250, 300},
	}
	for _, tt := range tests {
		p := Offset(origin, tt.north, tt.east)
		want := math.Hypot(tt.north, tt.east)
		if got := Distance(origin, p); math.Abs(got-want) > want*0.001 {
			t.Errorf("Offset(%v, %v) moved %v m, want %v", tt.north, tt.east, got, want)
		}
	}
}
