package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/runtrace/runtrace/internal/geo"
)

// Simulator patterns.
const (
	PatternSteady    = "steady"
	PatternIntervals = "intervals"
	PatternStall     = "stall"
)

// SimulatorConfig describes a synthetic run around a circular loop.
type SimulatorConfig struct {
	Origin      geo.LatLon
	LoopRadiusM float64
	SpeedMPS    float64
	Interval    time.Duration
	JitterM     float64
	Pattern     string

	// Every Nth fix is degraded to 80 m accuracy; every Mth tick reports
	// "signal lost" instead of a fix. Zero disables either.
	LowAccuracyEvery int
	ErrorEvery       int

	Seed int64
}

// DefaultSimulatorConfig returns a loop in a park at roughly 9:00/mi pace.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Origin:           geo.LatLon{Lat: 34.0, Lon: -117.0},
		LoopRadiusM:      150,
		SpeedMPS:         3.0,
		Interval:         time.Second,
		JitterM:          2.0,
		Pattern:          PatternSteady,
		LowAccuracyEvery: 25,
		ErrorEvery:       90,
		Seed:             1,
	}
}

// Course produces the fixes of one simulated run. It is deterministic for
// a given config and not safe for concurrent use.
type Course struct {
	cfg   SimulatorConfig
	rng   *rand.Rand
	tick  int
	along float64 // meters covered on the loop
}

// NewCourse returns a course at the start of the loop.
func NewCourse(cfg SimulatorConfig) *Course {
	return &Course{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Next advances one interval. It returns either a fix or, on an error
// tick, a non-empty reason.
func (c *Course) Next(now time.Time) (geo.Fix, string) {
	c.tick++

	if c.cfg.ErrorEvery > 0 && c.tick%c.cfg.ErrorEvery == 0 {
		return geo.Fix{}, "signal lost"
	}

	c.along += c.speed() * c.cfg.Interval.Seconds()

	r := c.cfg.LoopRadiusM
	theta := c.along / r
	north := r * (1 - math.Cos(theta))
	east := r * math.Sin(theta)
	if c.cfg.JitterM > 0 {
		north += c.rng.NormFloat64() * c.cfg.JitterM
		east += c.rng.NormFloat64() * c.cfg.JitterM
	}
	p := geo.Offset(c.cfg.Origin, north, east)

	speed := c.speed()
	alt := 250 + 4*math.Sin(theta)
	fix := geo.Fix{
		Lat:       p.Lat,
		Lon:       p.Lon,
		Timestamp: now.UnixMilli(),
		Accuracy:  4 + c.rng.Float64()*8,
		Altitude:  &alt,
		Speed:     &speed,
	}
	if c.cfg.LowAccuracyEvery > 0 && c.tick%c.cfg.LowAccuracyEvery == 0 {
		fix.Accuracy = 80
	}
	return fix, ""
}

// speed returns the pace for the current tick in m/s.
func (c *Course) speed() float64 {
	switch c.cfg.Pattern {
	case PatternIntervals:
		// 60 ticks hard, 60 ticks easy.
		if (c.tick/60)%2 == 0 {
			return c.cfg.SpeedMPS * 1.4
		}
		return c.cfg.SpeedMPS * 0.6
	case PatternStall:
		// Run 40 ticks, stand still for 30.
		if c.tick%70 >= 40 {
			return 0
		}
		return c.cfg.SpeedMPS
	default:
		return c.cfg.SpeedMPS
	}
}

// Simulator is a Feed that runs a fresh Course for each subscriber.
type Simulator struct {
	cfg SimulatorConfig
	hub hub
}

// NewSimulator validates cfg and returns a simulator.
func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("simulator: interval must be positive, got %v", cfg.Interval)
	}
	if cfg.LoopRadiusM <= 0 {
		return nil, fmt.Errorf("simulator: loop radius must be positive, got %v", cfg.LoopRadiusM)
	}
	if cfg.SpeedMPS < 0 {
		return nil, fmt.Errorf("simulator: speed must not be negative, got %v", cfg.SpeedMPS)
	}
	return &Simulator{cfg: cfg}, nil
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) Subscribe(onFix FixFunc, onError ErrorFunc) (Handle, error) {
	h, sub, ctx := s.hub.add(onFix, onError)
	go s.run(ctx, sub)
	return h, nil
}

func (s *Simulator) Unsubscribe(h Handle) {
	s.hub.remove(h)
}

func (s *Simulator) run(ctx context.Context, sub *subscription) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	course := NewCourse(s.cfg)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fix, reason := course.Next(now)
			if reason != "" {
				sub.fail(reason)
				continue
			}
			sub.fix(fix)
		}
	}
}
