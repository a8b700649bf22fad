package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/gpx"
)

// defaultReplayGap spaces points that carry no <time>, and separates the
// last point of a looped pass from the first point of the next.
const defaultReplayGap = time.Second

// minReplayWait floors the wait before a looped pass restarts.
const minReplayWait = time.Millisecond

// ReplayConfig configures a GPX replay.
type ReplayConfig struct {
	Path  string
	Speed float64 // playback multiplier, 1 = real time
	Loop  bool
}

// Replay is a Feed that plays back the points of a GPX file. Each
// subscriber gets its own playback from the first point, re-stamped so the
// first fix carries the subscribe time.
type Replay struct {
	cfg   ReplayConfig
	clock func() time.Time
	hub   hub
}

// NewReplay returns a replay feed. The file is read on each Subscribe so
// a replaced file takes effect on the next run.
func NewReplay(cfg ReplayConfig) *Replay {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	return &Replay{cfg: cfg, clock: time.Now}
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) Subscribe(onFix FixFunc, onError ErrorFunc) (Handle, error) {
	fixes, gaps, err := LoadGPXFixes(r.cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fixes) == 0 {
		return 0, fmt.Errorf("%w: %s has no track points", ErrUnavailable, r.cfg.Path)
	}

	h, sub, ctx := r.hub.add(onFix, onError)
	go r.run(ctx, sub, fixes, gaps)
	return h, nil
}

func (r *Replay) Unsubscribe(h Handle) {
	r.hub.remove(h)
}

func (r *Replay) run(ctx context.Context, sub *subscription, fixes []geo.Fix, gaps []time.Duration) {
	for pass := 0; ; pass++ {
		base := r.clock()
		var offset time.Duration
		for i, fix := range fixes {
			gap := gaps[i]
			wait := time.Duration(float64(gap) / r.cfg.Speed)
			if pass > 0 && i == 0 {
				gap = defaultReplayGap
				wait = max(time.Duration(float64(gap)/r.cfg.Speed), minReplayWait)
			}
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			} else if ctx.Err() != nil {
				return
			}
			offset += gap
			fix.Timestamp = base.Add(time.Duration(float64(offset) / r.cfg.Speed)).UnixMilli()
			sub.fix(fix)
		}

		if !r.cfg.Loop {
			sub.fail("replay finished")
			return
		}
	}
}

// LoadGPXFixes reads every track point of a GPX file as a fix. gaps[i] is
// the recorded time between point i-1 and point i (0 for the first).
// Accuracy is hdop x UERE when the point has an <hdop>, unknown otherwise.
func LoadGPXFixes(path string) ([]geo.Fix, []time.Duration, error) {
	doc, err := gpx.Parse(path)
	if err != nil {
		return nil, nil, err
	}

	points := doc.FlattenPoints()
	fixes := make([]geo.Fix, 0, len(points))
	gaps := make([]time.Duration, 0, len(points))

	var prev *time.Time
	for _, p := range points {
		fix := geo.Fix{
			Lat:      p.Lat,
			Lon:      p.Lon,
			Accuracy: geo.UnknownAccuracy(),
		}
		if p.HDOP != nil {
			fix.Accuracy = *p.HDOP * geo.UERE
		}
		if p.Elevation != nil {
			ele := *p.Elevation
			fix.Altitude = &ele
		}
		if p.Time != nil {
			fix.Timestamp = p.Time.UnixMilli()
		}

		gap := time.Duration(0)
		switch {
		case len(fixes) == 0:
		case prev != nil && p.Time != nil && p.Time.After(*prev):
			gap = p.Time.Sub(*prev)
		default:
			gap = defaultReplayGap
		}
		if p.Time != nil {
			prev = p.Time
		}

		fixes = append(fixes, fix)
		gaps = append(gaps, gap)
	}
	return fixes, gaps, nil
}
