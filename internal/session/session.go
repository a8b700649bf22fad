package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/runtrace/runtrace/internal/geo"
)

// ErrNotRunning is returned by Append when the session is not Running.
var ErrNotRunning = errors.New("session: not running")

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Session is the mutable state of one run. It is not safe for concurrent
// use; the tracker serializes every call.
type Session struct {
	clock Clock

	id          string
	phase       Phase
	startedAt   time.Time
	pausedTotal time.Duration
	pauseStart  time.Time
	stoppedAt   time.Time

	track    []geo.Fix
	distance float64
}

// New returns an Idle session. A nil clock means time.Now.
func New(clock Clock) *Session {
	if clock == nil {
		clock = time.Now
	}
	return &Session{clock: clock}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Phase() Phase         { return s.phase }
func (s *Session) StartedAt() time.Time { return s.startedAt }
func (s *Session) Distance() float64    { return s.distance }
func (s *Session) Len() int             { return len(s.track) }

// LastAccepted returns the most recent point in the track.
func (s *Session) LastAccepted() (geo.Fix, bool) {
	if len(s.track) == 0 {
		return geo.Fix{}, false
	}
	return s.track[len(s.track)-1], true
}

// Track returns a copy of the accepted points in order.
func (s *Session) Track() []geo.Fix {
	out := make([]geo.Fix, len(s.track))
	for i, p := range s.track {
		out[i] = p.Clone()
	}
	return out
}

// Start begins a new run from Idle or Stopped, discarding any previous
// track. It reports whether the phase changed.
func (s *Session) Start() bool {
	next, ok := Transition(s.phase, ActionStart)
	if !ok {
		return false
	}
	s.id = uuid.NewString()
	s.phase = next
	s.startedAt = s.clock()
	s.pausedTotal = 0
	s.pauseStart = time.Time{}
	s.stoppedAt = time.Time{}
	s.track = nil
	s.distance = 0
	return true
}

// Pause freezes the elapsed clock.
func (s *Session) Pause() bool {
	next, ok := Transition(s.phase, ActionPause)
	if !ok {
		return false
	}
	s.phase = next
	s.pauseStart = s.clock()
	return true
}

// Resume restarts the elapsed clock, crediting the pause to pausedTotal.
func (s *Session) Resume() bool {
	next, ok := Transition(s.phase, ActionResume)
	if !ok {
		return false
	}
	s.closePause(s.clock())
	s.phase = next
	return true
}

// Stop ends the run. An open pause is closed at the stop instant so the
// paused interval is not counted as elapsed time.
func (s *Session) Stop() bool {
	next, ok := Transition(s.phase, ActionStop)
	if !ok {
		return false
	}
	now := s.clock()
	if s.phase == Paused {
		s.closePause(now)
	}
	s.phase = next
	s.stoppedAt = now
	return true
}

func (s *Session) closePause(now time.Time) {
	if d := now.Sub(s.pauseStart); d > 0 {
		s.pausedTotal += d
	}
	s.pauseStart = time.Time{}
}

// PausedTotal returns the paused time credited so far, excluding an open
// pause.
func (s *Session) PausedTotal() time.Duration {
	return s.pausedTotal
}

// Elapsed returns active running time net of pauses.
func (s *Session) Elapsed() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	var end time.Time
	switch s.phase {
	case Paused:
		end = s.pauseStart
	case Stopped:
		end = s.stoppedAt
	default:
		end = s.clock()
	}
	d := end.Sub(s.startedAt) - s.pausedTotal
	if d < 0 {
		return 0
	}
	return d
}

// Append adds an accepted fix to the track and returns the distance it
// contributed. The first point seeds the track and contributes 0.
func (s *Session) Append(fix geo.Fix) (float64, error) {
	if s.phase != Running {
		return 0, ErrNotRunning
	}
	step := 0.0
	if last, ok := s.LastAccepted(); ok {
		step = geo.Distance(last.LatLon(), fix.LatLon())
	}
	s.track = append(s.track, fix.Clone())
	s.distance += step
	return step, nil
}
