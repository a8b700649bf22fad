package session

import (
	"encoding/json"
)

// Phase is the lifecycle phase of a run.
type Phase int

const (
	Idle Phase = iota
	Running
	Paused
	Stopped
)

var phaseNames = map[Phase]string{
	Idle:    "idle",
	Running: "running",
	Paused:  "paused",
	Stopped: "stopped",
}

var phaseFromName = map[string]Phase{
	"idle":    Idle,
	"running": Running,
	"paused":  Paused,
	"stopped": Stopped,
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := phaseFromName[s]; ok {
		*p = v
	}
	return nil
}

// Active reports whether the phase accepts fixes from the feed at all.
// Idle and Stopped sessions ignore the feed.
func (p Phase) Active() bool {
	return p == Running || p == Paused
}

// Action is a lifecycle command. Clear is not an action: it replaces the
// session value instead of transitioning it.
type Action int

const (
	ActionStart Action = iota
	ActionPause
	ActionResume
	ActionStop
)

var actionNames = map[Action]string{
	ActionStart:  "start",
	ActionPause:  "pause",
	ActionResume: "resume",
	ActionStop:   "stop",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// transitions lists every legal (phase, action) pair. Anything missing is a
// no-op.
var transitions = map[Phase]map[Action]Phase{
	Idle: {
		ActionStart: Running,
	},
	Running: {
		ActionPause: Paused,
		ActionStop:  Stopped,
	},
	Paused: {
		ActionResume: Running,
		ActionStop:   Stopped,
	},
	Stopped: {
		ActionStart: Running,
	},
}

// Transition returns the phase reached by applying a to p. ok is false when
// the action does not apply in p, in which case next == p.
func Transition(p Phase, a Action) (next Phase, ok bool) {
	if to, found := transitions[p][a]; found {
		return to, true
	}
	return p, false
}
