// Package filter decides whether a raw fix joins the track.
package filter

import (
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/session"
)

// Config holds the point filter thresholds.
type Config struct {
	MaxAccuracyM float64 // meters - fixes less accurate than this are dropped
	MinStepM     float64 // meters - moves shorter than this are jitter
}

// DefaultConfig returns the thresholds used for on-foot tracking.
func DefaultConfig() Config {
	return Config{
		MaxAccuracyM: 50.0,
		MinStepM:     5.0,
	}
}

// Verdict is the outcome of evaluating one fix.
type Verdict int

const (
	Accept Verdict = iota
	AcceptSeed
	RejectLowAccuracy
	RejectPaused
	RejectInactive
	RejectJitter
)

var verdictNames = map[Verdict]string{
	Accept:            "accept",
	AcceptSeed:        "accept_seed",
	RejectLowAccuracy: "reject_low_accuracy",
	RejectPaused:      "reject_paused",
	RejectInactive:    "reject_inactive",
	RejectJitter:      "reject_jitter",
}

func (v Verdict) String() string {
	if s, ok := verdictNames[v]; ok {
		return s
	}
	return "unknown"
}

// Accepted reports whether the fix should be appended.
func (v Verdict) Accepted() bool {
	return v == Accept || v == AcceptSeed
}

// LowAccuracyReason is the status text for a fix dropped by the accuracy gate.
const LowAccuracyReason = "low accuracy, waiting for better signal"

// Decision is the filter result. StepM is the distance from the last
// accepted point; it is 0 for a seed and for gates evaluated before the
// jitter gate.
type Decision struct {
	Verdict Verdict
	StepM   float64
	Reason  string
}

// State is the read-only view of a run the filter needs.
// *session.Session satisfies it.
type State interface {
	Phase() session.Phase
	LastAccepted() (geo.Fix, bool)
}

// Filter applies Config to incoming fixes. It never mutates the run.
type Filter struct {
	cfg Config
}

// New returns a filter with the given thresholds. Non-positive values fall
// back to the defaults.
func New(cfg Config) *Filter {
	def := DefaultConfig()
	if cfg.MaxAccuracyM <= 0 {
		cfg.MaxAccuracyM = def.MaxAccuracyM
	}
	if cfg.MinStepM <= 0 {
		cfg.MinStepM = def.MinStepM
	}
	return &Filter{cfg: cfg}
}

// Config returns the thresholds in effect.
func (f *Filter) Config() Config { return f.cfg }

// Evaluate runs the gates in order; the first that matches decides.
func (f *Filter) Evaluate(fix geo.Fix, st State) Decision {
	if fix.HasAccuracy() && fix.Accuracy > f.cfg.MaxAccuracyM {
		return Decision{Verdict: RejectLowAccuracy, Reason: LowAccuracyReason}
	}

	switch st.Phase() {
	case session.Paused:
		return Decision{Verdict: RejectPaused}
	case session.Running:
	default:
		return Decision{Verdict: RejectInactive}
	}

	last, ok := st.LastAccepted()
	if !ok {
		return Decision{Verdict: AcceptSeed}
	}

	step := geo.Distance(last.LatLon(), fix.LatLon())
	if step < f.cfg.MinStepM {
		return Decision{Verdict: RejectJitter, StepM: step}
	}
	return Decision{Verdict: Accept, StepM: step}
}
