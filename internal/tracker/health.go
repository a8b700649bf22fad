package tracker

import "time"

// Health is the coarse condition of the location feed.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthFailed   Health = "failed"
)

// DefaultHealthThreshold is the number of consecutive feed errors after
// which the feed is reported failed.
const DefaultHealthThreshold = 3

// feedHealth tracks consecutive error notifications from the feed. Any fix
// resets the count. Guarded by Tracker.mu.
type feedHealth struct {
	failures    int
	lastErr     string
	lastFail    time.Time
	lastEmitted Health
}

func newFeedHealth() feedHealth {
	return feedHealth{lastEmitted: HealthHealthy}
}

func (h *feedHealth) recordSuccess() {
	h.failures = 0
}

func (h *feedHealth) recordFailure(reason string, now time.Time) {
	h.failures++
	h.lastErr = reason
	h.lastFail = now
}

// status computes the health for the given failure threshold: no recent
// errors is healthy, fewer than threshold in a row is degraded.
func (h *feedHealth) status(threshold int) Health {
	switch {
	case h.failures == 0:
		return HealthHealthy
	case h.failures >= threshold:
		return HealthFailed
	default:
		return HealthDegraded
	}
}

// changed reports whether the status differs from the last one reported
// and records the new one.
func (h *feedHealth) changed(threshold int) (Health, bool) {
	s := h.status(threshold)
	if s == h.lastEmitted {
		return s, false
	}
	h.lastEmitted = s
	return s, true
}
