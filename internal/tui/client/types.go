// Package client provides WebSocket and HTTP clients for the runtrace
// daemon. Run data uses the session types; the envelope and payloads mirror
// the daemon's wire protocol without importing the server package.
package client

import (
	"encoding/json"
	"time"

	"github.com/runtrace/runtrace/internal/session"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgSnapshot            MessageType = "snapshot"
	MsgDelta               MessageType = "delta"
	MsgError               MessageType = "error"
	MsgAchievementUnlocked MessageType = "achievement_unlocked"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// SnapshotPayload is a full copy of the run.
type SnapshotPayload struct {
	Run     session.Snapshot `json:"run"`
	Summary session.Summary  `json:"summary"`
}

// ErrorPayload carries a daemon-side failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

type AchievementUnlockedPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        string `json:"tier"`
}

// ControlResponse answers POST /api/run/{action}.
type ControlResponse struct {
	Changed bool             `json:"changed"`
	Run     session.Snapshot `json:"run"`
}

// Stats mirrors the lifetime totals served by /api/records.
type Stats struct {
	TotalRuns         int     `json:"totalRuns"`
	TotalDistanceM    float64 `json:"totalDistanceM"`
	TotalElapsedMs    int64   `json:"totalElapsedMs"`
	LongestRunM       float64 `json:"longestRunM"`
	BestPace          float64 `json:"bestPace"` // min/mi, 0 when unset
	CurrentStreakDays int     `json:"currentStreakDays"`
	LongestStreakDays int     `json:"longestStreakDays"`
}

// Achievement is one entry of the registry served by /api/records. Locked
// entries carry a zero UnlockedAt.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tier        string    `json:"tier"`
	Category    string    `json:"category"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

func (a Achievement) Unlocked() bool { return !a.UnlockedAt.IsZero() }

// Records is the body of GET /api/records.
type Records struct {
	Stats        Stats         `json:"stats"`
	Achievements []Achievement `json:"achievements"`
}

// UnlockedCount returns how many achievements have been earned.
func (r *Records) UnlockedCount() int {
	n := 0
	for _, a := range r.Achievements {
		if a.Unlocked() {
			n++
		}
	}
	return n
}

// Unlock marks id as earned at t, if it is listed and still locked.
func (r *Records) Unlock(id string, t time.Time) {
	for i := range r.Achievements {
		if r.Achievements[i].ID == id && !r.Achievements[i].Unlocked() {
			r.Achievements[i].UnlockedAt = t
			return
		}
	}
}

// RunEntry is one archived run as listed by GET /api/runs.
type RunEntry struct {
	ID         string     `json:"id"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	SavedAt    time.Time  `json:"savedAt"`
	ElapsedMs  int64      `json:"elapsedMs"`
	DistanceM  float64    `json:"distanceM"`
	Pace       string     `json:"pace"`
	PointCount int        `json:"pointCount"`
}

// ArchivedRun is the body of GET /api/runs/{id}.
type ArchivedRun struct {
	SavedAt time.Time        `json:"savedAt"`
	Summary session.Summary  `json:"summary"`
	Run     session.Snapshot `json:"run"`
}
