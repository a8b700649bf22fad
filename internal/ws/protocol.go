package ws

import (
	"github.com/runtrace/runtrace/internal/records"
	"github.com/runtrace/runtrace/internal/session"
)

type MessageType string

const (
	MsgSnapshot            MessageType = "snapshot"
	MsgDelta               MessageType = "delta"
	MsgError               MessageType = "error"
	MsgAchievementUnlocked MessageType = "achievement_unlocked"
)

// WSMessage is the envelope for every server push. Seq increases by one
// per broadcast; a client that sees a gap should ask for a snapshot.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Run     session.Snapshot `json:"run"`
	Summary session.Summary  `json:"summary"`
}

// DeltaPayload is a run delta. Points start at track index FromIndex.
type DeltaPayload = session.Delta

type ErrorPayload struct {
	Message string `json:"message"`
}

type AchievementUnlockedPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        string `json:"tier"`
}

func newSnapshotPayload(snap session.Snapshot) SnapshotPayload {
	return SnapshotPayload{Run: snap, Summary: session.Summarize(snap)}
}

func newAchievementPayload(a records.Achievement) AchievementUnlockedPayload {
	return AchievementUnlockedPayload{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Tier:        string(a.Tier),
	}
}
