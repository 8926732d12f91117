package models

import (
	"encoding/json"
	"time"
)

// OpKind names the entity a pending operation targets.
type OpKind string

// Pending operation entity kinds.
const (
	OpKindMessage OpKind = "message"
	OpKindSession OpKind = "session"
)

// OpAction names the mutation a pending operation replays.
type OpAction string

// Pending operation actions.
const (
	OpCreate OpAction = "create"
	OpUpdate OpAction = "update"
	OpDelete OpAction = "delete"
)

// PendingOp is a durably queued intent to replicate a local mutation to the
// backend once connectivity allows. Ops are enqueued only while offline and
// drained strictly in enqueue order.
type PendingOp struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	Kind   OpKind   `gorm:"size:16" json:"kind"`
	Action OpAction `gorm:"size:16" json:"action"`

	// TargetID references the local row the op replicates.
	TargetID string `gorm:"size:64;index" json:"target_id"`

	// Payload carries everything needed to replay the op later, serialized
	// as JSON.
	Payload string `gorm:"type:text" json:"payload"`

	EnqueuedAt time.Time `gorm:"index" json:"enqueued_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (PendingOp) TableName() string {
	return "pending_ops"
}

// MessageCreatePayload is the replay payload for a queued message send.
type MessageCreatePayload struct {
	MessageID  string    `json:"message_id"`
	SessionID  SessionID `json:"session_id"`
	Content    string    `json:"content"`
	Profession string    `json:"profession"`
	Timestamp  time.Time `json:"timestamp"`
}

// Encode serializes the payload for storage in a PendingOp.
func (p MessageCreatePayload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeMessageCreatePayload parses a stored message/create payload.
func DecodeMessageCreatePayload(raw string) (MessageCreatePayload, error) {
	var p MessageCreatePayload
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}
