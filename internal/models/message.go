package models

import (
	"strconv"
	"time"
)

// MessageType distinguishes user turns from assistant turns.
type MessageType string

// Message types.
const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
)

// MessageStatus tracks the delivery state of a user-originated message.
// It is not meaningful for assistant turns.
type MessageStatus string

// Message statuses.
const (
	// StatusSending means the message is persisted locally and a delivery
	// attempt is in progress.
	StatusSending MessageStatus = "sending"
	// StatusSent means the message was accepted by the local system: either
	// acknowledged by the backend or durably queued for replay.
	StatusSent MessageStatus = "sent"
	// StatusFailed means an online delivery attempt failed. Failed messages
	// are retried only on explicit user action, never automatically.
	StatusFailed MessageStatus = "failed"
)

// CanTransition reports whether moving from s to next is a legal status
// transition. Failed messages may re-enter sending via explicit retry.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	switch s {
	case StatusSending:
		return next == StatusSent || next == StatusFailed
	case StatusFailed:
		return next == StatusSending
	default:
		return false
	}
}

// Message represents a single chat turn stored in the local mirror.
type Message struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	SessionID SessionID `gorm:"index" json:"session_id"`

	Content string        `gorm:"type:text" json:"content"`
	Type    MessageType   `gorm:"size:16;index" json:"type"`
	Status  MessageStatus `gorm:"size:16" json:"status"`

	// IsSynced means this row's existence is acknowledged by the backend.
	// Monotonic: once true it is never reset.
	IsSynced bool `gorm:"default:false;index" json:"is_synced"`

	// Metadata is an opaque side-channel payload attached to assistant
	// responses (source citations, suggested actions). Passed through
	// unmodified as raw JSON.
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`

	// Timestamp orders messages within a session (ascending).
	Timestamp time.Time `gorm:"index" json:"timestamp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Message) TableName() string {
	return "messages"
}

// The backend stores one record per user/assistant exchange; the local store
// models the exchange as two independent rows. The record id plus a turn
// suffix forms the local row id, so a re-hydration of the same record always
// lands on the same rows.

// UserTurnID returns the local row id for the user half of a backend record.
func UserTurnID(serverMsgID int64) string {
	return strconv.FormatInt(serverMsgID, 10) + "_user"
}

// AssistantTurnID returns the local row id for the assistant half of a
// backend record.
func AssistantTurnID(serverMsgID int64) string {
	return strconv.FormatInt(serverMsgID, 10) + "_assistant"
}
