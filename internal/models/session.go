// Package models defines the core data structures for chatsync.
package models

import (
	"time"
)

// DefaultSessionTitle is the title a session carries until the backend
// renames it.
const DefaultSessionTitle = "New Chat"

// SessionID identifies a chat session. The backend assigns positive ids;
// sessions created on-device before the backend has seen them carry negative
// ids derived from the creation instant, so the two id spaces never collide.
type SessionID int64

// NewLocalSessionID returns a local-only session id for the given creation
// instant. Local ids are strictly negative.
func NewLocalSessionID(now time.Time) SessionID {
	return SessionID(-now.UnixMilli())
}

// IsLocal reports whether the id was generated on-device and has not been
// acknowledged by the backend.
func (id SessionID) IsLocal() bool { return id < 0 }

// IsRemote reports whether the id was assigned by the backend.
func (id SessionID) IsRemote() bool { return id > 0 }

// IsZero reports whether no session is referenced.
func (id SessionID) IsZero() bool { return id == 0 }

// Session represents a conversation thread grouping ordered messages.
type Session struct {
	ID    SessionID `gorm:"primaryKey" json:"id"`
	Title string    `gorm:"size:255" json:"title"`

	// Profession is the context tag applied at creation. Immutable.
	Profession string `gorm:"size:100;index" json:"profession"`

	// CreatedAt is the sole sort key for session listing (descending).
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Session) TableName() string {
	return "sessions"
}

// SessionSummary is the projection of a session consumed by presentation.
type SessionSummary struct {
	ID        SessionID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary projects the session's listing fields.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt}
}
