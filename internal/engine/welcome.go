package engine

import (
	"time"

	"github.com/agentx-app/chatsync/internal/models"
)

// Transient projection rows use reserved ids so they are recognizable and can
// never collide with persisted rows, whose ids are UUIDs or turn-suffixed
// record ids.
const (
	welcomeMessageID = "_welcome"
	offlineNoticeID  = "_offline_notice"
)

// welcomeByProfession maps a profession context to its greeting.
var welcomeByProfession = map[string]string{
	"doctor":  "Welcome back, Doctor. Ask me anything about your cases, schedules, or medical references.",
	"lawyer":  "Welcome back, Counselor. Ask me anything about your matters, filings, or legal research.",
	"teacher": "Welcome back. Ask me anything about lesson planning, grading, or your students.",
	"general": "Hi! I'm your assistant. How can I help you today?",
}

// welcomeMessage synthesizes the greeting shown when a session has no
// messages. It is a display affordance only and is never persisted.
func welcomeMessage(profession string) models.Message {
	content, ok := welcomeByProfession[profession]
	if !ok {
		content = welcomeByProfession["general"]
	}
	return models.Message{
		ID:        welcomeMessageID,
		Content:   content,
		Type:      models.MessageAssistant,
		Status:    models.StatusSent,
		Timestamp: time.Now(),
	}
}

// offlineNotice synthesizes the canned assistant reply shown after a send is
// accepted while offline. Transient, never persisted.
func offlineNotice(sessionID models.SessionID) models.Message {
	return models.Message{
		ID:        offlineNoticeID,
		SessionID: sessionID,
		Content:   "You're offline right now. Your message has been saved and will be sent as soon as you're back online.",
		Type:      models.MessageAssistant,
		Status:    models.StatusSent,
		Timestamp: time.Now(),
	}
}

// IsTransient reports whether a projection row is a synthesized notice rather
// than a stored message.
func IsTransient(msg models.Message) bool {
	return msg.ID == welcomeMessageID || msg.ID == offlineNoticeID
}
