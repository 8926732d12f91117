package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentx-app/chatsync/internal/db"
	"github.com/agentx-app/chatsync/internal/gateway"
	"github.com/agentx-app/chatsync/internal/log"
	"github.com/agentx-app/chatsync/internal/models"
)

// SendMessage submits a user message for the active session. The message is
// persisted locally first in every case. While online it goes straight to the
// backend; while offline it is marked sent and durably queued for replay.
// "Sent" on the offline path means accepted by the local system, not
// acknowledged by the server.
//
// At most one send may be outstanding at a time; a second call while an
// assistant response is pending returns ErrSendInFlight.
func (e *Engine) SendMessage(ctx context.Context, text string) (*models.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	e.mu.Lock()
	if e.awaitingReply {
		e.mu.Unlock()
		return nil, ErrSendInFlight
	}
	e.awaitingReply = true
	sessionID := e.activeSession
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.awaitingReply = false
		e.mu.Unlock()
	}()

	online := e.Online()
	now := time.Now()

	// Session bootstrap. Offline, a local-only session carries the
	// conversation until the backend assigns a real id during replay. Online,
	// session creation is deferred to the backend's response to the first
	// message.
	if sessionID.IsZero() && !online {
		session := models.Session{
			ID:         models.NewLocalSessionID(now),
			Title:      models.DefaultSessionTitle,
			Profession: e.profession,
			CreatedAt:  now,
		}
		if err := e.store.CreateSession(&session); err != nil {
			return nil, fmt.Errorf("create local session: %w", err)
		}
		sessionID = session.ID

		e.mu.Lock()
		e.activeSession = sessionID
		e.hydration = HydrationLoaded
		e.sessions = append([]models.SessionSummary{session.Summary()}, e.sessions...)
		e.mu.Unlock()
	}

	msg := models.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Content:   trimmed,
		Type:      models.MessageUser,
		Status:    models.StatusSending,
		IsSynced:  online,
		Timestamp: now,
	}
	if err := e.store.SaveMessage(&msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	e.appendMessage(msg)

	if !online {
		if err := e.queueOfflineSend(&msg); err != nil {
			return nil, err
		}
		return &msg, nil
	}

	if err := e.deliver(ctx, &msg, sessionID.IsZero()); err != nil {
		return &msg, err
	}
	return &msg, nil
}

// RetryMessage re-attempts a send the user explicitly retried. Only messages
// in the failed state are eligible; offline-queued messages replay on their
// own and never need this path.
func (e *Engine) RetryMessage(ctx context.Context, messageID string) error {
	msg, err := e.store.GetMessage(messageID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if msg == nil || !msg.Status.CanTransition(models.StatusSending) {
		return ErrNotRetryable
	}

	e.mu.Lock()
	if e.awaitingReply {
		e.mu.Unlock()
		return ErrSendInFlight
	}
	e.awaitingReply = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.awaitingReply = false
		e.mu.Unlock()
	}()

	if err := e.setMessageStatus(msg.ID, models.StatusSending); err != nil {
		return err
	}
	msg.Status = models.StatusSending

	if !e.Online() {
		return e.queueOfflineSend(msg)
	}
	return e.deliver(ctx, msg, false)
}

// queueOfflineSend marks the message sent and enqueues its replay payload.
// The status flip and the queue append are one unit: both land or the
// message stays sending and is not considered handled.
func (e *Engine) queueOfflineSend(msg *models.Message) error {
	payload := models.MessageCreatePayload{
		MessageID:  msg.ID,
		SessionID:  msg.SessionID,
		Content:    msg.Content,
		Profession: e.profession,
		Timestamp:  msg.Timestamp,
	}
	encoded, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("encode replay payload: %w", err)
	}

	err = e.store.Transaction(func(tx *db.DB) error {
		if err := tx.UpdateMessageStatus(msg.ID, models.StatusSent); err != nil {
			return err
		}
		return tx.EnqueuePendingOp(&models.PendingOp{
			Kind:       models.OpKindMessage,
			Action:     models.OpCreate,
			TargetID:   msg.ID,
			Payload:    encoded,
			EnqueuedAt: time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("queue offline send: %w", err)
	}

	msg.Status = models.StatusSent
	e.updateProjectedMessage(*msg)
	e.appendMessage(offlineNotice(msg.SessionID))

	if depth, err := e.store.CountPendingOps(); err == nil {
		e.tel.TrackMessageQueued(int(depth))
	}
	return nil
}

// deliver runs the online path: process the message, adopt a backend-assigned
// session id when this send opened the conversation, and persist the
// assistant reply. A failure flips the message to failed; it stays in history
// and is never queued, retry is an explicit user action.
func (e *Engine) deliver(ctx context.Context, msg *models.Message, newSession bool) error {
	started := time.Now()

	req := gateway.ProcessRequest{
		Message:   msg.Content,
		UserID:    e.creds.CurrentUserID(),
		Context:   map[string]any{"profession": e.profession},
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
	}
	// Local-only session ids mean nothing to the backend; it assigns the
	// real one in the response.
	if msg.SessionID.IsRemote() {
		id := int64(msg.SessionID)
		req.SessionID = &id
	}

	resp, err := e.gw.Process(ctx, req)
	if err != nil {
		if statusErr := e.setMessageStatus(msg.ID, models.StatusFailed); statusErr != nil {
			log.Errorf("mark message failed: %v", statusErr)
		}
		msg.Status = models.StatusFailed
		if msg.SessionID.IsZero() {
			// The first send of a conversation failed before the backend
			// assigned a session. Home the failed row in a local-only
			// session so it stays reachable for retry across restarts.
			if homeErr := e.homeOrphanedMessage(msg); homeErr != nil {
				log.Errorf("home failed message: %v", homeErr)
			}
		}
		e.updateProjectedMessage(*msg)
		e.tel.TrackSendFailed(classifyError(err))
		return fmt.Errorf("send message: %w", err)
	}

	sessionID := msg.SessionID
	if resp.SessionID > 0 {
		server := models.SessionID(resp.SessionID)
		switch {
		case sessionID.IsZero():
			if err := e.adoptSession(server, msg); err != nil {
				return err
			}
			sessionID = server
			msg.SessionID = server
		case sessionID.IsLocal():
			// A retried first send that was homed locally in the meantime.
			if err := e.promoteLocalSession(sessionID, server); err != nil {
				return err
			}
			sessionID = server
			msg.SessionID = server
		}
	}

	if err := e.setMessageStatus(msg.ID, models.StatusSent); err != nil {
		return err
	}
	if !msg.IsSynced {
		if err := e.store.MarkMessageSynced(msg.ID); err != nil {
			return fmt.Errorf("mark message synced: %w", err)
		}
		msg.IsSynced = true
	}
	msg.Status = models.StatusSent
	e.updateProjectedMessage(*msg)

	assistant := models.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Content:   resp.Response,
		Type:      models.MessageAssistant,
		Status:    models.StatusSent,
		IsSynced:  true,
		Metadata:  assistantMetadata(resp),
		Timestamp: time.Now(),
	}
	if err := e.store.SaveMessage(&assistant); err != nil {
		return fmt.Errorf("persist assistant reply: %w", err)
	}
	e.appendMessage(assistant)

	e.tel.TrackMessageSent(newSession, time.Since(started).Milliseconds())
	return nil
}

// adoptSession persists a backend-assigned session id from the first send of
// a conversation and moves the in-flight message under it.
func (e *Engine) adoptSession(sessionID models.SessionID, msg *models.Message) error {
	session := models.Session{
		ID:         sessionID,
		Title:      models.DefaultSessionTitle,
		Profession: e.profession,
		CreatedAt:  msg.Timestamp,
	}
	if err := e.store.UpsertSession(&session); err != nil {
		return fmt.Errorf("adopt session %d: %w", sessionID, err)
	}
	if err := e.store.ReassignMessageSession(msg.ID, sessionID); err != nil {
		return fmt.Errorf("reassign message to session %d: %w", sessionID, err)
	}

	e.mu.Lock()
	e.activeSession = sessionID
	e.hydration = HydrationLoaded
	for i := range e.messages {
		if e.messages[i].ID == msg.ID {
			e.messages[i].SessionID = sessionID
		}
	}
	e.mu.Unlock()

	return e.refreshSessionProjection()
}

// homeOrphanedMessage creates a local-only session for a message whose first
// online send failed before any session existed. Without a session row the
// failed message would be invisible after a restart.
func (e *Engine) homeOrphanedMessage(msg *models.Message) error {
	session := models.Session{
		ID:         models.NewLocalSessionID(time.Now()),
		Title:      models.DefaultSessionTitle,
		Profession: e.profession,
		CreatedAt:  msg.Timestamp,
	}
	if err := e.store.CreateSession(&session); err != nil {
		return fmt.Errorf("create local session: %w", err)
	}
	if err := e.store.ReassignMessageSession(msg.ID, session.ID); err != nil {
		return fmt.Errorf("reassign message to session %d: %w", session.ID, err)
	}

	e.mu.Lock()
	if e.activeSession.IsZero() {
		e.activeSession = session.ID
		e.hydration = HydrationLoaded
	}
	for i := range e.messages {
		if e.messages[i].ID == msg.ID {
			e.messages[i].SessionID = session.ID
		}
	}
	e.sessions = append([]models.SessionSummary{session.Summary()}, e.sessions...)
	e.mu.Unlock()

	msg.SessionID = session.ID
	return nil
}

// promoteLocalSession moves a local-only session onto the server id the
// backend just assigned, mirroring the remap the queue drain performs.
func (e *Engine) promoteLocalSession(localID, serverID models.SessionID) error {
	if err := e.store.RemapSession(localID, serverID); err != nil {
		return fmt.Errorf("remap session %d to %d: %w", localID, serverID, err)
	}

	e.mu.Lock()
	if e.activeSession == localID {
		e.activeSession = serverID
	}
	for i := range e.messages {
		if e.messages[i].SessionID == localID {
			e.messages[i].SessionID = serverID
		}
	}
	e.mu.Unlock()

	return e.refreshSessionProjection()
}

func (e *Engine) setMessageStatus(id string, status models.MessageStatus) error {
	if err := e.store.UpdateMessageStatus(id, status); err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}

// appendMessage adds a row to the projection if it belongs to the active
// session.
func (e *Engine) appendMessage(msg models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeSession == msg.SessionID {
		e.messages = append(e.messages, msg)
	}
}

// updateProjectedMessage replaces the projected copy of a row in place.
func (e *Engine) updateProjectedMessage(msg models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.messages {
		if e.messages[i].ID == msg.ID {
			e.messages[i] = msg
			return
		}
	}
}

// assistantMetadata folds the response's side-channel fields into one opaque
// JSON payload carried on the assistant row.
func assistantMetadata(resp *gateway.ProcessResponse) string {
	meta := map[string]any{}
	if len(resp.Metadata) > 0 && string(resp.Metadata) != "null" {
		if err := json.Unmarshal(resp.Metadata, &meta); err != nil {
			meta = map[string]any{}
		}
	}
	if resp.AgentName != "" {
		meta["agent_name"] = resp.AgentName
	}
	if resp.RequiresFollowUp {
		meta["requires_follow_up"] = true
	}
	if len(resp.SuggestedActions) > 0 {
		meta["suggested_actions"] = resp.SuggestedActions
	}
	if len(meta) == 0 {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}
