package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/agentx-app/chatsync/internal/db"
	"github.com/agentx-app/chatsync/internal/gateway"
	"github.com/agentx-app/chatsync/internal/log"
	"github.com/agentx-app/chatsync/internal/models"
)

// LoadSession makes the given session active and hydrates its messages.
// Re-entrant calls for the already-active session are no-ops, so at most one
// engine-issued fetch is outstanding for a session's initial load. Local rows
// are projected immediately; when online and the session has a server id, the
// full history is fetched and synced rows are replaced with the server's
// truth. Unsynced in-flight rows are never touched.
func (e *Engine) LoadSession(ctx context.Context, sessionID models.SessionID) error {
	e.mu.Lock()
	if e.activeSession == sessionID && e.hydration != HydrationIdle {
		e.mu.Unlock()
		return nil
	}
	e.activeSession = sessionID
	e.hydration = HydrationLoading
	e.messages = nil
	e.mu.Unlock()

	// The loading flag clears on every path out, success or failure.
	defer func() {
		e.mu.Lock()
		if e.activeSession == sessionID {
			e.hydration = HydrationLoaded
		}
		e.mu.Unlock()
	}()

	local, err := e.store.ListSessionMessages(sessionID)
	if err != nil {
		return fmt.Errorf("read local messages: %w", err)
	}
	e.setMessages(sessionID, local)

	hydrated := false
	if sessionID.IsRemote() && e.Online() {
		records, err := e.gw.ListMessages(ctx, int64(sessionID))
		if err != nil {
			log.Debugf("history fetch for session %d failed, staying on local mirror: %v", sessionID, err)
		} else {
			if err := e.replaceSyncedHistory(sessionID, records); err != nil {
				return fmt.Errorf("hydrate session %d: %w", sessionID, err)
			}
			hydrated = true
		}
	}

	final, err := e.store.ListSessionMessages(sessionID)
	if err != nil {
		return fmt.Errorf("read hydrated messages: %w", err)
	}
	if len(final) == 0 {
		final = []models.Message{welcomeMessage(e.profession)}
	}
	e.setMessages(sessionID, final)

	e.tel.TrackSessionLoaded(len(final), hydrated)
	return nil
}

// replaceSyncedHistory swaps the session's acknowledged rows for the server's
// history in one transaction. Each backend record covers a full exchange and
// lands as two rows, one per turn.
func (e *Engine) replaceSyncedHistory(sessionID models.SessionID, records []gateway.RemoteMessage) error {
	return e.store.Transaction(func(tx *db.DB) error {
		if err := tx.DeleteSyncedMessages(sessionID); err != nil {
			return err
		}
		// Timestamps are bumped to stay strictly increasing in record order,
		// so exchanges never interleave under the ascending sort even when
		// the backend reports identical timestamps for adjacent records.
		var prev time.Time
		for _, rec := range records {
			ts := parseTimestamp(rec.Timestamp)
			if !ts.After(prev) {
				ts = prev.Add(time.Millisecond)
			}

			user := models.Message{
				ID:        models.UserTurnID(rec.ID),
				SessionID: sessionID,
				Content:   rec.UserMessage,
				Type:      models.MessageUser,
				Status:    models.StatusSent,
				IsSynced:  true,
				Timestamp: ts,
			}
			if err := tx.SaveMessage(&user); err != nil {
				return err
			}

			// The assistant turn shares the record's timestamp; nudging it
			// forward keeps it after its user turn under ascending sort.
			assistant := models.Message{
				ID:        models.AssistantTurnID(rec.ID),
				SessionID: sessionID,
				Content:   rec.AssistantResponse,
				Type:      models.MessageAssistant,
				Status:    models.StatusSent,
				IsSynced:  true,
				Metadata:  string(rec.Metadata),
				Timestamp: ts.Add(time.Millisecond),
			}
			if err := tx.SaveMessage(&assistant); err != nil {
				return err
			}
			prev = assistant.Timestamp
		}
		return nil
	})
}
