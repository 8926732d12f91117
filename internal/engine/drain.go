package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentx-app/chatsync/internal/db"
	"github.com/agentx-app/chatsync/internal/gateway"
	"github.com/agentx-app/chatsync/internal/log"
	"github.com/agentx-app/chatsync/internal/models"
)

// DrainQueue replays the pending-operation queue in strict enqueue order.
// Each successful replay removes its entry and marks the local row synced in
// one transaction, so a crash between the two never loses either side. The
// first gateway failure stops the drain; everything still queued waits for
// the next connectivity transition. Returns the number of replayed entries.
//
// Drains are single-flight: a manual drain and the reconnect-triggered drain
// can fire together, and both replaying the same entries would deliver each
// queued message twice. The second caller returns immediately with zero
// replayed.
func (e *Engine) DrainQueue(ctx context.Context) (int, error) {
	if !e.Online() {
		return 0, nil
	}

	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return 0, nil
	}
	e.draining = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	ops, err := e.store.ListPendingOps()
	if err != nil {
		return 0, fmt.Errorf("read pending queue: %w", err)
	}
	if len(ops) == 0 {
		return 0, nil
	}

	// Local-only sessions adopted during this drain. Later queue entries for
	// the same local session replay against the server-assigned id.
	remapped := make(map[models.SessionID]models.SessionID)

	replayed := 0
	for _, op := range ops {
		if op.Kind != models.OpKindMessage || op.Action != models.OpCreate {
			// Nothing enqueues other shapes; an unknown entry can never
			// replay, so drop it rather than wedge the queue behind it.
			log.Errorf("dropping unreplayable pending op %d (%s/%s)", op.ID, op.Kind, op.Action)
			if err := e.store.DeletePendingOp(op.ID); err != nil {
				return replayed, fmt.Errorf("drop pending op %d: %w", op.ID, err)
			}
			continue
		}

		payload, err := models.DecodeMessageCreatePayload(op.Payload)
		if err != nil {
			log.Errorf("dropping pending op %d with undecodable payload: %v", op.ID, err)
			if err := e.store.DeletePendingOp(op.ID); err != nil {
				return replayed, fmt.Errorf("drop pending op %d: %w", op.ID, err)
			}
			continue
		}

		if serverID, ok := remapped[payload.SessionID]; ok {
			payload.SessionID = serverID
		}

		if err := e.replayMessageCreate(ctx, op.ID, payload, remapped); err != nil {
			e.finishDrain(replayed, remapped)
			return replayed, fmt.Errorf("replay pending op %d: %w", op.ID, err)
		}
		replayed++
	}

	e.finishDrain(replayed, remapped)
	return replayed, nil
}

// replayMessageCreate re-submits one queued send. When the queued message
// opened a conversation offline, the backend's response carries the real
// session id and the local-only session is remapped onto it.
func (e *Engine) replayMessageCreate(ctx context.Context, opID uint, payload models.MessageCreatePayload, remapped map[models.SessionID]models.SessionID) error {
	req := gateway.ProcessRequest{
		Message:   payload.Content,
		UserID:    e.creds.CurrentUserID(),
		Context:   map[string]any{"profession": payload.Profession},
		Timestamp: payload.Timestamp.UTC().Format(time.RFC3339),
	}
	if payload.SessionID.IsRemote() {
		id := int64(payload.SessionID)
		req.SessionID = &id
	}

	resp, err := e.gw.Process(ctx, req)
	if err != nil {
		return err
	}

	sessionID := payload.SessionID
	localID := models.SessionID(0)
	if sessionID.IsLocal() && resp.SessionID > 0 {
		localID = sessionID
		sessionID = models.SessionID(resp.SessionID)
	}

	err = e.store.Transaction(func(tx *db.DB) error {
		if err := tx.DeletePendingOp(opID); err != nil {
			return err
		}
		if err := tx.MarkMessageSynced(payload.MessageID); err != nil {
			return err
		}
		if localID.IsLocal() {
			if err := tx.RemapSession(localID, sessionID); err != nil {
				return err
			}
		}
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
		return tx.SaveMessage(&assistant)
	})
	if err != nil {
		return err
	}

	if localID.IsLocal() {
		remapped[localID] = sessionID
	}
	return nil
}

// finishDrain reconciles the in-memory projection with whatever the drain
// changed: remapped session ids, newly synced rows, appended replies.
func (e *Engine) finishDrain(replayed int, remapped map[models.SessionID]models.SessionID) {
	e.mu.Lock()
	active := e.activeSession
	if serverID, ok := remapped[active]; ok {
		e.activeSession = serverID
		active = serverID
	}
	e.mu.Unlock()

	if err := e.refreshSessionProjection(); err != nil {
		log.Debugf("session projection refresh after drain: %v", err)
	}
	if !active.IsZero() {
		if msgs, err := e.store.ListSessionMessages(active); err == nil {
			e.setMessages(active, msgs)
		}
	}

	if remaining, err := e.store.CountPendingOps(); err == nil {
		e.tel.TrackQueueDrained(replayed, int(remaining))
	}
}
