package engine

import (
	"context"
	"fmt"

	"github.com/agentx-app/chatsync/internal/log"
	"github.com/agentx-app/chatsync/internal/models"
)

// ListSessions produces the merged session list, sorted by creation time
// descending. The local mirror is read first and is authoritative while
// offline; when online, the backend's list is upserted into the mirror and
// the merged result re-read. A gateway failure is never surfaced to the
// caller, the local projection simply stands.
func (e *Engine) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	local, err := e.readSessionSummaries()
	if err != nil {
		return nil, fmt.Errorf("read local sessions: %w", err)
	}

	if !e.Online() {
		e.mu.Lock()
		e.sessions = local
		e.mu.Unlock()
		return local, nil
	}

	remote, err := e.gw.ListSessions(ctx)
	if err != nil {
		log.Debugf("session list fetch failed, staying on local mirror: %v", err)
		e.mu.Lock()
		e.sessions = local
		e.mu.Unlock()
		return local, nil
	}

	for _, rs := range remote {
		session := models.Session{
			ID:        models.SessionID(rs.ID),
			Title:     rs.Title,
			CreatedAt: parseTimestamp(rs.CreatedAt),
		}
		if err := e.store.UpsertSession(&session); err != nil {
			return nil, fmt.Errorf("merge session %d: %w", rs.ID, err)
		}
	}

	merged, err := e.readSessionSummaries()
	if err != nil {
		return nil, fmt.Errorf("read merged sessions: %w", err)
	}

	e.mu.Lock()
	e.sessions = merged
	e.mu.Unlock()

	e.tel.TrackSessionsListed(len(local), len(remote))
	return merged, nil
}
