// Package engine is the offline-first synchronization core. It owns the
// decision of whether an operation goes to the network or to local storage,
// reconciles the local mirror with backend truth, queues work while offline,
// and replays it when connectivity returns.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/agentx-app/chatsync/internal/auth"
	"github.com/agentx-app/chatsync/internal/db"
	"github.com/agentx-app/chatsync/internal/gateway"
	"github.com/agentx-app/chatsync/internal/log"
	"github.com/agentx-app/chatsync/internal/models"
	"github.com/agentx-app/chatsync/internal/telemetry"
)

// HydrationState is the per-session load lifecycle.
type HydrationState string

// Hydration states.
const (
	HydrationIdle    HydrationState = "idle"
	HydrationLoading HydrationState = "loading"
	HydrationLoaded  HydrationState = "loaded"
)

// ConnectivitySource is the reachability signal the engine consumes.
// *connectivity.Monitor satisfies it; tests substitute a fake.
type ConnectivitySource interface {
	Online() bool
	Subscribe() (int, <-chan bool)
	Unsubscribe(id int)
}

// Engine orchestrates reads and writes across the local store, the
// connectivity monitor, and the remote gateway.
type Engine struct {
	store *db.DB
	gw    gateway.Client
	conn  ConnectivitySource
	creds auth.CredentialProvider
	tel   telemetry.Client

	profession string

	mu            sync.Mutex
	activeSession models.SessionID
	hydration     HydrationState
	sessions      []models.SessionSummary
	messages      []models.Message
	awaitingReply bool
	draining      bool

	watching bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Options configures an Engine.
type Options struct {
	Store        *db.DB
	Gateway      gateway.Client
	Connectivity ConnectivitySource
	Creds        auth.CredentialProvider
	Telemetry    telemetry.Client
	Profession   string
}

// New creates an engine. All collaborators are injected; the engine holds no
// ambient singletons.
func New(opts Options) *Engine {
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.New(nil)
	}
	return &Engine{
		store:      opts.Store,
		gw:         opts.Gateway,
		conn:       opts.Connectivity,
		creds:      opts.Creds,
		tel:        tel,
		profession: opts.Profession,
		hydration:  HydrationIdle,
	}
}

// Snapshot is the engine's output contract for presentation: an ordered
// session list, an ordered message list for the active session, and the
// flags the chat surface renders from.
type Snapshot struct {
	Sessions      []models.SessionSummary
	Messages      []models.Message
	ActiveSession models.SessionID
	Hydration     HydrationState
	Online        bool
	AwaitingReply bool
}

// Snapshot returns a copy of the current projection.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		ActiveSession: e.activeSession,
		Hydration:     e.hydration,
		Online:        e.online(),
		AwaitingReply: e.awaitingReply,
	}
	snap.Sessions = append(snap.Sessions, e.sessions...)
	snap.Messages = append(snap.Messages, e.messages...)
	return snap
}

// Online reports whether the online path is currently usable: the backend is
// reachable and a credential is present. An absent token silently forces the
// offline path.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online()
}

func (e *Engine) online() bool {
	if e.conn == nil || !e.conn.Online() {
		return false
	}
	if e.creds == nil {
		return false
	}
	_, ok := e.creds.CurrentIDToken()
	return ok
}

// NewChat resets the active session so the next send starts a fresh
// conversation. The projection shows a welcome notice until then.
func (e *Engine) NewChat() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.activeSession = 0
	e.hydration = HydrationIdle
	e.messages = []models.Message{welcomeMessage(e.profession)}
}

// Start subscribes to connectivity transitions. Each transition to online
// triggers a session-list refresh followed by a pending-queue drain.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.watching || e.conn == nil {
		e.mu.Unlock()
		return
	}
	e.watching = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.mu.Unlock()

	id, ch := e.conn.Subscribe()

	go func() {
		defer func() {
			e.conn.Unsubscribe(id)
			e.mu.Lock()
			e.watching = false
			e.mu.Unlock()
			close(e.done)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case online := <-ch:
				e.tel.TrackConnectivityChanged(online)
				if !online {
					continue
				}
				if _, err := e.ListSessions(ctx); err != nil {
					log.Debugf("session refresh after reconnect: %v", err)
				}
				if _, err := e.DrainQueue(ctx); err != nil {
					log.Debugf("queue drain after reconnect: %v", err)
				}
			}
		}
	}()
}

// Stop unsubscribes from connectivity transitions and waits for the watcher
// to exit. In-flight sends are not aborted.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.watching {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done
}

// setMessages replaces the message projection if the session is still active.
// Loads and sends suspend on storage and network, so the active session may
// have changed underneath a slow operation.
func (e *Engine) setMessages(sessionID models.SessionID, msgs []models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeSession == sessionID {
		e.messages = msgs
	}
}

// refreshSessionProjection re-reads the session list from the local store.
func (e *Engine) refreshSessionProjection() error {
	summaries, err := e.readSessionSummaries()
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.sessions = summaries
	e.mu.Unlock()
	return nil
}

func (e *Engine) readSessionSummaries() ([]models.SessionSummary, error) {
	sessions, err := e.store.ListSessions()
	if err != nil {
		return nil, err
	}
	summaries := make([]models.SessionSummary, 0, len(sessions))
	for i := range sessions {
		summaries = append(summaries, sessions[i].Summary())
	}
	return summaries, nil
}

// parseTimestamp parses the backend's timestamp strings. A value that parses
// under no known layout defaults to now rather than failing the sort; this is
// a documented approximation, not silent data loss.
func parseTimestamp(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Now()
}
