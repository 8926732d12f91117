// Package connectivity observes network reachability of the backend and
// notifies subscribers on state transitions.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// DefaultProbeInterval is how often reachability is re-checked.
const DefaultProbeInterval = 10 * time.Second

// Prober answers whether the backend is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes reachability with a HEAD request. Any response at all
// counts as reachable; only transport failures count as offline.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// Probe issues the HEAD request.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Monitor polls a Prober and fans state transitions out to subscribers.
// Until the first probe completes the state is offline; consecutive
// identical probe results never produce duplicate notifications.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu      sync.Mutex
	online  bool
	probed  bool
	subs    map[int]chan bool
	nextSub int

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor polling the given prober.
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		subs:     make(map[int]chan bool),
	}
}

// Start begins polling. Returns immediately; the first probe runs right away
// so consumers aren't stuck at "offline" for a full interval.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.done = make(chan struct{})
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	go m.run(ctx)
}

// Stop cancels polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(m.done)
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	m.Set(m.prober.Probe(ctx))
}

// Set records a new reachability state and notifies subscribers if it is a
// transition. Exposed so hosts with their own reachability signal (or tests)
// can drive the monitor directly.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.probed && m.online == online {
		m.mu.Unlock()
		return
	}
	m.probed = true
	m.online = online

	// Sends are non-blocking, so notifying under the lock is cheap and keeps
	// them ordered against Unsubscribe closing a channel.
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
			// Subscriber is lagging; it will observe the current state on
			// its next read of Online().
		}
	}
	m.mu.Unlock()
}

// Online returns the current reachability state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probed && m.online
}

// Probed reports whether at least one probe has completed. Before that,
// Online reports offline regardless of actual reachability.
func (m *Monitor) Probed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probed
}

// Subscribe registers for transition notifications. The returned id must be
// passed to Unsubscribe when the consumer goes away.
func (m *Monitor) Subscribe() (int, <-chan bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan bool, 8)
	m.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel, so consumers
// ranging over it terminate. Only the subscriber that owns the id may call
// this, and only after it has stopped expecting notifications.
func (m *Monitor) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}
