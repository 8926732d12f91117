package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakeProber returns a scripted reachability state.
type fakeProber struct {
	online atomic.Bool
}

func (p *fakeProber) Probe(ctx context.Context) bool {
	return p.online.Load()
}

func TestMonitor_InitialStateOffline(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Hour)

	if m.Online() {
		t.Error("monitor should report offline before the first probe")
	}
}

func TestMonitor_ProbedAfterFirstObservation(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Hour)

	if m.Probed() {
		t.Error("monitor should not report probed before any observation")
	}
	m.Set(false)
	if !m.Probed() {
		t.Error("monitor should report probed after an observation, even offline")
	}
}

func TestMonitor_SetNotifiesTransitions(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Hour)

	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	m.Set(true)
	select {
	case online := <-ch:
		if !online {
			t.Error("expected online notification")
		}
	case <-time.After(time.Second):
		t.Fatal("no notification for offline -> online")
	}

	m.Set(false)
	select {
	case online := <-ch:
		if online {
			t.Error("expected offline notification")
		}
	case <-time.After(time.Second):
		t.Fatal("no notification for online -> offline")
	}
}

func TestMonitor_DeduplicatesConsecutiveStates(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Hour)

	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	m.Set(true)
	m.Set(true)
	m.Set(true)

	<-ch // the single transition
	select {
	case <-ch:
		t.Error("duplicate consecutive state was notified")
	default:
	}
}

func TestMonitor_FirstProbeCountsAsTransition(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Hour)

	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	// First observation is offline; the unknown -> offline transition
	// must still be announced.
	m.Set(false)
	select {
	case online := <-ch:
		if online {
			t.Error("expected offline")
		}
	case <-time.After(time.Second):
		t.Fatal("unknown -> offline transition was not notified")
	}
}

func TestMonitor_UnsubscribeClosesChannel(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Hour)

	id, ch := m.Subscribe()
	m.Unsubscribe(id)

	// The closed channel ends any range loop; no notification sneaks in.
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel received a notification")
	}

	m.Set(true) // must not panic on the removed subscription
}

func TestMonitor_UnsubscribeEndsRangeLoop(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Hour)

	id, ch := m.Subscribe()

	finished := make(chan struct{})
	go func() {
		for range ch {
		}
		close(finished)
	}()

	m.Set(true)
	m.Unsubscribe(id)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("consumer goroutine did not terminate after Unsubscribe")
	}
}

func TestMonitor_StartProbesImmediately(t *testing.T) {
	p := &fakeProber{}
	p.online.Store(true)
	m := NewMonitor(p, time.Hour)

	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for !m.Online() {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not pick up initial probe")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &HTTPProber{URL: srv.URL}
	if !p.Probe(context.Background()) {
		t.Error("reachable server should probe online")
	}

	srv.Close()
	if p.Probe(context.Background()) {
		t.Error("closed server should probe offline")
	}
}
