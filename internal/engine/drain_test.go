package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx-app/chatsync/internal/gateway"
	"github.com/agentx-app/chatsync/internal/models"
)

func TestDrainQueue_OfflineIsNoop(t *testing.T) {
	eng, _, gw, _ := testEngine(t, false)

	replayed, err := eng.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, replayed)

	_, _, process := gw.calls()
	assert.Zero(t, process)
}

func TestDrainQueue_ReplaysAndRemapsLocalSession(t *testing.T) {
	eng, store, gw, conn := testEngine(t, false)

	msg, err := eng.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	localID := msg.SessionID
	require.True(t, localID.IsLocal())

	conn.set(true)
	gw.processFn = func(req gateway.ProcessRequest) (*gateway.ProcessResponse, error) {
		assert.Nil(t, req.SessionID, "local-only sessions replay without a session id")
		assert.Equal(t, "hello", req.Message)
		return &gateway.ProcessResponse{SessionID: 42, Response: "hi"}, nil
	}

	replayed, err := eng.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	// Queue is empty and the replayed row is acknowledged.
	depth, err := store.CountPendingOps()
	require.NoError(t, err)
	assert.Zero(t, depth)

	stored, err := store.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsSynced)
	assert.Equal(t, models.SessionID(42), stored.SessionID)

	// The local-only session moved onto the server id.
	gone, err := store.GetSession(localID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	adopted, err := store.GetSession(42)
	require.NoError(t, err)
	require.NotNil(t, adopted)

	// The assistant reply landed under the adopted session.
	msgs, err := store.ListSessionMessages(42)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.MessageAssistant, msgs[1].Type)
	assert.Equal(t, "hi", msgs[1].Content)

	snap := eng.Snapshot()
	assert.Equal(t, models.SessionID(42), snap.ActiveSession)
}

func TestDrainQueue_SharedLocalSessionRemapsOnce(t *testing.T) {
	eng, store, gw, conn := testEngine(t, false)

	first, err := eng.SendMessage(context.Background(), "first")
	require.NoError(t, err)
	second, err := eng.SendMessage(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)

	conn.set(true)
	var sawSessionIDs []*int64
	gw.processFn = func(req gateway.ProcessRequest) (*gateway.ProcessResponse, error) {
		sawSessionIDs = append(sawSessionIDs, req.SessionID)
		return &gateway.ProcessResponse{SessionID: 42, Response: "ok"}, nil
	}

	replayed, err := eng.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)

	// First replay opens the conversation; the second carries the id the
	// backend just assigned.
	require.Len(t, sawSessionIDs, 2)
	assert.Nil(t, sawSessionIDs[0])
	require.NotNil(t, sawSessionIDs[1])
	assert.EqualValues(t, 42, *sawSessionIDs[1])

	sessions, err := store.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionID(42), sessions[0].ID)
}

func TestDrainQueue_SingleFlight(t *testing.T) {
	eng, store, gw, conn := testEngine(t, false)

	_, err := eng.SendMessage(context.Background(), "hello")
	require.NoError(t, err)

	conn.set(true)
	gw.processFn = func(req gateway.ProcessRequest) (*gateway.ProcessResponse, error) {
		// Slow enough that a second drain arrives mid-replay.
		time.Sleep(200 * time.Millisecond)
		return &gateway.ProcessResponse{SessionID: 42, Response: "hi"}, nil
	}

	var wg sync.WaitGroup
	replayed := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := eng.DrainQueue(context.Background())
			assert.NoError(t, err)
			replayed[i] = n
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, replayed[0]+replayed[1], "exactly one drain replays the entry")

	_, _, process := gw.calls()
	assert.Equal(t, 1, process, "a queued op must reach the backend exactly once")

	msgs, err := store.ListSessionMessages(42)
	require.NoError(t, err)
	assistants := 0
	for _, m := range msgs {
		if m.Type == models.MessageAssistant {
			assistants++
		}
	}
	assert.Equal(t, 1, assistants, "one exchange persists one assistant row")
}

func TestDrainQueue_StopsAtFirstFailure(t *testing.T) {
	eng, store, gw, conn := testEngine(t, false)

	_, err := eng.SendMessage(context.Background(), "first")
	require.NoError(t, err)
	_, err = eng.SendMessage(context.Background(), "second")
	require.NoError(t, err)

	conn.set(true)
	gw.processFn = func(req gateway.ProcessRequest) (*gateway.ProcessResponse, error) {
		return nil, errors.New("connection reset")
	}

	replayed, err := eng.DrainQueue(context.Background())
	require.Error(t, err)
	assert.Zero(t, replayed)

	// Both entries wait for the next transition, in order.
	ops, err := store.ListPendingOps()
	require.NoError(t, err)
	require.Len(t, ops, 2)
}

func TestDrainQueue_DropsUndecodablePayload(t *testing.T) {
	eng, store, _, conn := testEngine(t, false)

	require.NoError(t, store.EnqueuePendingOp(&models.PendingOp{
		Kind: models.OpKindMessage, Action: models.OpCreate,
		TargetID: "m-1", Payload: "{not json",
	}))

	conn.set(true)
	replayed, err := eng.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, replayed)

	depth, err := store.CountPendingOps()
	require.NoError(t, err)
	assert.Zero(t, depth, "a payload that can never replay must not wedge the queue")
}
