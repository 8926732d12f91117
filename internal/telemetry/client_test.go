package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DisabledByEnvVar(t *testing.T) {
	t.Setenv("CHATSYNC_TELEMETRY_TRACKING_ENABLED", "false")

	client := New(nil)
	_, ok := client.(*noopClient)
	assert.True(t, ok, "Should return noopClient when disabled")
}

func TestNew_DisabledWithoutAPIKey(t *testing.T) {
	originalKey := PostHogAPIKey
	PostHogAPIKey = ""
	defer func() { PostHogAPIKey = originalKey }()

	client := New(nil)
	_, ok := client.(*noopClient)
	assert.True(t, ok, "Should return noopClient without API key")
}

func TestNoopClient_DoesNotPanic(t *testing.T) {
	client := &noopClient{}

	// Should not panic
	client.Track("test_event", map[string]interface{}{"key": "value"})
	client.TrackAppStarted("chat", 2)
	client.TrackAppExited("chat", 5000)
	client.TrackMessageSent(true, 120)
	client.TrackMessageQueued(3)
	client.TrackSendFailed("network_error")
	client.TrackSessionLoaded(10, true)
	client.TrackSessionsListed(4, 5)
	client.TrackQueueDrained(3, 0)
	client.TrackConnectivityChanged(true)
	client.TrackCLICommandExecuted("sessions", 100)
	client.TrackCLIError("chat", "network_error")

	assert.Empty(t, client.GetTrackingID())
}

type fakeTrackingProvider struct{ id string }

func (f fakeTrackingProvider) GetOrCreateTrackingID() string { return f.id }

func TestNew_UsesProviderTrackingID(t *testing.T) {
	t.Setenv("CHATSYNC_TELEMETRY_TRACKING_ENABLED", "true")
	originalKey := PostHogAPIKey
	PostHogAPIKey = "phc_test"
	defer func() { PostHogAPIKey = originalKey }()

	client := New(fakeTrackingProvider{id: "stable-id"})
	defer client.Close()

	assert.Equal(t, "stable-id", client.GetTrackingID())
}
