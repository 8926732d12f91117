// Package telemetry provides anonymous usage tracking via PostHog.
package telemetry

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

// PostHogAPIKey is set at compile time via ldflags.
var PostHogAPIKey string

// TrackingIDProvider is an interface for getting tracking IDs.
// This allows for testing without a real database.
type TrackingIDProvider interface {
	GetOrCreateTrackingID() string
}

// Client interface for telemetry operations.
type Client interface {
	Track(event string, properties map[string]interface{})
	Close()
	GetTrackingID() string

	// Lifecycle events
	TrackAppStarted(mode string, sessionCount int)
	TrackAppExited(mode string, durationMs int64)

	// Sync events
	TrackMessageSent(newSession bool, durationMs int64)
	TrackMessageQueued(queueDepth int)
	TrackSendFailed(errorType string)
	TrackSessionLoaded(messageCount int, hydrated bool)
	TrackSessionsListed(localCount, remoteCount int)
	TrackQueueDrained(replayed, remaining int)
	TrackConnectivityChanged(online bool)

	// CLI events
	TrackCLICommandExecuted(commandName string, durationMs int64)
	TrackCLIError(commandName, errorType string)
}

// posthogClient wraps the PostHog SDK.
type posthogClient struct {
	client     posthog.Client
	trackingID string
	mu         sync.Mutex
}

// noopClient does nothing (for disabled telemetry).
type noopClient struct{}

// IsEnabled returns true if telemetry is enabled.
// Telemetry is opt-out: enabled by default unless CHATSYNC_TELEMETRY_TRACKING_ENABLED=false.
func IsEnabled() bool {
	return os.Getenv("CHATSYNC_TELEMETRY_TRACKING_ENABLED") != "false" && PostHogAPIKey != ""
}

// New creates a new telemetry client with a persistent tracking ID from the database.
// If provider is nil, a new UUID is generated per session (fallback behavior).
// Telemetry is opt-out: enabled by default unless CHATSYNC_TELEMETRY_TRACKING_ENABLED=false.
func New(provider TrackingIDProvider) Client {
	if !IsEnabled() {
		return &noopClient{}
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:  "https://us.i.posthog.com",
		BatchSize: 250,
		Interval:  5 * time.Second,
	})
	if err != nil {
		return &noopClient{}
	}

	var trackingID string
	if provider != nil {
		trackingID = provider.GetOrCreateTrackingID()
	} else {
		trackingID = uuid.New().String()
	}

	return &posthogClient{
		client:     client,
		trackingID: trackingID,
	}
}

// Track sends an event to PostHog.
func (c *posthogClient) Track(event string, properties map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	props := posthog.NewProperties()
	props.Set("$process_person_profile", true)
	props.Set("$geoip_disable", true)

	for k, v := range properties {
		props.Set(k, v)
	}

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.trackingID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes remaining events and closes the client.
func (c *posthogClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.client.Close()
}

// GetTrackingID returns the anonymous tracking ID for this install.
func (c *posthogClient) GetTrackingID() string {
	return c.trackingID
}

// Track is a no-op for disabled telemetry.
func (c *noopClient) Track(event string, properties map[string]interface{}) {}

// Close is a no-op for disabled telemetry.
func (c *noopClient) Close() {}

// GetTrackingID returns empty string for disabled telemetry.
func (c *noopClient) GetTrackingID() string {
	return ""
}
