package telemetry

// Event names sent to PostHog.
const (
	EventAppStarted       = "app_started"
	EventAppExited        = "app_exited"
	EventMessageSent      = "message_sent"
	EventMessageQueued    = "message_queued"
	EventSendFailed       = "send_failed"
	EventSessionLoaded    = "session_loaded"
	EventSessionsListed   = "sessions_listed"
	EventQueueDrained     = "queue_drained"
	EventConnectivity     = "connectivity_changed"
	EventCLICommand       = "cli_command_executed"
	EventCLIErrorOccurred = "cli_error_occurred"
)

// TrackAppStarted records process start.
func (c *posthogClient) TrackAppStarted(mode string, sessionCount int) {
	c.Track(EventAppStarted, map[string]interface{}{
		"mode":          mode,
		"session_count": sessionCount,
	})
}

// TrackAppExited records process exit.
func (c *posthogClient) TrackAppExited(mode string, durationMs int64) {
	c.Track(EventAppExited, map[string]interface{}{
		"mode":        mode,
		"duration_ms": durationMs,
	})
}

// TrackMessageSent records a message delivered online.
func (c *posthogClient) TrackMessageSent(newSession bool, durationMs int64) {
	c.Track(EventMessageSent, map[string]interface{}{
		"new_session": newSession,
		"duration_ms": durationMs,
	})
}

// TrackMessageQueued records a message accepted while offline.
func (c *posthogClient) TrackMessageQueued(queueDepth int) {
	c.Track(EventMessageQueued, map[string]interface{}{
		"queue_depth": queueDepth,
	})
}

// TrackSendFailed records an online send that failed.
func (c *posthogClient) TrackSendFailed(errorType string) {
	c.Track(EventSendFailed, map[string]interface{}{
		"error_type": errorType,
	})
}

// TrackSessionLoaded records a session hydration.
func (c *posthogClient) TrackSessionLoaded(messageCount int, hydrated bool) {
	c.Track(EventSessionLoaded, map[string]interface{}{
		"message_count": messageCount,
		"hydrated":      hydrated,
	})
}

// TrackSessionsListed records a session-list refresh.
func (c *posthogClient) TrackSessionsListed(localCount, remoteCount int) {
	c.Track(EventSessionsListed, map[string]interface{}{
		"local_count":  localCount,
		"remote_count": remoteCount,
	})
}

// TrackQueueDrained records a pending-queue drain attempt.
func (c *posthogClient) TrackQueueDrained(replayed, remaining int) {
	c.Track(EventQueueDrained, map[string]interface{}{
		"replayed":  replayed,
		"remaining": remaining,
	})
}

// TrackConnectivityChanged records a reachability transition.
func (c *posthogClient) TrackConnectivityChanged(online bool) {
	c.Track(EventConnectivity, map[string]interface{}{
		"online": online,
	})
}

// TrackCLICommandExecuted records a CLI command run.
func (c *posthogClient) TrackCLICommandExecuted(commandName string, durationMs int64) {
	c.Track(EventCLICommand, map[string]interface{}{
		"command":     commandName,
		"duration_ms": durationMs,
	})
}

// TrackCLIError records a classified CLI error.
func (c *posthogClient) TrackCLIError(commandName, errorType string) {
	c.Track(EventCLIErrorOccurred, map[string]interface{}{
		"command":    commandName,
		"error_type": errorType,
	})
}

// Noop implementations.

func (c *noopClient) TrackAppStarted(mode string, sessionCount int)             {}
func (c *noopClient) TrackAppExited(mode string, durationMs int64)              {}
func (c *noopClient) TrackMessageSent(newSession bool, durationMs int64)        {}
func (c *noopClient) TrackMessageQueued(queueDepth int)                         {}
func (c *noopClient) TrackSendFailed(errorType string)                          {}
func (c *noopClient) TrackSessionLoaded(messageCount int, hydrated bool)        {}
func (c *noopClient) TrackSessionsListed(localCount, remoteCount int)           {}
func (c *noopClient) TrackQueueDrained(replayed, remaining int)                 {}
func (c *noopClient) TrackConnectivityChanged(online bool)                      {}
func (c *noopClient) TrackCLICommandExecuted(commandName string, durationMs int64) {}
func (c *noopClient) TrackCLIError(commandName, errorType string)               {}
