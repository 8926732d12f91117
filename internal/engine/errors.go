package engine

import (
	"errors"

	"github.com/agentx-app/chatsync/internal/auth"
	"github.com/agentx-app/chatsync/internal/gateway"
)

// Sentinel errors returned by send operations.
var (
	// ErrEmptyMessage rejects a send whose text is empty after trimming.
	ErrEmptyMessage = errors.New("engine: message text is empty")

	// ErrSendInFlight rejects a send while an assistant response is still
	// pending. The engine is single-flight per active session.
	ErrSendInFlight = errors.New("engine: a send is already in flight")

	// ErrNotRetryable rejects a retry of a message that is not in the
	// failed state.
	ErrNotRetryable = errors.New("engine: message is not awaiting retry")
)

// classifyError buckets a gateway failure for telemetry.
func classifyError(err error) string {
	var statusErr *gateway.StatusError
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return "not_authenticated"
	case errors.As(err, &statusErr):
		return "server_error"
	default:
		return "network_error"
	}
}
