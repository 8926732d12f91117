// Package cli provides the command-line interface for chatsync.
package cli

import (
	"context"
	"strings"
	"time"

	"github.com/agentx-app/chatsync/internal/telemetry"
	"github.com/agentx-app/chatsync/pkg/version"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var telemetryClient telemetry.Client

var commandStartTime time.Time

var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "Offline-first chat client for the Agent X backend",
	Long: `Offline-first chat client for the Agent X backend.

Conversations are mirrored to a local SQLite database, so chatting works with
or without connectivity. Messages written while offline are queued durably and
replayed automatically when the backend becomes reachable again.

Run without arguments to start an interactive chat.

Telemetry:
  Telemetry is enabled by default, always anonymous, and will never track
  message content, personal information, or IP addresses.

  Opt-out with:
  	CHATSYNC_TELEMETRY_TRACKING_ENABLED=false`,
	SilenceUsage: true,
	RunE:         runChat,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commandStartTime = time.Now()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() != "chatsync" {
			durationMs := time.Since(commandStartTime).Milliseconds()
			telemetryClient.TrackCLICommandExecuted(cmd.Name(), durationMs)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(drainCmd)
}

// Execute runs the CLI with fang enhancements.
func Execute(ctx context.Context, tc telemetry.Client) error {
	if tc == nil {
		tc = telemetry.New(nil)
	}
	telemetryClient = tc

	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(version.Short()),
		fang.WithCommit(version.Commit),
	)

	if rootCmd.CalledAs() != "" && rootCmd.CalledAs() != "chatsync" {
		durationMs := time.Since(commandStartTime).Milliseconds()
		telemetryClient.TrackAppExited("cli", durationMs)
	}

	return err
}

// trackCLIError wraps an error with telemetry tracking.
// Call this before returning errors from CLI commands.
func trackCLIError(cmdName string, err error) error {
	if err == nil {
		return nil
	}
	errorType := classifyError(err)
	telemetryClient.TrackCLIError(cmdName, errorType)
	return err
}

// classifyError determines the error type for telemetry.
func classifyError(err error) string {
	errStr := err.Error()
	switch {
	case containsAny(errStr, "config", "configuration"):
		return "config_error"
	case containsAny(errStr, "database", "db"):
		return "database_error"
	case containsAny(errStr, "network", "timeout", "connection"):
		return "network_error"
	case containsAny(errStr, "authenticated", "credential", "token"):
		return "auth_error"
	case containsAny(errStr, "not found", "does not exist"):
		return "not_found_error"
	case containsAny(errStr, "invalid", "parse", "format"):
		return "validation_error"
	default:
		return "unknown_error"
	}
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
