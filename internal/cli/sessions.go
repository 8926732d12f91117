package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionsShowStats bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List chat sessions",
	Long: `List all chat sessions, newest first.

When online, the list is refreshed from the backend before printing; offline,
the local mirror is shown as-is. Sessions created offline appear with negative
ids until their first message has been delivered.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsShowStats, "stats", false, "show local mirror statistics")
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return trackCLIError("sessions", err)
	}
	defer a.close()

	sessions, err := a.engine.ListSessions(ctx)
	if err != nil {
		return trackCLIError("sessions", fmt.Errorf("list sessions: %w", err))
	}

	printStatus(a.engine.Snapshot())
	fmt.Printf("SESSIONS (%d)\n", len(sessions))
	fmt.Println("──────────────────────────────────────────────────")
	printSessionList(sessions)

	if !sessionsShowStats {
		return nil
	}

	stats, err := a.store.GetStats()
	if err != nil {
		return trackCLIError("sessions", fmt.Errorf("read stats: %w", err))
	}

	fmt.Println()
	fmt.Println("LOCAL MIRROR")
	fmt.Println("──────────────────────────────────────────────────")
	fmt.Printf("  Sessions:        %d\n", stats.TotalSessions)
	fmt.Printf("  Messages:        %d\n", stats.TotalMessages)
	fmt.Printf("  Unsynced rows:   %d\n", stats.UnsyncedRows)
	fmt.Printf("  Pending replays: %d\n", stats.PendingOps)
	fmt.Printf("  Database size:   %s\n", formatBytes(stats.DBSizeBytes))
	return nil
}

// formatTimeSince formats a duration since a time in a human-readable way.
func formatTimeSince(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
