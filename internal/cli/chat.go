package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/agentx-app/chatsync/internal/engine"
	"github.com/agentx-app/chatsync/internal/models"
)

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with the Agent X backend.

With a session id, the session is opened and its history shown. Without one,
the most recent session is resumed, or a new conversation starts on the first
message. Works offline: messages are queued locally and sent once the backend
is reachable again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00d4aa")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d8d8d8"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888")).Italic(true)
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	onlineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	offlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
)

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return trackCLIError("chat", err)
	}
	defer a.close()

	sessions, err := a.engine.ListSessions(ctx)
	if err != nil {
		return trackCLIError("chat", err)
	}
	telemetryClient.TrackAppStarted("chat", len(sessions))

	switch {
	case len(args) == 1:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return trackCLIError("chat", fmt.Errorf("invalid session id %q", args[0]))
		}
		if err := a.engine.LoadSession(ctx, models.SessionID(id)); err != nil {
			return trackCLIError("chat", err)
		}
	case len(sessions) > 0:
		if err := a.engine.LoadSession(ctx, sessions[0].ID); err != nil {
			return trackCLIError("chat", err)
		}
	default:
		a.engine.NewChat()
	}

	printStatus(a.engine.Snapshot())
	printHistory(a.engine.Snapshot())

	// Announce connectivity transitions as they happen; the engine is already
	// refreshing and draining on its own subscription.
	subID, transitions := a.monitor.Subscribe()
	defer a.monitor.Unsubscribe(subID)
	go func() {
		for online := range transitions {
			if online {
				fmt.Println(onlineStyle.Render("\n● back online — replaying queued messages"))
			} else {
				fmt.Println(offlineStyle.Render("\n● connection lost — messages will be queued"))
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Print(userStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := a.handleCommand(cmd, line)
			if err != nil {
				fmt.Println(failedStyle.Render(err.Error()))
			}
			if quit {
				break
			}
			continue
		}

		before := len(a.engine.Snapshot().Messages)
		if _, err := a.engine.SendMessage(ctx, line); err != nil {
			switch {
			case errors.Is(err, engine.ErrEmptyMessage), errors.Is(err, engine.ErrSendInFlight):
				fmt.Println(noticeStyle.Render(err.Error()))
			default:
				// The message stays in history as failed; /retry resends it.
				fmt.Println(failedStyle.Render("Couldn't send that message. Use /retry to try again."))
			}
			continue
		}
		printNewMessages(a.engine.Snapshot(), before+1)
	}

	telemetryClient.TrackAppExited("chat", 0)
	return nil
}

// handleCommand dispatches a slash command. Returns true when the loop should
// exit.
func (a *app) handleCommand(cmd *cobra.Command, line string) (bool, error) {
	ctx := cmd.Context()
	fields := strings.Fields(line)

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		a.engine.NewChat()
		printHistory(a.engine.Snapshot())
		return false, nil

	case "/sessions":
		sessions, err := a.engine.ListSessions(ctx)
		if err != nil {
			return false, err
		}
		printSessionList(sessions)
		return false, nil

	case "/open":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /open <session-id>")
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("invalid session id %q", fields[1])
		}
		if err := a.engine.LoadSession(ctx, models.SessionID(id)); err != nil {
			return false, err
		}
		printHistory(a.engine.Snapshot())
		return false, nil

	case "/retry":
		failed := lastFailedMessage(a.engine.Snapshot())
		if failed == "" {
			return false, fmt.Errorf("no failed message to retry")
		}
		if err := a.engine.RetryMessage(ctx, failed); err != nil {
			return false, err
		}
		printHistory(a.engine.Snapshot())
		return false, nil

	case "/status":
		printStatus(a.engine.Snapshot())
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /sessions, /open, /new, /retry, /status, /quit)", fields[0])
	}
}

func lastFailedMessage(snap engine.Snapshot) string {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Status == models.StatusFailed {
			return snap.Messages[i].ID
		}
	}
	return ""
}

func printStatus(snap engine.Snapshot) {
	if snap.Online {
		fmt.Println(onlineStyle.Render("● online"))
	} else {
		fmt.Println(offlineStyle.Render("● offline — messages will be queued and sent later"))
	}
}

func printHistory(snap engine.Snapshot) {
	fmt.Println()
	for _, msg := range snap.Messages {
		printMessage(msg)
	}
}

func printNewMessages(snap engine.Snapshot, from int) {
	for i := from; i < len(snap.Messages); i++ {
		printMessage(snap.Messages[i])
	}
}

func printMessage(msg models.Message) {
	switch {
	case engine.IsTransient(msg):
		fmt.Println(noticeStyle.Render(msg.Content))
	case msg.Type == models.MessageUser:
		marker := ""
		if msg.Status == models.StatusFailed {
			marker = failedStyle.Render(" [failed]")
		} else if !msg.IsSynced {
			marker = noticeStyle.Render(" [queued]")
		}
		fmt.Println(userStyle.Render("you: ") + msg.Content + marker)
	default:
		fmt.Println(assistantStyle.Render("assistant: " + msg.Content))
	}
}

func printSessionList(sessions []models.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Println("No sessions yet. Send a message to start one.")
		return
	}
	for _, s := range sessions {
		id := strconv.FormatInt(int64(s.ID), 10)
		marker := ""
		if s.ID.IsLocal() {
			marker = noticeStyle.Render(" (not yet synced)")
		}
		fmt.Printf("  %s  %s (%s)%s\n", id, s.Title, formatTimeSince(s.CreatedAt), marker)
	}
}
