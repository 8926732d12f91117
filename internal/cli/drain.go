package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay queued offline messages now",
	Long: `Replay the pending offline queue against the backend immediately.

Normally the queue drains on its own when connectivity returns; this command
forces an attempt, for example right after fixing credentials. Entries replay
in the order they were written and the first failure stops the run, leaving
the rest queued.`,
	RunE: runDrain,
}

func runDrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return trackCLIError("drain", err)
	}
	defer a.close()

	depth, err := a.store.CountPendingOps()
	if err != nil {
		return trackCLIError("drain", fmt.Errorf("read queue: %w", err))
	}
	if depth == 0 {
		fmt.Println("Queue is empty, nothing to replay.")
		return nil
	}

	if !a.engine.Online() {
		printStatus(a.engine.Snapshot())
		return trackCLIError("drain", fmt.Errorf("backend is not reachable, %d entries still queued", depth))
	}

	replayed, err := a.engine.DrainQueue(ctx)
	if err != nil {
		remaining, _ := a.store.CountPendingOps()
		fmt.Printf("Replayed %d of %d, %d still queued.\n", replayed, depth, remaining)
		return trackCLIError("drain", err)
	}

	fmt.Printf("Replayed %d queued message(s).\n", replayed)
	return nil
}
