// Chatsync - offline-first chat client for the Agent X backend.
//
// Conversations are mirrored into a local SQLite database so chatting keeps
// working without connectivity; queued messages replay automatically once the
// backend is reachable again.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentx-app/chatsync/internal/cli"
	"github.com/agentx-app/chatsync/internal/config"
	"github.com/agentx-app/chatsync/internal/db"
	"github.com/agentx-app/chatsync/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Load config and open database for persistent tracking ID
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	paths := config.GetPaths(cfg)
	database, err := db.New(db.DefaultConfig(paths.Database))
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		_ = database.Close()
	}()

	// Use persistent tracking ID from database
	telemetryClient := telemetry.New(database)
	defer telemetryClient.Close()

	if err := cli.Execute(ctx, telemetryClient); err != nil {
		os.Exit(1)
	}
}
