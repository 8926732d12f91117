package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/agentx-app/chatsync/internal/auth"
	"github.com/agentx-app/chatsync/internal/config"
	"github.com/agentx-app/chatsync/internal/connectivity"
	"github.com/agentx-app/chatsync/internal/db"
	"github.com/agentx-app/chatsync/internal/engine"
	"github.com/agentx-app/chatsync/internal/gateway"
	"github.com/agentx-app/chatsync/internal/log"
)

// app bundles the wired collaborators a command needs. Everything is
// constructed once per invocation and passed by reference; nothing is looked
// up through ambient singletons.
type app struct {
	cfg     *config.Config
	store   *db.DB
	monitor *connectivity.Monitor
	engine  *engine.Engine
}

// newApp loads configuration and wires the store, gateway, connectivity
// monitor, and sync engine together.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	paths := config.GetPaths(cfg)
	if err := log.Init(paths.Logs); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	store, err := db.New(db.DefaultConfig(paths.Database))
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	creds := auth.StaticProvider{
		UserID: cfg.API.UserID,
		Token:  cfg.API.IDToken,
	}

	gw := gateway.NewHTTPClient(gateway.Options{
		BaseURL:   cfg.API.BaseURL,
		Creds:     creds,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
	})

	monitor := connectivity.NewMonitor(
		&connectivity.HTTPProber{URL: cfg.API.BaseURL + "/health"},
		cfg.API.ProbeInterval,
	)

	eng := engine.New(engine.Options{
		Store:        store,
		Gateway:      gw,
		Connectivity: monitor,
		Creds:        creds,
		Telemetry:    telemetryClient,
		Profession:   cfg.Profession,
	})

	monitor.Start(ctx)
	eng.Start(ctx)

	a := &app{cfg: cfg, store: store, monitor: monitor, engine: eng}
	a.waitForProbe(3 * time.Second)
	return a, nil
}

// waitForProbe blocks until the first reachability probe completes, so
// commands don't mistake "not probed yet" for offline. Gives up after the
// timeout and lets the command proceed on the offline path.
func (a *app) waitForProbe(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !a.monitor.Probed() && time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
	}
}

// close tears the app down in reverse construction order.
func (a *app) close() {
	a.engine.Stop()
	a.monitor.Stop()
	_ = a.store.Close()
	_ = log.Close()
}
