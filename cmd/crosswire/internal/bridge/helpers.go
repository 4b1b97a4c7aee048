package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/tinyland-inc/crosswire/cmd/crosswire/internal"
	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/channels"
	"github.com/tinyland-inc/crosswire/pkg/health"
	"github.com/tinyland-inc/crosswire/pkg/logger"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

func bridgeCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	left := bus.Platform(cfg.Bridge.Left)
	right := bus.Platform(cfg.Bridge.Right)

	eventBus := bus.NewEventBus(left, right)
	engine := relay.NewEngine(eventBus, cfg.EngineOptions())

	manager, err := channels.NewManager(cfg, eventBus, engine.Guard())
	if err != nil {
		return fmt.Errorf("error creating channel manager: %w", err)
	}

	leftCh, ok := manager.GetChannel(left)
	if !ok {
		return fmt.Errorf("no channel bound for %s", left)
	}
	rightCh, ok := manager.GetChannel(right)
	if !ok {
		return fmt.Errorf("no channel bound for %s", right)
	}
	engine.Bind(left, right, rightCh)
	engine.Bind(right, left, leftCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("error starting channels: %w", err)
	}
	fmt.Printf("✓ Channels enabled: %s\n", manager.EnabledChannels())

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
		}
	}()
	fmt.Printf("✓ Health endpoints available at http://%s:%d/health and /ready\n",
		cfg.Gateway.Host, cfg.Gateway.Port)

	go engine.Run(ctx)
	healthServer.SetReady(true)

	logger.InfoCF("bridge", "Bridge started", map[string]any{
		"left":  string(left),
		"right": string(right),
	})
	fmt.Printf("✓ Bridge started: %s <-> %s\n", left, right)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	healthServer.SetReady(false)
	cancel()
	eventBus.Close()
	engine.Stop()
	manager.StopAll(context.Background())
	healthServer.Stop(context.Background())
	fmt.Println("✓ Bridge stopped")

	return nil
}
