package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/rbright/ueagent/internal/agent"
	"github.com/rbright/ueagent/internal/config"
	"github.com/rbright/ueagent/internal/protocol"
	"golang.org/x/sync/errgroup"
)

// commandEngine runs a local engine agent that publishes the project marker
// and answers IDE requests the way a running editor would.
func (r Runner) commandEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	sim := &engineSimulator{logger: logger}
	server := agent.NewServer(agent.ServerConfig{
		Options: agent.Options{
			Logger:           logger,
			DialTimeout:      cfg.Agent.DialTimeout(),
			HandshakeTimeout: cfg.Agent.HandshakeTimeout(),
		},
		MarkerPath: cfg.MarkerFile(),
	}, sim)
	sim.server = server
	defer func() { _ = server.Close() }()

	addr, err := server.Listen(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "engine agent listening on %s (marker %s)\n", addr, cfg.MarkerFile())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx)
	})
	g.Go(func() error {
		events, unsubscribe := server.Subscribe()
		defer unsubscribe()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-server.Done():
				return nil
			case ev := <-events:
				logger.Info("engine link event", "event", ev.String(), "remote_pid", server.RemotePID())
				fmt.Fprintf(r.Stdout, "ide %s\n", ev)
			}
		}
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// engineSimulator stands in for the editor: it acknowledges requests with
// the notifications a real editor would send back.
type engineSimulator struct {
	logger *slog.Logger
	server *agent.Server

	mu  sync.Mutex
	pie bool
}

func (e *engineSimulator) HotReload() {
	e.logger.Info("simulated hot reload")
	e.server.Notify(protocol.HotReloaded{Success: true})
}

func (e *engineSimulator) EndPIE(simulating bool) {
	e.mu.Lock()
	running := e.pie
	e.pie = false
	e.mu.Unlock()
	if !running {
		e.logger.Info("end play ignored: no play session")
		return
	}
	e.server.Notify(protocol.EndPIE{Simulating: simulating})
}

func (e *engineSimulator) BeginLocalPlay(mobile bool, args []string) {
	e.logger.Info("simulated standalone play", "mobile", mobile, "args", args)
	e.mu.Lock()
	e.pie = true
	e.mu.Unlock()
	e.server.Notify(protocol.BeginPIE{})
	e.server.Notify(protocol.LocalPlayStarted{PID: os.Getpid()})
}
