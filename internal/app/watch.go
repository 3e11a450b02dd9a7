package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rbright/ueagent/internal/agent"
	"github.com/rbright/ueagent/internal/config"
	"github.com/rbright/ueagent/internal/health"
	"github.com/rbright/ueagent/internal/hypr"
	"github.com/rbright/ueagent/internal/indicator"
	"github.com/rbright/ueagent/internal/ipc"
	"github.com/rbright/ueagent/internal/opener"
	"github.com/rbright/ueagent/internal/session"
	"golang.org/x/sync/errgroup"
)

// commandWatch runs the IDE daemon: it owns the control socket, follows the
// editor marker, and serves health until ctx is cancelled.
func (r Runner) commandWatch(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath(cfg.ProjectDir)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{PingTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	notifier := indicator.NewNotifier(cfg.Indicator, logger)
	host := session.NewHost(logger, notifier, opener.New(cfg, logger))
	client := agent.NewClient(agent.ClientConfig{
		Options:    agentOptions(cfg, logger, editorLauncher(cfg, logger)),
		MarkerPath: cfg.MarkerFile(),
	}, host)
	defer client.Dispose()

	var (
		reporter     *health.Reporter
		healthListen net.Listener
		healthSink   session.HealthReporter
	)
	if addr := strings.TrimSpace(cfg.Health.Addr); addr != "" {
		var lc net.ListenConfig
		healthListen, err = lc.Listen(ctx, "tcp", addr)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: listen health %s: %v\n", addr, err)
			return 1
		}
		reporter = health.NewReporter()
		healthSink = reporter
	}

	controller := session.NewController(client, host, session.Options{
		Logger:         logger,
		Indicator:      notifier,
		Health:         healthSink,
		RequestTimeout: cfg.Agent.RequestTimeout(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(gctx, listener, controller)
	})
	if reporter != nil {
		logger.Info("health endpoint listening", "addr", healthListen.Addr().String())
		g.Go(func() error {
			return health.Serve(gctx, healthListen, reporter)
		})
	}
	g.Go(func() error {
		return host.ServeOpens(gctx)
	})
	g.Go(func() error {
		return controller.Run(gctx)
	})

	fmt.Fprintf(r.Stdout, "watching %s\n", client.MarkerPath())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon failed", "error", err.Error())
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("daemon stopped", "connection_attempts", client.Attempts())
	return 0
}

func agentOptions(cfg config.Config, logger *slog.Logger, launcher agent.Launcher) agent.Options {
	opts := agent.Options{
		Logger:           logger,
		Launcher:         launcher,
		SettleDelay:      cfg.Agent.SettleDelay(),
		DialTimeout:      cfg.Agent.DialTimeout(),
		HandshakeTimeout: cfg.Agent.HandshakeTimeout(),
	}
	if cfg.Focus.Enable {
		opts.Focuser = hypr.CLIController{}
	}
	return opts
}

// editorLauncher resolves editor_cmd at launch time so a project file added
// after the daemon started is still found.
func editorLauncher(cfg config.Config, logger *slog.Logger) agent.Launcher {
	return agent.LauncherFunc(func(ctx context.Context) (agent.Process, error) {
		argv, err := cfg.EditorArgv()
		if err != nil {
			return nil, err
		}
		logger.Info("launching editor", "argv", argv)
		return agent.ExecLauncher{Argv: argv, Dir: cfg.ProjectDir, Logger: logger}.Launch(ctx)
	})
}
