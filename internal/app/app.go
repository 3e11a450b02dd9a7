// Package app dispatches parsed CLI commands to the daemon, the engine
// simulator, or the running daemon's control socket.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/ueagent/internal/cli"
	"github.com/rbright/ueagent/internal/config"
	"github.com/rbright/ueagent/internal/doctor"
	"github.com/rbright/ueagent/internal/ipc"
	"github.com/rbright/ueagent/internal/logging"
	"github.com/rbright/ueagent/internal/version"
)

const (
	binaryName     = "ueagent"
	forwardTimeout = 220 * time.Millisecond
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(string(parsed.Command))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath, config.Overrides{ProjectDir: parsed.ProjectDir})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"project", cfgLoaded.Config.ProjectDir,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandWatch:
		return r.commandWatch(ctx, cfgLoaded.Config, logger)
	case cli.CommandEngine:
		return r.commandEngine(ctx, cfgLoaded.Config, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx, cfgLoaded.Config)
	case cli.CommandHotReload, cli.CommandEndPIE:
		return r.forwardOrFail(ctx, cfgLoaded.Config, ipc.Request{Command: string(parsed.Command)}, forwardTimeout)
	case cli.CommandPlay:
		req := ipc.Request{Command: string(parsed.Command), Args: playRequestArgs(parsed.Mobile, parsed.Args)}
		return r.forwardOrFail(ctx, cfgLoaded.Config, req, requestForwardTimeout(cfgLoaded.Config))
	case cli.CommandFocus:
		req := ipc.Request{Command: string(parsed.Command)}
		return r.forwardOrFail(ctx, cfgLoaded.Config, req, requestForwardTimeout(cfgLoaded.Config))
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandStatus(ctx context.Context, cfg config.Config) int {
	socketPath, err := ipc.RuntimeSocketPath(cfg.ProjectDir)
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, forwardTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = ipc.StateDisconnected
	}
	if resp.Message != "" {
		fmt.Fprintf(r.Stdout, "%s (%s)\n", resp.State, resp.Message)
		return 0
	}
	fmt.Fprintln(r.Stdout, resp.State)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, cfg config.Config, req ipc.Request, timeout time.Duration) int {
	socketPath, err := ipc.RuntimeSocketPath(cfg.ProjectDir)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no running %s daemon for %s (start it with `%s watch`)\n", binaryName, cfg.ProjectDir, binaryName)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// playRequestArgs puts play flags ahead of a "--" separator.
func playRequestArgs(mobile bool, args []string) []string {
	out := make([]string, 0, len(args)+2)
	if mobile {
		out = append(out, "--mobile")
	}
	if len(args) > 0 {
		out = append(out, "--")
		out = append(out, args...)
	}
	return out
}

// requestForwardTimeout leaves the daemon room to report its own timeout.
func requestForwardTimeout(cfg config.Config) time.Duration {
	return cfg.Agent.RequestTimeout() + 5*time.Second
}
