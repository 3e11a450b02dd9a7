// Package session owns the IDE daemon lifecycle: it follows agent events and
// serves control commands against the editor link.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/ueagent/internal/agent"
	"github.com/rbright/ueagent/internal/ipc"
)

const defaultRequestTimeout = 3 * time.Minute

// Link is the editor-facing subset of agent.Client.
type Link interface {
	State() agent.State
	Subscribe() (<-chan agent.Event, func())
	RemotePID() int
	HotReload() bool
	EndPIE() bool
	BeginLocalPlay(ctx context.Context, mobile bool, args []string) <-chan error
	FocusEditor(ctx context.Context) <-chan error
	Watch(ctx context.Context) error
}

// HealthReporter publishes editor connectivity.
type HealthReporter interface {
	SetConnected(bool)
}

// Options wires optional collaborators into a Controller.
type Options struct {
	Logger         *slog.Logger
	Indicator      Indicator
	Health         HealthReporter
	RequestTimeout time.Duration
}

// Controller drives indicator and health output from agent events and
// implements the daemon's control commands.
type Controller struct {
	logger         *slog.Logger
	link           Link
	host           *Host
	indicator      Indicator
	health         HealthReporter
	requestTimeout time.Duration
}

// NewController constructs a controller with safe default fallbacks.
func NewController(link Link, host *Host, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	indicator := opts.Indicator
	if indicator == nil {
		indicator = noopIndicator{}
	}
	if host == nil {
		host = NewHost(logger, indicator, nil)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Controller{
		logger:         logger,
		link:           link,
		host:           host,
		indicator:      indicator,
		health:         opts.Health,
		requestTimeout: timeout,
	}
}

// Run follows the editor marker until ctx is cancelled or watching fails.
func (c *Controller) Run(ctx context.Context) error {
	events, unsubscribe := c.link.Subscribe()
	defer unsubscribe()

	c.setHealth(false)
	defer c.setHealth(false)

	watchErr := make(chan error, 1)
	go func() { watchErr <- c.link.Watch(ctx) }()

	defer func() {
		hideCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.indicator.Hide(hideCtx)
	}()

	for {
		select {
		case err := <-watchErr:
			if err != nil {
				return fmt.Errorf("watch editor marker: %w", err)
			}
			return nil
		case ev := <-events:
			c.handleEvent(ev)
		}
	}
}

func (c *Controller) handleEvent(ev agent.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), indicatorTimeout)
	defer cancel()

	switch ev {
	case agent.EventConnected:
		c.logger.Info("editor connected", "remote_pid", c.link.RemotePID())
		c.indicator.ShowConnected(ctx)
		c.setHealth(true)
	case agent.EventDisconnected:
		c.logger.Info("editor disconnected")
		c.host.reset()
		c.indicator.ShowDisconnected(ctx)
		c.setHealth(false)
	default:
		c.logger.Warn("unexpected agent event", "event", ev.String())
	}
}

func (c *Controller) setHealth(connected bool) {
	if c.health != nil {
		c.health.SetConnected(connected)
	}
}

func (c *Controller) state() string {
	if c.link.State() == agent.StateConnected {
		return ipc.StateConnected
	}
	return ipc.StateDisconnected
}

// Handle serves control socket commands.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Succeed(c.state(), c.pieStatus())
	case ipc.CommandHotReload:
		return c.fire("hot reload requested", c.link.HotReload)
	case ipc.CommandEndPIE:
		return c.fire("end play requested", c.link.EndPIE)
	case ipc.CommandPlay:
		mobile, args := parsePlayArgs(req.Args)
		return c.await(ctx, "play requested", func(ctx context.Context) <-chan error {
			return c.link.BeginLocalPlay(ctx, mobile, args)
		})
	case ipc.CommandFocus:
		return c.await(ctx, "editor focused", c.link.FocusEditor)
	default:
		return ipc.Fail(c.state(), "unknown command: %s", req.Command)
	}
}

func (c *Controller) pieStatus() string {
	pie := c.host.PIE()
	switch {
	case pie.Running && pie.Simulating:
		return "pie simulating"
	case pie.Running:
		return "pie running"
	default:
		return "pie stopped"
	}
}

// fire sends a one-way request on the current link.
func (c *Controller) fire(message string, send func() bool) ipc.Response {
	if !send() {
		return ipc.Fail(c.state(), "editor not connected")
	}
	return ipc.Succeed(c.state(), message)
}

// await runs a connect-and-send request bounded by the request timeout.
func (c *Controller) await(ctx context.Context, message string, start func(context.Context) <-chan error) ipc.Response {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	if err := <-start(reqCtx); err != nil {
		c.logger.Warn("editor request failed", "request", message, "error", err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return ipc.Fail(c.state(), "timed out after %s", c.requestTimeout)
		}
		return ipc.Fail(c.state(), "%s", err.Error())
	}
	return ipc.Succeed(c.state(), message)
}

// parsePlayArgs splits leading --mobile flags from game arguments.
func parsePlayArgs(raw []string) (bool, []string) {
	mobile := false
	i := 0
	for ; i < len(raw); i++ {
		if raw[i] == "--" {
			i++
			break
		}
		if raw[i] != "--mobile" {
			break
		}
		mobile = true
	}
	return mobile, append([]string(nil), raw[i:]...)
}
