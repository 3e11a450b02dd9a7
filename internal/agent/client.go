package agent

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rbright/ueagent/internal/protocol"
)

// ClientHost receives editor notifications on the IDE side.
type ClientHost interface {
	PIEStarted(simulating bool)
	PIEStopped(simulating bool)
	HotReloaded(success bool)
	LocalPlayStarted(pid int)
	OpenClass(class string)
	OpenFunction(class, function string)
	OpenProperty(class, property string)
	OpenFile(path string, line int)
}

// ClientConfig configures the IDE-side agent.
type ClientConfig struct {
	Options
	// MarkerPath is the file the editor writes its listening port into.
	MarkerPath string
}

// Client is the IDE side: it follows the editor's port marker and exposes the
// editor-facing verbs.
type Client struct {
	*Agent
	host       ClientHost
	markerPath string
	attempts   atomic.Int64
}

func NewClient(cfg ClientConfig, host ClientHost) *Client {
	if host == nil {
		host = noopHost{}
	}
	c := &Client{
		host:       host,
		markerPath: filepath.Clean(cfg.MarkerPath),
	}
	c.Agent = newAgent(protocol.RoleClient, cfg.Options, c)
	return c
}

// MarkerPath returns the watched port marker.
func (c *Client) MarkerPath() string {
	return c.markerPath
}

// Attempts counts connection attempts started from marker changes.
func (c *Client) Attempts() int {
	return int(c.attempts.Load())
}

// Watch follows the marker file until ctx is done or the client is disposed.
func (c *Client) Watch(ctx context.Context) error {
	dir := filepath.Dir(c.markerPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create marker watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	c.logger.Info("watching editor marker", "path", c.markerPath)

	c.Refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != c.markerPath {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				c.Refresh()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("marker watch error", "error", err.Error())
		}
	}
}

// Refresh re-evaluates the marker: a present marker with no connection starts
// an attempt, a missing marker closes the current connection.
func (c *Client) Refresh() {
	var (
		conn *Connection
		addr string
	)
	c.do(func() {
		if _, err := os.Stat(c.markerPath); err != nil {
			if c.conn != nil {
				c.logger.Info("editor marker removed; disconnecting")
				c.closeLocked()
			}
			return
		}
		if c.conn != nil {
			return
		}

		port, err := ReadMarkerPort(c.markerPath)
		if err != nil {
			c.logger.Warn("editor marker unreadable", "path", c.markerPath, "error", err.Error())
			return
		}

		conn = c.newConnection()
		c.attachLocked(conn)
		c.attempts.Add(1)
		addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
		c.logger.Info("connecting to editor agent", "addr", addr, "connection_id", conn.ID())
	})
	if conn != nil {
		go c.dialAndRun(conn, addr)
	}
}

// HandleMessage routes editor notifications to the host.
func (c *Client) HandleMessage(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.Ping:
	case protocol.BeginPIE:
		c.host.PIEStarted(m.Simulating)
	case protocol.EndPIE:
		c.host.PIEStopped(m.Simulating)
	case protocol.HotReloaded:
		c.host.HotReloaded(m.Success)
	case protocol.LocalPlayStarted:
		c.host.LocalPlayStarted(m.PID)
	case protocol.OpenClass:
		c.host.OpenClass(m.Class)
	case protocol.OpenFunction:
		c.host.OpenFunction(m.Class, m.Function)
	case protocol.OpenProperty:
		c.host.OpenProperty(m.Class, m.Property)
	case protocol.OpenFile:
		c.host.OpenFile(m.Path, m.Line)
	default:
		return false
	}
	return true
}

// HotReload asks the editor to recompile game code.
func (c *Client) HotReload() bool {
	return c.SendMessage(protocol.HotReload{})
}

// EndPIE asks the editor to stop the current play session.
func (c *Client) EndPIE() bool {
	return c.SendMessage(protocol.EndPIE{})
}

// BeginLocalPlay connects, launching the editor if needed, and requests a
// standalone play session.
func (c *Client) BeginLocalPlay(ctx context.Context, mobile bool, args []string) <-chan error {
	cmd := protocol.BeginLocalPlay{Mobile: mobile, Args: args}.Command()
	return c.ConnectAndSend(ctx, false, cmd.Name, cmd.Args...)
}

// FocusEditor connects, launching the editor if needed, and raises its window.
func (c *Client) FocusEditor(ctx context.Context) <-chan error {
	return c.ConnectAndSend(ctx, true, "")
}

// ReadMarkerPort parses the listening port an engine agent published.
func ReadMarkerPort(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(data))
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	return port, nil
}

type noopHost struct{}

func (noopHost) PIEStarted(bool)             {}
func (noopHost) PIEStopped(bool)             {}
func (noopHost) HotReloaded(bool)            {}
func (noopHost) LocalPlayStarted(int)        {}
func (noopHost) OpenClass(string)            {}
func (noopHost) OpenFunction(string, string) {}
func (noopHost) OpenProperty(string, string) {}
func (noopHost) OpenFile(string, int)        {}
