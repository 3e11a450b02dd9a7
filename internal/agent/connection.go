package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/ueagent/internal/fsm"
	"github.com/rbright/ueagent/internal/protocol"
)

// DispatchFunc receives every decoded inbound command, including the
// synthetic connected notification raised after the handshake.
type DispatchFunc func(*Connection, protocol.Command) error

type connectionConfig struct {
	Role             protocol.Role
	LocalPID         int
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
	Dispatch         DispatchFunc
	OnDisposed       func(*Connection)
}

// Connection is one handshake-negotiated duplex command channel.
//
// Run owns the reader and must execute on its own goroutine. Send and
// Dispose are safe from any goroutine, including concurrently with Run.
type Connection struct {
	id               string
	role             protocol.Role
	localPID         int
	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	logger           *slog.Logger
	dispatchFn       DispatchFunc
	onDisposed       func(*Connection)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  fsm.State
	sock   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex
	writer  *bufio.Writer

	remotePID atomic.Int64
	disposed  atomic.Bool
}

func newConnection(cfg connectionConfig) *Connection {
	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:               id,
		role:             cfg.Role,
		localPID:         cfg.LocalPID,
		dialTimeout:      cfg.DialTimeout,
		handshakeTimeout: cfg.HandshakeTimeout,
		logger:           logger.With("connection_id", id, "role", string(cfg.Role)),
		dispatchFn:       cfg.Dispatch,
		onDisposed:       cfg.OnDisposed,
		ctx:              ctx,
		cancel:           cancel,
		state:            fsm.StateCreated,
	}
}

// ID returns the connection identifier used in logs.
func (c *Connection) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Connection) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RemotePID returns the peer process id learned from the handshake, or 0.
func (c *Connection) RemotePID() int {
	return int(c.remotePID.Load())
}

// Disposed reports whether teardown has started.
func (c *Connection) Disposed() bool {
	return c.disposed.Load()
}

func (c *Connection) transition(event fsm.Event) (fsm.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return prev, err
	}
	c.state = next
	return prev, nil
}

// Attach hands an established socket to the connection. A disposed
// connection closes the socket and returns false.
func (c *Connection) Attach(sock net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed.Load() {
		_ = sock.Close()
		return false
	}
	c.sock = sock
	c.reader = bufio.NewReader(sock)

	c.writeMu.Lock()
	c.writer = bufio.NewWriter(sock)
	c.writeMu.Unlock()
	return true
}

// Dial opens a TCP socket to addr. Dispose aborts an in-flight dial.
func (c *Connection) Dial(addr string) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	sock, err := dialer.DialContext(c.ctx, "tcp", addr)
	if err != nil {
		if c.disposed.Load() {
			return ErrDisposed
		}
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if !c.Attach(sock) {
		return ErrDisposed
	}
	return nil
}

// Run performs the handshake and then reads commands until the peer closes,
// the stream fails, or the connection is disposed. It always disposes the
// connection before returning.
func (c *Connection) Run() {
	defer c.Dispose()

	if _, err := c.transition(fsm.EventRun); err != nil {
		c.logger.Debug("agent connection not runnable", "error", err.Error())
		return
	}

	c.mu.Lock()
	sock, reader := c.sock, c.reader
	c.mu.Unlock()
	if sock == nil || reader == nil {
		c.logger.Error("agent connection has no socket")
		return
	}

	if !c.writeLine(protocol.HandshakeLine(c.role, c.localPID)) {
		return
	}

	if c.handshakeTimeout > 0 {
		_ = sock.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	}
	greeting, err := reader.ReadString('\n')
	if err != nil {
		if !c.disposed.Load() {
			c.logger.Warn("agent handshake read failed", "error", err.Error())
		}
		return
	}
	_ = sock.SetReadDeadline(time.Time{})

	pid, err := protocol.ParseHandshake(greeting, c.role.Peer())
	if err != nil {
		c.logger.Warn("agent handshake rejected", "error", err.Error())
		return
	}
	c.remotePID.Store(int64(pid))

	if _, err := c.transition(fsm.EventHandshakeOK); err != nil {
		return
	}
	c.logger.Info("agent connection open", "remote_pid", pid)

	c.dispatch(protocol.Connected{}.Command())

	for {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if !c.disposed.Load() && !errors.Is(err, io.EOF) {
				c.logger.Error("agent connection read failed", "error", err.Error())
			}
			return
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			c.logger.Debug("agent connection received empty line")
			return
		}

		cmd := protocol.Decode(trimmed)
		if cmd.Name == protocol.NameClose {
			_, _ = c.transition(fsm.EventClose)
			c.logger.Info("agent peer closed connection")
			return
		}
		c.dispatch(cmd)

		if err != nil {
			return
		}
	}
}

// dispatch isolates handler failures so one bad command cannot end the session.
func (c *Connection) dispatch(cmd protocol.Command) {
	if c.dispatchFn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("agent command handler panicked", "command", cmd.Name, "panic", fmt.Sprint(r))
		}
	}()
	if err := c.dispatchFn(c, cmd); err != nil {
		c.logger.Error("agent command handler failed", "command", cmd.Name, "error", err.Error())
	}
}

// Send writes one command line once the handshake has completed. It returns
// false instead of failing when the connection is not open.
func (c *Connection) Send(name string, args ...string) bool {
	if c.State() != fsm.StateOpen {
		return false
	}
	return c.writeLine(protocol.Encode(name, args))
}

func (c *Connection) writeLine(line string) bool {
	c.writeMu.Lock()
	if c.writer == nil || c.disposed.Load() {
		c.writeMu.Unlock()
		return false
	}
	_, err := c.writer.WriteString(line + "\n")
	if err == nil {
		err = c.writer.Flush()
	}
	c.writeMu.Unlock()

	if err != nil {
		if !c.disposed.Load() {
			c.logger.Error("agent connection write failed", "error", err.Error())
		}
		c.Dispose()
		return false
	}
	return true
}

// Close sends the close command best-effort and disposes the connection.
func (c *Connection) Close() {
	if c.disposed.Load() {
		return
	}
	prev, err := c.transition(fsm.EventClose)
	if err == nil && prev == fsm.StateOpen {
		_ = c.writeLine(protocol.NameClose)
	}
	c.Dispose()
}

// Dispose tears the connection down exactly once and then notifies the owner.
func (c *Connection) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()

	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.reader = nil
	if next, err := fsm.Transition(c.state, fsm.EventDispose); err == nil {
		c.state = next
	}
	c.mu.Unlock()

	if sock != nil {
		if err := sock.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Warn("agent socket close failed", "error", err.Error())
		}
	}

	c.writeMu.Lock()
	c.writer = nil
	c.writeMu.Unlock()

	c.logger.Debug("agent connection disposed")
	if c.onDisposed != nil {
		c.onDisposed(c)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
