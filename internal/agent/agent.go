// Package agent implements both ends of the editor agent link: the
// connection, the actor that owns it, and the client and engine roles.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rbright/ueagent/internal/protocol"
)

var (
	ErrUnableToConnect = errors.New("unable to connect to editor agent")
	ErrTargetExited    = errors.New("target process exited unexpectedly")
	ErrNoLauncher      = errors.New("no target launcher configured")
	ErrNotConnected    = errors.New("editor agent not connected")
	ErrDisposed        = errors.New("agent disposed")
)

// State is the agent-level view of its current connection.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateDisposed   State = "disposed"
)

// Event is published to subscribers when the agent gains or loses its peer.
type Event int

const (
	EventConnected Event = iota + 1
	EventDisconnected
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Handler receives every parsed inbound message except the synthetic
// connected notification. It returns false for messages its role does not
// accept.
type Handler interface {
	HandleMessage(protocol.Message) bool
}

// Focuser raises the window of a running process.
type Focuser interface {
	FocusProcess(ctx context.Context, pid int) error
}

// Options configures behavior shared by the client and engine roles.
type Options struct {
	Logger           *slog.Logger
	Launcher         Launcher
	Focuser          Focuser
	SettleDelay      time.Duration
	DialTimeout      time.Duration
	HandshakeTimeout time.Duration
	// PID overrides the process id sent in the handshake.
	PID int
}

const subscriberBuffer = 16

// Agent serializes every change to its connection, process handle, and
// subscriber set through a single mailbox goroutine.
type Agent struct {
	role    protocol.Role
	opts    Options
	logger  *slog.Logger
	handler Handler

	mailbox     chan func()
	done        chan struct{}
	disposeOnce sync.Once

	// Owned by the mailbox goroutine.
	conn        *Connection
	state       State
	process     Process
	subscribers map[int]chan Event
	nextSubID   int
}

func newAgent(role protocol.Role, opts Options, handler Handler) *Agent {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.PID <= 0 {
		opts.PID = os.Getpid()
	}
	a := &Agent{
		role:        role,
		opts:        opts,
		logger:      opts.Logger.With("component", "agent", "role", string(role)),
		handler:     handler,
		mailbox:     make(chan func()),
		done:        make(chan struct{}),
		state:       StateIdle,
		subscribers: make(map[int]chan Event),
	}
	go a.loop()
	return a
}

func (a *Agent) loop() {
	for {
		select {
		case fn := <-a.mailbox:
			fn()
		case <-a.done:
			return
		}
	}
}

// do runs fn on the mailbox goroutine and waits for it. It returns false
// once the agent is disposed.
func (a *Agent) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case a.mailbox <- func() {
		defer close(finished)
		fn()
	}:
	case <-a.done:
		return false
	}
	<-finished
	return true
}

// post queues fn without waiting. Callbacks that may already be running on
// the mailbox goroutine use it.
func (a *Agent) post(fn func()) {
	go a.do(fn)
}

// Done is closed once the agent is disposed.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// State returns the current agent state.
func (a *Agent) State() State {
	state := StateDisposed
	a.do(func() { state = a.state })
	return state
}

// Connected reports whether a handshake-complete connection is current.
func (a *Agent) Connected() bool {
	return a.State() == StateConnected
}

// Subscribe registers for connection events. The returned func unsubscribes.
// Slow subscribers miss events instead of blocking the agent.
func (a *Agent) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	id := 0
	a.do(func() {
		a.nextSubID++
		id = a.nextSubID
		a.subscribers[id] = ch
	})
	return ch, func() {
		a.do(func() { delete(a.subscribers, id) })
	}
}

func (a *Agent) emit(ev Event) {
	for id, ch := range a.subscribers {
		select {
		case ch <- ev:
		default:
			a.logger.Warn("dropping agent event for slow subscriber", "subscriber", id, "event", ev.String())
		}
	}
}

func (a *Agent) newConnection() *Connection {
	return newConnection(connectionConfig{
		Role:             a.role,
		LocalPID:         a.opts.PID,
		DialTimeout:      a.opts.DialTimeout,
		HandshakeTimeout: a.opts.HandshakeTimeout,
		Logger:           a.opts.Logger,
		Dispatch:         a.dispatch,
		OnDisposed:       a.connectionDisposed,
	})
}

// attachLocked makes conn current and disposes any predecessor.
func (a *Agent) attachLocked(conn *Connection) {
	old := a.conn
	wasConnected := a.state == StateConnected

	a.conn = conn
	a.state = StateConnecting

	if old != nil {
		a.logger.Info("replacing agent connection", "old", old.ID(), "new", conn.ID())
		old.Dispose()
		if wasConnected {
			a.emit(EventDisconnected)
		}
	}
}

// closeLocked sends close to the current peer and forgets the connection.
func (a *Agent) closeLocked() {
	conn := a.conn
	if conn == nil {
		return
	}
	a.conn = nil
	a.state = StateIdle
	conn.Close()
	a.emit(EventDisconnected)
}

func (a *Agent) connectionDisposed(conn *Connection) {
	a.post(func() {
		if a.conn != conn {
			return
		}
		a.conn = nil
		a.state = StateIdle
		a.emit(EventDisconnected)
	})
}

func (a *Agent) connectionOpened(conn *Connection) {
	a.do(func() {
		if a.conn != conn {
			return
		}
		a.state = StateConnected
		a.emit(EventConnected)
	})
}

func (a *Agent) dispatch(conn *Connection, cmd protocol.Command) error {
	msg, err := protocol.Parse(cmd)
	if err != nil {
		return err
	}
	if _, ok := msg.(protocol.Connected); ok {
		a.connectionOpened(conn)
		return nil
	}
	if a.handler == nil || !a.handler.HandleMessage(msg) {
		return fmt.Errorf("%w: %s is not accepted by %s", protocol.ErrUnknownCommand, cmd.Name, a.role)
	}
	return nil
}

func (a *Agent) dialAndRun(conn *Connection, addr string) {
	if err := conn.Dial(addr); err != nil {
		if !errors.Is(err, ErrDisposed) {
			a.logger.Warn("editor agent dial failed", "addr", addr, "error", err.Error())
		}
		conn.Dispose()
		return
	}
	conn.Run()
}

func (a *Agent) current() *Connection {
	var conn *Connection
	a.do(func() {
		if a.state == StateConnected {
			conn = a.conn
		}
	})
	return conn
}

// Send writes a command to the connected peer. It returns false when no
// connection is open or the write fails.
func (a *Agent) Send(name string, args ...string) bool {
	conn := a.current()
	if conn == nil {
		a.logger.Debug("dropping command without connection", "command", name)
		return false
	}
	return conn.Send(name, args...)
}

// SendMessage is Send for a typed message.
func (a *Agent) SendMessage(msg protocol.Message) bool {
	cmd := msg.Command()
	return a.Send(cmd.Name, cmd.Args...)
}

// RemotePID returns the peer pid, falling back to the launched process.
func (a *Agent) RemotePID() int {
	pid := 0
	a.do(func() {
		if a.conn != nil {
			pid = a.conn.RemotePID()
		}
		if pid <= 0 && a.process != nil {
			pid = a.process.PID()
		}
	})
	return pid
}

// CloseConnection tells the peer to close and drops the current connection.
func (a *Agent) CloseConnection() {
	a.do(a.closeLocked)
}

// Connect resolves once a peer is connected. When no peer is present it
// launches the target and waits for the handshake, then for the settle
// delay. The channel receives exactly one value and is then closed.
func (a *Agent) Connect(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- a.connect(ctx)
	}()
	return result
}

func (a *Agent) connect(ctx context.Context) error {
	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	switch a.State() {
	case StateConnected:
		return nil
	case StateDisposed:
		return ErrDisposed
	case StateConnecting:
		// A pending handshake resolves before anything is launched.
		connected, err := a.awaitPending(ctx, events)
		if err != nil || connected {
			return err
		}
		a.logger.Info("pending editor connection failed")
	}
	if a.opts.Launcher == nil {
		return ErrNoLauncher
	}

	proc, err := a.opts.Launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch target: %w", err)
	}
	a.do(func() { a.process = proc })
	a.logger.Info("launched target", "pid", proc.PID())

	exited := proc.Done()
	for {
		select {
		case ev := <-events:
			switch ev {
			case EventConnected:
				return a.settle(ctx)
			case EventDisconnected:
				return ErrUnableToConnect
			}
		case <-exited:
			if code := proc.ExitCode(); code != 0 {
				return fmt.Errorf("%w: exit code %d", ErrTargetExited, code)
			}
			exited = nil
		case <-a.done:
			return ErrDisposed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Agent) awaitPending(ctx context.Context, events <-chan Event) (bool, error) {
	for {
		select {
		case ev := <-events:
			switch ev {
			case EventConnected:
				return true, nil
			case EventDisconnected:
				return false, nil
			}
		case <-a.done:
			return false, ErrDisposed
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (a *Agent) settle(ctx context.Context) error {
	if a.opts.SettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(a.opts.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-a.done:
		return ErrDisposed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectAndSend connects if needed, optionally focuses the peer window, and
// then sends the command. An empty name skips the send.
func (a *Agent) ConnectAndSend(ctx context.Context, focus bool, name string, args ...string) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		if err := <-a.Connect(ctx); err != nil {
			result <- err
			return
		}
		if focus {
			a.focus(ctx)
		}
		if name != "" && !a.Send(name, args...) {
			result <- fmt.Errorf("%w: send %s", ErrNotConnected, name)
			return
		}
		result <- nil
	}()
	return result
}

func (a *Agent) focus(ctx context.Context) {
	if a.opts.Focuser == nil {
		return
	}
	pid := a.RemotePID()
	if pid <= 0 {
		a.logger.Warn("focus skipped: editor pid unknown")
		return
	}
	if err := a.opts.Focuser.FocusProcess(ctx, pid); err != nil {
		a.logger.Warn("focus editor failed", "pid", pid, "error", err.Error())
	}
}

// Dispose closes the current connection and stops the mailbox. Later calls
// are no-ops.
func (a *Agent) Dispose() {
	a.disposeOnce.Do(func() {
		a.do(func() {
			a.closeLocked()
			a.state = StateDisposed
			a.process = nil
		})
		close(a.done)
		a.logger.Debug("agent disposed")
	})
}
