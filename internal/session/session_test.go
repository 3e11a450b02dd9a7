package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rbright/ueagent/internal/agent"
	"github.com/rbright/ueagent/internal/ipc"
	"github.com/rbright/ueagent/internal/opener"
	"github.com/stretchr/testify/require"
)

type fakeIndicator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeIndicator) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeIndicator) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeIndicator) ShowConnected(context.Context) {
	f.record("connected")
}

func (f *fakeIndicator) ShowDisconnected(context.Context) {
	f.record("disconnected")
}

func (f *fakeIndicator) ShowPIE(_ context.Context, started bool, simulating bool) {
	f.record(fmt.Sprintf("pie started=%t simulating=%t", started, simulating))
}

func (f *fakeIndicator) ShowHotReload(_ context.Context, success bool) {
	f.record(fmt.Sprintf("hotreload success=%t", success))
}

func (f *fakeIndicator) ShowLocalPlay(_ context.Context, pid int) {
	f.record(fmt.Sprintf("localplay pid=%d", pid))
}

func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.record("error " + text)
}

func (f *fakeIndicator) Hide(context.Context) {
	f.record("hide")
}

type fakeOpener struct {
	mu      sync.Mutex
	err     error
	calls   []string
	release chan struct{}
}

func (f *fakeOpener) record(call string) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeOpener) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeOpener) OpenFile(_ context.Context, path string, line int) error {
	return f.record(fmt.Sprintf("file %s:%d", path, line))
}

func (f *fakeOpener) OpenSymbol(_ context.Context, symbol string) error {
	return f.record("symbol " + symbol)
}

func serveOpens(t *testing.T, host *Host) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- host.ServeOpens(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

type fakeHealth struct {
	mu     sync.Mutex
	states []bool
}

func (f *fakeHealth) SetConnected(connected bool) {
	f.mu.Lock()
	f.states = append(f.states, connected)
	f.mu.Unlock()
}

func (f *fakeHealth) last() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return false, 0
	}
	return f.states[len(f.states)-1], len(f.states)
}

type fakeLink struct {
	mu        sync.Mutex
	state     agent.State
	events    chan agent.Event
	watchErr  error
	sendOK    bool
	sent      []string
	playErr   error
	playBlock bool
	playArgs  []string
	mobile    bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{state: agent.StateIdle, events: make(chan agent.Event, 8)}
}

func (f *fakeLink) State() agent.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeLink) setState(state agent.State) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

func (f *fakeLink) Subscribe() (<-chan agent.Event, func()) {
	return f.events, func() {}
}

func (f *fakeLink) RemotePID() int {
	return 77
}

func (f *fakeLink) HotReload() bool {
	f.sent = append(f.sent, "hotreload")
	return f.sendOK
}

func (f *fakeLink) EndPIE() bool {
	f.sent = append(f.sent, "endpie")
	return f.sendOK
}

func (f *fakeLink) BeginLocalPlay(ctx context.Context, mobile bool, args []string) <-chan error {
	f.mobile = mobile
	f.playArgs = args
	result := make(chan error, 1)
	go func() {
		if f.playBlock {
			<-ctx.Done()
			result <- ctx.Err()
			return
		}
		result <- f.playErr
	}()
	return result
}

func (f *fakeLink) FocusEditor(context.Context) <-chan error {
	result := make(chan error, 1)
	result <- nil
	return result
}

func (f *fakeLink) Watch(ctx context.Context) error {
	if f.watchErr != nil {
		return f.watchErr
	}
	<-ctx.Done()
	return nil
}

func TestHostRoutesNotifications(t *testing.T) {
	ind := &fakeIndicator{}
	op := &fakeOpener{}
	host := NewHost(nil, ind, op)
	serveOpens(t, host)

	host.PIEStarted(true)
	require.Equal(t, PIE{Running: true, Simulating: true}, host.PIE())
	host.PIEStopped(true)
	require.Equal(t, PIE{}, host.PIE())
	host.HotReloaded(false)
	host.LocalPlayStarted(31)
	host.OpenClass("AHero")
	host.OpenFunction("AHero", "Jump")
	host.OpenProperty("AHero", "Health")
	host.OpenFile("Source/Hero.cpp", 12)

	require.Equal(t, []string{
		"pie started=true simulating=true",
		"pie started=false simulating=true",
		"hotreload success=false",
		"localplay pid=31",
	}, ind.snapshot())
	want := []string{
		"symbol AHero",
		"symbol AHero::Jump",
		"symbol AHero::Health",
		"file Source/Hero.cpp:12",
	}
	require.Eventually(t, func() bool {
		return len(op.snapshot()) == len(want)
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, want, op.snapshot())
}

func TestHostSlowOpenDoesNotBlockNotifications(t *testing.T) {
	ind := &fakeIndicator{}
	op := &fakeOpener{release: make(chan struct{})}
	host := NewHost(nil, ind, op)
	serveOpens(t, host)

	returned := make(chan struct{})
	go func() {
		host.OpenFile("Source/Hero.cpp", 3)
		host.OpenClass("AHero")
		host.PIEStarted(false)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("open request blocked the notification path")
	}
	require.Equal(t, []string{"pie started=true simulating=false"}, ind.snapshot())
	require.Empty(t, op.snapshot())

	close(op.release)
	require.Eventually(t, func() bool {
		return len(op.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"file Source/Hero.cpp:3", "symbol AHero"}, op.snapshot())
}

func TestHostDropsOpensWhenQueueFull(t *testing.T) {
	op := &fakeOpener{}
	host := NewHost(nil, nil, op)
	for i := 0; i < openQueueSize+5; i++ {
		host.OpenFile("a.cpp", i+1)
	}
	require.Len(t, host.opens, openQueueSize)

	serveOpens(t, host)
	require.Eventually(t, func() bool {
		return len(op.snapshot()) == openQueueSize
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "file a.cpp:1", op.snapshot()[0])
}

func TestHostOpenFailures(t *testing.T) {
	t.Run("missing command only logs", func(t *testing.T) {
		ind := &fakeIndicator{}
		op := &fakeOpener{err: fmt.Errorf("%w: open_file_cmd", opener.ErrNoCommand)}
		host := NewHost(nil, ind, op)
		serveOpens(t, host)
		host.OpenFile("a.cpp", 1)
		require.Eventually(t, func() bool { return len(op.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
		require.Never(t, func() bool { return len(ind.snapshot()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	})

	t.Run("command failure shows error", func(t *testing.T) {
		ind := &fakeIndicator{}
		host := NewHost(nil, ind, &fakeOpener{err: errors.New("exit status 1")})
		serveOpens(t, host)
		host.OpenClass("AHero")
		require.Eventually(t, func() bool {
			calls := ind.snapshot()
			return len(calls) == 1 && calls[0] == "error Open command failed"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("nil opener", func(t *testing.T) {
		host := NewHost(nil, nil, nil)
		require.NotPanics(t, func() {
			host.OpenFile("a.cpp", 1)
			host.OpenClass("AHero")
		})
		require.Empty(t, host.opens)
	})
}

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	link := newFakeLink()
	host := NewHost(nil, nil, nil)
	ctrl := NewController(link, host, Options{})

	status := ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, status.OK)
	require.Equal(t, "disconnected", status.State)
	require.Equal(t, "pie stopped", status.Message)

	link.setState(agent.StateConnected)
	host.PIEStarted(false)
	status = ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.Equal(t, "connected", status.State)
	require.Equal(t, "pie running", status.Message)

	unknown := ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleFireAndForget(t *testing.T) {
	link := newFakeLink()
	ctrl := NewController(link, nil, Options{})

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "hotreload"})
	require.False(t, resp.OK)
	require.Equal(t, "editor not connected", resp.Error)

	link.sendOK = true
	link.setState(agent.StateConnected)
	resp = ctrl.Handle(context.Background(), ipc.Request{Command: "endpie"})
	require.True(t, resp.OK)
	require.Equal(t, "connected", resp.State)
	require.Equal(t, []string{"hotreload", "endpie"}, link.sent)
}

func TestHandlePlay(t *testing.T) {
	link := newFakeLink()
	ctrl := NewController(link, nil, Options{})

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "play", Args: []string{"--mobile", "-log", "-windowed"}})
	require.True(t, resp.OK)
	require.True(t, link.mobile)
	require.Equal(t, []string{"-log", "-windowed"}, link.playArgs)

	link.playErr = agent.ErrUnableToConnect
	resp = ctrl.Handle(context.Background(), ipc.Request{Command: "play"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unable to connect")
}

func TestHandlePlayTimesOut(t *testing.T) {
	link := newFakeLink()
	link.playBlock = true
	ctrl := NewController(link, nil, Options{RequestTimeout: 50 * time.Millisecond})

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "play"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "timed out after 50ms")
}

func TestHandleFocus(t *testing.T) {
	ctrl := NewController(newFakeLink(), nil, Options{})
	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "focus"})
	require.True(t, resp.OK)
	require.Equal(t, "editor focused", resp.Message)
}

func TestParsePlayArgs(t *testing.T) {
	tests := []struct {
		name   string
		raw    []string
		mobile bool
		args   []string
	}{
		{name: "empty", raw: nil, args: []string{}},
		{name: "mobile only", raw: []string{"--mobile"}, mobile: true, args: []string{}},
		{name: "separator", raw: []string{"--", "--mobile"}, args: []string{"--mobile"}},
		{name: "flag after args", raw: []string{"-log", "--mobile"}, args: []string{"-log", "--mobile"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mobile, args := parsePlayArgs(tc.raw)
			require.Equal(t, tc.mobile, mobile)
			require.Equal(t, tc.args, append([]string{}, args...))
		})
	}
}

func TestRunDrivesIndicatorAndHealth(t *testing.T) {
	link := newFakeLink()
	ind := &fakeIndicator{}
	health := &fakeHealth{}
	host := NewHost(nil, ind, nil)
	ctrl := NewController(link, host, Options{Indicator: ind, Health: health})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	link.events <- agent.EventConnected
	require.Eventually(t, func() bool {
		connected, _ := health.last()
		return connected
	}, time.Second, 10*time.Millisecond)

	host.PIEStarted(false)
	link.events <- agent.EventDisconnected
	require.Eventually(t, func() bool {
		connected, n := health.last()
		return !connected && n >= 3
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, PIE{}, host.PIE())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}

	require.Equal(t, []string{
		"connected",
		"pie started=true simulating=false",
		"disconnected",
		"hide",
	}, ind.snapshot())
}

func TestRunReturnsWatchError(t *testing.T) {
	link := newFakeLink()
	link.watchErr = errors.New("permission denied")
	ctrl := NewController(link, nil, Options{})

	err := ctrl.Run(context.Background())
	require.ErrorContains(t, err, "watch editor marker: permission denied")
}
