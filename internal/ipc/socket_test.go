package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRecoversStaleSocket(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "ueagent.sock")
	dead, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	dead.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, dead.Close())

	listener, err := Acquire(context.Background(), socketPath, AcquireOptions{PingTimeout: 50 * time.Millisecond, Retries: 2})
	require.NoError(t, err)
	defer listener.Close()

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	require.Equal(t, os.ModeSocket, info.Mode().Type())
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAcquireGivesUpWithoutRetries(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "ueagent.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, err := Acquire(context.Background(), socketPath, AcquireOptions{PingTimeout: 50 * time.Millisecond})
	require.ErrorContains(t, err, "still in use after 1 attempts")

	_, statErr := os.Stat(socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestAcquireReturnsAlreadyRunningWhenSocketResponsive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "ueagent.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, _ Request) Response {
			return Succeed(StateConnected, "")
		}))
	}()

	_, err = Acquire(context.Background(), socketPath, AcquireOptions{PingTimeout: 80 * time.Millisecond, Retries: 1})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Acquire() error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	if serveErr := <-serverDone; serveErr != nil {
		t.Fatalf("Serve() error = %v", serveErr)
	}
}

func TestAcquireKeepsSocketOfUnresponsiveOwner(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "ueagent.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				time.Sleep(250 * time.Millisecond)
			}(conn)
		}
	}()

	_, err = Acquire(context.Background(), socketPath, AcquireOptions{PingTimeout: 30 * time.Millisecond})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "check existing socket")

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
	require.NoError(t, listener.Close())
	<-acceptDone
}

func TestRuntimeSocketPathRequiresXDG(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err := RuntimeSocketPath("/work/Lyra")
	require.ErrorContains(t, err, "XDG_RUNTIME_DIR")
}

func TestRuntimeSocketPathIsPerProject(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	lyra, err := RuntimeSocketPath("/work/Lyra")
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(lyra))
	require.Regexp(t, `^ueagent-[0-9a-f]{12}\.sock$`, filepath.Base(lyra))

	again, err := RuntimeSocketPath("/work/Lyra/")
	require.NoError(t, err)
	require.Equal(t, lyra, again)

	shooter, err := RuntimeSocketPath("/work/Shooter")
	require.NoError(t, err)
	require.NotEqual(t, lyra, shooter)

	shared, err := RuntimeSocketPath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "ueagent.sock"), shared)
}
