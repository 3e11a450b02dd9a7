package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startHealth(t *testing.T) (*Reporter, string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reporter := NewReporter()
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, listener, reporter) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-served:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("health server did not stop")
		}
	})
	return reporter, listener.Addr().String()
}

func TestCheckReflectsConnectedState(t *testing.T) {
	reporter, addr := startHealth(t)

	status, err := Check(context.Background(), addr, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "not_serving", status)

	reporter.SetConnected(true)
	status, err = Check(context.Background(), addr, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "serving", status)

	reporter.SetConnected(false)
	status, err = Check(context.Background(), addr, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "not_serving", status)
}

func TestCheckFailsWithoutServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = Check(context.Background(), addr, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "wait for health endpoint")
}

func TestCheckRejectsEmptyAddress(t *testing.T) {
	_, err := Check(context.Background(), " ", time.Second)
	require.ErrorContains(t, err, "empty")
}
