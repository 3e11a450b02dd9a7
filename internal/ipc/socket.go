package ipc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning reports a live daemon already owning the project's
// control socket.
var ErrAlreadyRunning = errors.New("ueagent daemon already running for this project")

// RuntimeSocketPath returns the control socket for projectDir under
// XDG_RUNTIME_DIR. Each project checkout gets its own socket.
func RuntimeSocketPath(projectDir string) (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName(projectDir)), nil
}

func socketName(projectDir string) string {
	projectDir = strings.TrimSpace(projectDir)
	if projectDir == "" {
		return "ueagent.sock"
	}
	sum := sha256.Sum256([]byte(filepath.Clean(projectDir)))
	return "ueagent-" + hex.EncodeToString(sum[:6]) + ".sock"
}

// AcquireOptions controls how a socket left behind by a dead daemon is
// reclaimed.
type AcquireOptions struct {
	// PingTimeout bounds the status round trip sent to an existing owner.
	PingTimeout time.Duration
	// Retries is how many extra listen attempts follow a reclaimed socket.
	Retries int
}

// Acquire listens on path for the project's daemon. An existing socket that
// answers a status request means another daemon owns the project; one that
// refuses connections is removed and the listen retried.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := listenUnix(ctx, path)
		if err == nil {
			return listener, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}
		if err := reclaimStale(ctx, path, opts.PingTimeout); err != nil {
			return nil, err
		}
		if attempt >= opts.Retries {
			return nil, fmt.Errorf("control socket %s still in use after %d attempts", path, attempt+1)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
}

func listenUnix(ctx context.Context, path string) (net.Listener, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict control socket %s: %w", path, err)
	}
	return listener, nil
}

// reclaimStale removes path unless a daemon still answers on it. A peer that
// accepts but never replies leaves the socket in place.
func reclaimStale(ctx context.Context, path string, timeout time.Duration) error {
	alive, err := Ping(ctx, path, timeout)
	switch {
	case alive:
		return ErrAlreadyRunning
	case err != nil:
		return fmt.Errorf("check existing socket %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
