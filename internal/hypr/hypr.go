package hypr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Controller raises editor windows in the compositor.
type Controller interface {
	FocusProcess(ctx context.Context, pid int) error
}

type CLIController struct{}

// FocusProcess focuses the first client window owned by pid.
func (CLIController) FocusProcess(ctx context.Context, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid editor pid %d", pid)
	}
	if _, err := FindWindowByPID(ctx, pid); err != nil {
		return err
	}
	return runHyprctl(ctx, "--quiet", "dispatch", "focuswindow", "pid:"+strconv.Itoa(pid))
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
