package hypr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Window is the subset of a hyprctl client entry used for focus targeting.
type Window struct {
	Address string `json:"address"`
	Class   string `json:"class"`
	Title   string `json:"title"`
	PID     int    `json:"pid"`
	Mapped  bool   `json:"mapped"`
}

// QueryClients lists every client window known to the compositor.
func QueryClients(ctx context.Context) ([]Window, error) {
	output, err := runHyprctlJSON(ctx, "clients")
	if err != nil {
		return nil, err
	}

	var windows []Window
	if err := json.Unmarshal(output, &windows); err != nil {
		return nil, fmt.Errorf("decode hyprctl clients json: %w", err)
	}
	for i := range windows {
		windows[i].Address = strings.TrimSpace(windows[i].Address)
		windows[i].Class = strings.TrimSpace(windows[i].Class)
		windows[i].Title = strings.TrimSpace(windows[i].Title)
	}
	return windows, nil
}

// FindWindowByPID returns the first mapped window owned by pid.
func FindWindowByPID(ctx context.Context, pid int) (Window, error) {
	windows, err := QueryClients(ctx)
	if err != nil {
		return Window{}, err
	}
	for _, window := range windows {
		if window.PID == pid && window.Mapped && window.Address != "" {
			return window, nil
		}
	}
	return Window{}, fmt.Errorf("no window found for pid %d", pid)
}

// Notify sends a Hyprland notification payload.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = "rgb(89b4fa)"
	}
	return runHyprctl(
		ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(icon),
		strconv.Itoa(timeoutMS),
		color,
		text,
	)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

func runHyprctlJSON(ctx context.Context, target string) ([]byte, error) {
	return runHyprctlOutput(ctx, "-j", target)
}
