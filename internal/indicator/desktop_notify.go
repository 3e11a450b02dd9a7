package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = "/org/freedesktop/Notifications"
	notifySignature    = "susssasa{sv}i"
	dismissSignature   = "u"
	notifyHintsPerNote = 2
)

// urgency is the freedesktop notification urgency byte.
type urgency uint8

const (
	urgencyLow urgency = iota
	urgencyNormal
	urgencyCritical
)

// desktopNotification is one replaceable editor-link notification.
type desktopNotification struct {
	AppName   string
	ReplaceID uint32
	Summary   string
	Urgency   urgency
	Category  string
	TimeoutMS int
}

// busctlArgs renders the Notify call: app, replace id, icon, summary, body,
// no actions, the urgency and category hints, then the timeout.
func (n desktopNotification) busctlArgs() []string {
	return []string{
		"--user", "call",
		notificationsDest, notificationsPath, notificationsDest,
		"Notify", notifySignature,
		n.AppName,
		strconv.FormatUint(uint64(n.ReplaceID), 10),
		"",
		n.Summary,
		"",
		"0",
		strconv.Itoa(notifyHintsPerNote),
		"urgency", "y", strconv.Itoa(int(n.Urgency)),
		"category", "s", n.Category,
		strconv.Itoa(n.TimeoutMS),
	}
}

// desktopNotify sends note over the session bus and returns the id the
// notification server assigned.
func desktopNotify(ctx context.Context, note desktopNotification) (uint32, error) {
	out, err := busctl(ctx, "desktop notify", note.busctlArgs())
	if err != nil {
		return 0, err
	}
	return parseNotificationID(out)
}

// desktopDismiss closes a notification by id.
func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := busctl(ctx, "desktop dismiss", []string{
		"--user", "call",
		notificationsDest, notificationsPath, notificationsDest,
		"CloseNotification", dismissSignature,
		strconv.FormatUint(uint64(id), 10),
	})
	return err
}

// parseNotificationID reads busctl's "u <id>" reply.
func parseNotificationID(out string) (uint32, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	value, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(value), nil
}

func busctl(ctx context.Context, op string, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", fmt.Errorf("%s failed: %w", op, err)
		}
		return "", fmt.Errorf("%s failed: %w (%s)", op, err, trimmed)
	}
	return trimmed, nil
}
