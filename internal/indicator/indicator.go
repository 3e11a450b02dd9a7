// Package indicator surfaces editor link events as notifications and audio cues.
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/ueagent/internal/config"
	"github.com/rbright/ueagent/internal/hypr"
)

// Controller is the session-facing indicator contract.
type Controller interface {
	ShowConnected(context.Context)
	ShowDisconnected(context.Context)
	ShowPIE(ctx context.Context, started bool, simulating bool)
	ShowHotReload(ctx context.Context, success bool)
	ShowLocalPlay(ctx context.Context, pid int)
	ShowError(context.Context, string)
	Hide(context.Context)
}

const (
	colorInfo    = "rgb(89b4fa)"
	colorPlay    = "rgb(a6e3a1)"
	colorNeutral = "rgb(cba6f7)"
	colorError   = "rgb(f38ba8)"

	infoTimeoutMS          = 2500
	fallbackErrorTimeoutMS = 1200
)

type eventKind string

const (
	eventConnected    eventKind = "connected"
	eventDisconnected eventKind = "disconnected"
	eventPIEStarted   eventKind = "pie_started"
	eventPIEStopped   eventKind = "pie_stopped"
	eventReloaded     eventKind = "reloaded"
	eventLocalPlay    eventKind = "local_play"
	eventError        eventKind = "error"
)

// eventStyle is how one event kind renders on each backend.
type eventStyle struct {
	hyprIcon int
	color    string
	urgency  urgency
	category string
}

var eventStyles = map[eventKind]eventStyle{
	eventConnected:    {hyprIcon: 1, color: colorInfo, urgency: urgencyLow, category: "network.connected"},
	eventDisconnected: {hyprIcon: 1, color: colorNeutral, urgency: urgencyNormal, category: "network.disconnected"},
	eventPIEStarted:   {hyprIcon: 1, color: colorPlay, urgency: urgencyLow, category: "x-ueagent.pie"},
	eventPIEStopped:   {hyprIcon: 1, color: colorNeutral, urgency: urgencyLow, category: "x-ueagent.pie"},
	eventReloaded:     {hyprIcon: 5, color: colorPlay, urgency: urgencyLow, category: "x-ueagent.reload"},
	eventLocalPlay:    {hyprIcon: 1, color: colorPlay, urgency: urgencyLow, category: "x-ueagent.play"},
	eventError:        {hyprIcon: 3, color: colorError, urgency: urgencyCritical, category: "x-ueagent.error"},
}

// Notifier routes indicator output via Hyprland or desktop DBus based on
// the configured backend.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
}

// NewNotifier creates an indicator controller from config.
func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ShowConnected announces a live editor link.
func (n *Notifier) ShowConnected(ctx context.Context) {
	n.playCue(ctx, cueConnected)
	n.show(ctx, eventConnected, n.messages.connected)
}

// ShowDisconnected announces that the editor link dropped.
func (n *Notifier) ShowDisconnected(ctx context.Context) {
	n.playCue(ctx, cueDisconnected)
	n.show(ctx, eventDisconnected, n.messages.disconnected)
}

// ShowPIE reflects play-in-editor transitions.
func (n *Notifier) ShowPIE(ctx context.Context, started bool, simulating bool) {
	switch {
	case started && simulating:
		n.show(ctx, eventPIEStarted, n.messages.simulating)
	case started:
		n.show(ctx, eventPIEStarted, n.messages.pieStarted)
	default:
		n.show(ctx, eventPIEStopped, n.messages.pieStopped)
	}
}

// ShowHotReload reports the outcome of a hot reload.
func (n *Notifier) ShowHotReload(ctx context.Context, success bool) {
	if !success {
		n.playCue(ctx, cueReloadFailed)
		n.ShowError(ctx, n.messages.reloadFailed)
		return
	}
	n.playCue(ctx, cueReloadOK)
	n.show(ctx, eventReloaded, n.messages.reloadOK)
}

// ShowLocalPlay reports a standalone game launched by the editor.
func (n *Notifier) ShowLocalPlay(ctx context.Context, pid int) {
	n.show(ctx, eventLocalPlay, fmt.Sprintf(n.messages.localPlay, pid))
}

// ShowError displays an error-state indicator message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = n.messages.errorText
	}
	n.show(ctx, eventError, text)
}

// Hide dismisses the active indicator surface.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

func (n *Notifier) show(ctx context.Context, kind eventKind, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, kind, text)
	})
}

func (n *Notifier) timeoutFor(kind eventKind) int {
	if kind != eventError {
		return infoTimeoutMS
	}
	if n.cfg.ErrorTimeoutMS <= 0 {
		return fallbackErrorTimeoutMS
	}
	return n.cfg.ErrorTimeoutMS
}

func (n *Notifier) desktopBackend() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

func (n *Notifier) notify(ctx context.Context, kind eventKind, text string) error {
	style := eventStyles[kind]
	timeout := n.timeoutFor(kind)
	if n.desktopBackend() {
		return n.notifyDesktop(ctx, desktopNotification{
			Summary:   text,
			Urgency:   style.urgency,
			Category:  style.category,
			TimeoutMS: timeout,
		})
	}
	return hypr.Notify(ctx, style.hyprIcon, timeout, style.color, text)
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktopBackend() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// notifyDesktop replaces the previous desktop notification and stores the new ID.
func (n *Notifier) notifyDesktop(ctx context.Context, note desktopNotification) error {
	n.mu.Lock()
	note.ReplaceID = n.desktopNotificationID
	n.mu.Unlock()

	note.AppName = strings.TrimSpace(n.cfg.DesktopAppName)
	if note.AppName == "" {
		note.AppName = "ueagent"
	}

	id, err := desktopNotify(ctx, note)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(ctx, kind, n.cfg); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
