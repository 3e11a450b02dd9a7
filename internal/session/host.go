package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/ueagent/internal/opener"
)

const (
	indicatorTimeout = 2 * time.Second
	openQueueSize    = 32
)

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowConnected(context.Context)
	ShowDisconnected(context.Context)
	ShowPIE(ctx context.Context, started bool, simulating bool)
	ShowHotReload(ctx context.Context, success bool)
	ShowLocalPlay(ctx context.Context, pid int)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// Opener runs the IDE's open commands.
type Opener interface {
	OpenFile(ctx context.Context, path string, line int) error
	OpenSymbol(ctx context.Context, symbol string) error
}

type noopIndicator struct{}

func (noopIndicator) ShowConnected(context.Context)       {}
func (noopIndicator) ShowDisconnected(context.Context)    {}
func (noopIndicator) ShowPIE(context.Context, bool, bool) {}
func (noopIndicator) ShowHotReload(context.Context, bool) {}
func (noopIndicator) ShowLocalPlay(context.Context, int)  {}
func (noopIndicator) ShowError(context.Context, string)   {}
func (noopIndicator) Hide(context.Context)                {}

// PIE is the last play-in-editor state reported by the editor.
type PIE struct {
	Running    bool
	Simulating bool
}

// Host receives editor notifications and turns them into indicator output
// and IDE open commands.
type Host struct {
	logger    *slog.Logger
	indicator Indicator
	opener    Opener

	// Open requests run on ServeOpens, away from the connection read loop.
	opens chan openRequest

	mu  sync.RWMutex
	pie PIE
}

type openRequest struct {
	run   func(context.Context) error
	attrs []any
}

// NewHost constructs a host. A nil indicator is replaced by a no-op.
func NewHost(logger *slog.Logger, indicator Indicator, opener Opener) *Host {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}
	return &Host{
		logger:    logger,
		indicator: indicator,
		opener:    opener,
		opens:     make(chan openRequest, openQueueSize),
	}
}

// ServeOpens runs queued open requests in arrival order until ctx is done.
func (h *Host) ServeOpens(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-h.opens:
			h.reportOpen(req.run(ctx), req.attrs...)
		}
	}
}

func (h *Host) enqueueOpen(run func(context.Context) error, attrs ...any) {
	select {
	case h.opens <- openRequest{run: run, attrs: attrs}:
	default:
		h.logger.Warn("open request dropped: queue full", attrs...)
	}
}

// PIE returns the current play-in-editor snapshot.
func (h *Host) PIE() PIE {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pie
}

func (h *Host) setPIE(pie PIE) {
	h.mu.Lock()
	h.pie = pie
	h.mu.Unlock()
}

func (h *Host) PIEStarted(simulating bool) {
	h.setPIE(PIE{Running: true, Simulating: simulating})
	h.logger.Info("play in editor started", "simulating", simulating)
	h.show(func(ctx context.Context) { h.indicator.ShowPIE(ctx, true, simulating) })
}

func (h *Host) PIEStopped(simulating bool) {
	h.setPIE(PIE{})
	h.logger.Info("play in editor stopped", "simulating", simulating)
	h.show(func(ctx context.Context) { h.indicator.ShowPIE(ctx, false, simulating) })
}

func (h *Host) HotReloaded(success bool) {
	if success {
		h.logger.Info("hot reload finished")
	} else {
		h.logger.Warn("hot reload failed")
	}
	h.show(func(ctx context.Context) { h.indicator.ShowHotReload(ctx, success) })
}

func (h *Host) LocalPlayStarted(pid int) {
	h.logger.Info("standalone game started", "pid", pid)
	h.show(func(ctx context.Context) { h.indicator.ShowLocalPlay(ctx, pid) })
}

func (h *Host) OpenClass(class string) {
	h.openSymbol(opener.Symbol(class, ""))
}

func (h *Host) OpenFunction(class, function string) {
	h.openSymbol(opener.Symbol(class, function))
}

func (h *Host) OpenProperty(class, property string) {
	h.openSymbol(opener.Symbol(class, property))
}

func (h *Host) OpenFile(path string, line int) {
	if h.opener == nil {
		h.logger.Warn("open file ignored: no opener", "path", path)
		return
	}
	h.enqueueOpen(func(ctx context.Context) error {
		return h.opener.OpenFile(ctx, path, line)
	}, "path", path, "line", line)
}

// reset clears editor-scoped state after the link drops.
func (h *Host) reset() {
	h.setPIE(PIE{})
}

func (h *Host) openSymbol(symbol string) {
	if h.opener == nil {
		h.logger.Warn("open symbol ignored: no opener", "symbol", symbol)
		return
	}
	h.enqueueOpen(func(ctx context.Context) error {
		return h.opener.OpenSymbol(ctx, symbol)
	}, "symbol", symbol)
}

func (h *Host) reportOpen(err error, attrs ...any) {
	if err == nil {
		h.logger.Debug("open request handled", attrs...)
		return
	}
	attrs = append(attrs, "error", err.Error())
	if errors.Is(err, opener.ErrNoCommand) {
		h.logger.Warn("open request ignored", attrs...)
		return
	}
	h.logger.Error("open request failed", attrs...)
	h.show(func(ctx context.Context) { h.indicator.ShowError(ctx, "Open command failed") })
}

func (h *Host) show(fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), indicatorTimeout)
	defer cancel()
	fn(ctx)
}
