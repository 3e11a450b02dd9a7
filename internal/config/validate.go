package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.ProjectDir) == "" {
		return nil, fmt.Errorf("project_dir must not be empty")
	}
	marker := strings.TrimSpace(cfg.MarkerPath)
	if marker == "" {
		return nil, fmt.Errorf("marker_path must not be empty")
	}
	if filepath.IsAbs(marker) {
		return nil, fmt.Errorf("marker_path must be relative to project_dir")
	}
	if len(cfg.Editor.Argv) == 0 {
		return nil, fmt.Errorf("editor_cmd must not be empty")
	}

	timeouts := []struct {
		key   string
		value int
	}{
		{key: "agent.dial_timeout_ms", value: cfg.Agent.DialTimeoutMS},
		{key: "agent.handshake_timeout_ms", value: cfg.Agent.HandshakeTimeoutMS},
		{key: "agent.settle_delay_ms", value: cfg.Agent.SettleDelayMS},
		{key: "agent.request_timeout_ms", value: cfg.Agent.RequestTimeoutMS},
		{key: "indicator.error_timeout_ms", value: cfg.Indicator.ErrorTimeoutMS},
	}
	for _, timeout := range timeouts {
		if timeout.value < 0 {
			return nil, fmt.Errorf("%s must be >= 0", timeout.key)
		}
	}

	if addr := strings.TrimSpace(cfg.Health.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("health.addr must be host:port: %w", err)
		}
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}

	if len(cfg.OpenFile.Argv) > 0 && !cfg.OpenFile.Uses(PlaceholderFile) {
		warnings = append(warnings, Warning{Message: "open_file_cmd has no {file} placeholder; files will not be passed to the editor"})
	}
	if len(cfg.OpenSymbol.Argv) > 0 && !cfg.OpenSymbol.Uses(PlaceholderSymbol) {
		warnings = append(warnings, Warning{Message: "open_symbol_cmd has no {symbol} placeholder; symbols will not be passed to the editor"})
	}

	return warnings, nil
}
