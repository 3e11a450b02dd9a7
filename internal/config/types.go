// Package config resolves, parses, validates, and defaults ueagent configuration.
package config

import (
	"path/filepath"
	"time"
)

// Config is the fully materialized runtime configuration used by ueagent.
type Config struct {
	ProjectDir string
	MarkerPath string
	Editor     CommandConfig
	OpenFile   CommandConfig
	OpenSymbol CommandConfig
	Agent      AgentConfig
	Focus      FocusConfig
	Health     HealthConfig
	Indicator  IndicatorConfig
}

// AgentConfig controls editor link timing.
type AgentConfig struct {
	DialTimeoutMS      int
	HandshakeTimeoutMS int
	SettleDelayMS      int
	RequestTimeoutMS   int
}

// FocusConfig controls compositor focus of the editor window.
type FocusConfig struct {
	Enable bool
}

// HealthConfig controls the gRPC health endpoint. An empty Addr disables it.
type HealthConfig struct {
	Addr string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable                bool
	Backend               string
	DesktopAppName        string
	SoundEnable           bool
	SoundConnectedFile    string
	SoundDisconnectedFile string
	SoundReloadFile       string
	SoundErrorFile        string
	ErrorTimeoutMS        int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// MarkerFile joins the project directory and the marker path.
func (c Config) MarkerFile() string {
	return filepath.Join(c.ProjectDir, c.MarkerPath)
}

func (a AgentConfig) DialTimeout() time.Duration      { return ms(a.DialTimeoutMS) }
func (a AgentConfig) HandshakeTimeout() time.Duration { return ms(a.HandshakeTimeoutMS) }
func (a AgentConfig) SettleDelay() time.Duration      { return ms(a.SettleDelayMS) }
func (a AgentConfig) RequestTimeout() time.Duration   { return ms(a.RequestTimeoutMS) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
