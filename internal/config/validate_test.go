package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty project dir", mutate: func(c *Config) { c.ProjectDir = " " }, wantErr: "project_dir"},
		{name: "empty marker path", mutate: func(c *Config) { c.MarkerPath = "" }, wantErr: "marker_path must not be empty"},
		{name: "absolute marker path", mutate: func(c *Config) { c.MarkerPath = "/tmp/port" }, wantErr: "relative"},
		{name: "empty editor argv", mutate: func(c *Config) { c.Editor.Argv = nil }, wantErr: "editor_cmd"},
		{name: "negative dial timeout", mutate: func(c *Config) { c.Agent.DialTimeoutMS = -1 }, wantErr: "agent.dial_timeout_ms"},
		{name: "negative settle delay", mutate: func(c *Config) { c.Agent.SettleDelayMS = -5 }, wantErr: "agent.settle_delay_ms"},
		{name: "negative error timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, wantErr: "error_timeout"},
		{name: "bad health addr", mutate: func(c *Config) { c.Health.Addr = "localhost" }, wantErr: "health.addr"},
		{name: "empty backend", mutate: func(c *Config) { c.Indicator.Backend = "" }, wantErr: "must not be empty"},
		{name: "unknown backend", mutate: func(c *Config) { c.Indicator.Backend = "waybar" }, wantErr: "one of"},
		{name: "desktop without app name", mutate: func(c *Config) {
			c.Indicator.Backend = "desktop"
			c.Indicator.DesktopAppName = ""
		}, wantErr: "desktop_app_name"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateAllowsDisabledHealth(t *testing.T) {
	cfg := Default()
	cfg.Health.Addr = ""
	_, err := Validate(cfg)
	require.NoError(t, err)
}

func TestValidateWarnsOnMissingPlaceholders(t *testing.T) {
	cfg := Default()
	cfg.OpenFile = CommandConfig{Raw: "code", Argv: []string{"code"}}
	cfg.OpenSymbol = CommandConfig{Raw: "rider --symbol", Argv: []string{"rider", "--symbol"}}

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "{file}")
	require.Contains(t, warnings[1].Message, "{symbol}")
}
