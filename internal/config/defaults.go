package config

const (
	defaultEditorCmd   = "UnrealEditor {project}"
	defaultOpenFileCmd = "code --goto {file}:{line}"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		ProjectDir: ".",
		MarkerPath: "Intermediate/UnrealAgent/port",
		Editor:     mustParseCommand("editor_cmd", defaultEditorCmd),
		OpenFile:   mustParseCommand("open_file_cmd", defaultOpenFileCmd),
		Agent: AgentConfig{
			DialTimeoutMS:      2000,
			HandshakeTimeoutMS: 5000,
			SettleDelayMS:      5000,
			RequestTimeoutMS:   180000,
		},
		Focus:  FocusConfig{Enable: true},
		Health: HealthConfig{Addr: "127.0.0.1:50061"},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "ueagent",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
	}
}
