package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigEnv names a config file and takes precedence over discovery.
	ConfigEnv = "UEAGENT_CONFIG"
	// ProjectConfigName is a per-project config kept next to the .uproject.
	ProjectConfigName = ".ueagent.jsonc"
)

// ResolvePath picks the config file: the --config flag, then UEAGENT_CONFIG,
// then a .ueagent.jsonc in projectDir when one exists, then the user config
// under XDG_CONFIG_HOME or ~/.config.
func ResolvePath(explicit, projectDir string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if env := strings.TrimSpace(os.Getenv(ConfigEnv)); env != "" {
		return env, nil
	}

	if projectDir = strings.TrimSpace(projectDir); projectDir != "" {
		candidate := filepath.Join(projectDir, ProjectConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "ueagent", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "ueagent", "config.jsonc"), nil
}
