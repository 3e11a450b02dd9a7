package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loaded captures the resolved config path, the effective config, and
// non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Overrides are command-line values that win over the config file.
type Overrides struct {
	ProjectDir string
}

// Load resolves and parses the config, applies overrides, and anchors
// project_dir and marker_path so later consumers see absolute, clean paths.
func Load(explicitPath string, overrides Overrides) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath, overrides.ProjectDir)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	if dir := strings.TrimSpace(overrides.ProjectDir); dir != "" {
		loaded.Config.ProjectDir = dir
	}
	if err := anchorPaths(&loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("config %q: %w", resolvedPath, err)
	}
	return loaded, nil
}

// anchorPaths makes project_dir absolute and normalizes marker_path, which
// editor settings may spell with backslashes, to a clean relative path.
func anchorPaths(cfg *Config) error {
	dir := expandHome(cfg.ProjectDir)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project_dir: %w", err)
	}
	cfg.ProjectDir = abs

	marker := filepath.Clean(strings.ReplaceAll(cfg.MarkerPath, `\`, "/"))
	if marker == "." || marker == ".." || strings.HasPrefix(marker, "../") {
		return fmt.Errorf("marker_path %q leaves project_dir", cfg.MarkerPath)
	}
	cfg.MarkerPath = marker
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
