package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// ErrNoProjectFile reports a project directory without a .uproject file.
var ErrNoProjectFile = errors.New("no .uproject file found")

// ProjectFile returns the first *.uproject in ProjectDir, by name.
func (c Config) ProjectFile() (string, error) {
	matches, err := filepath.Glob(filepath.Join(c.ProjectDir, "*.uproject"))
	if err != nil {
		return "", fmt.Errorf("search project dir: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoProjectFile, c.ProjectDir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// EditorArgv expands {project} in editor_cmd to the absolute project file.
func (c Config) EditorArgv() ([]string, error) {
	if !c.Editor.Uses(PlaceholderProject) {
		return c.Editor.Expand(nil), nil
	}

	project, err := c.ProjectFile()
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(project); err == nil {
		project = abs
	}
	return c.Editor.Expand(map[Placeholder]string{PlaceholderProject: project}), nil
}
