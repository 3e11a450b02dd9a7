package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv(ConfigEnv, "")

	project := t.TempDir()
	projectConfig := filepath.Join(project, ProjectConfigName)
	require.NoError(t, os.WriteFile(projectConfig, []byte("{}"), 0o600))

	resolved, err := ResolvePath("/tmp/custom.jsonc", project)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.jsonc", resolved)

	t.Setenv(ConfigEnv, "/etc/ueagent/shared.jsonc")
	resolved, err = ResolvePath("", project)
	require.NoError(t, err)
	require.Equal(t, "/etc/ueagent/shared.jsonc", resolved)
	t.Setenv(ConfigEnv, "")

	resolved, err = ResolvePath("", project)
	require.NoError(t, err)
	require.Equal(t, projectConfig, resolved)

	resolved, err = ResolvePath("", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "ueagent", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "ueagent", "config.jsonc"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")
	project := t.TempDir()

	loaded, err := Load(path, Overrides{ProjectDir: project})
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)

	want := Default()
	want.ProjectDir = project
	require.Equal(t, want, loaded.Config)
	require.Equal(t, filepath.Join(project, "Intermediate", "UnrealAgent", "port"), loaded.Config.MarkerFile())
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "project_dir": "/work/Lyra",
  "agent": {
    "settle_delay_ms": 2500
  },
  "health": {
    "addr": ""
  }
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path, Overrides{})
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, "/work/Lyra", loaded.Config.ProjectDir)
	require.Equal(t, 2500, loaded.Config.Agent.SettleDelayMS)
	require.Empty(t, loaded.Config.Health.Addr)
}

func TestLoadProjectOverrideWinsAndAnchorsPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `{
  "project_dir": "/work/Lyra",
  "marker_path": "Saved\\Agent\\.\\port"
}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path, Overrides{ProjectDir: "~/src/Shooter"})
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "src", "Shooter"), loaded.Config.ProjectDir)
	require.Equal(t, "Saved/Agent/port", loaded.Config.MarkerPath)
	require.Equal(t, filepath.Join(home, "src", "Shooter", "Saved", "Agent", "port"), loaded.Config.MarkerFile())
}

func TestLoadRelativeProjectBecomesAbsolute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"project_dir": "Games/Lyra"}`), 0o600))

	loaded, err := Load(path, Overrides{})
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cwd, "Games", "Lyra"), loaded.Config.ProjectDir)
}

func TestLoadProjectConfigFromOverrideDir(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, ProjectConfigName), []byte(`{"agent": {"settle_delay_ms": 0}}`), 0o600))

	loaded, err := Load("", Overrides{ProjectDir: project})
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, filepath.Join(project, ProjectConfigName), loaded.Path)
	require.Zero(t, loaded.Config.Agent.SettleDelayMS)
	require.Equal(t, project, loaded.Config.ProjectDir)
}

func TestLoadRejectsMarkerOutsideProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"marker_path": "Saved/../../port"}`), 0o600))

	_, err := Load(path, Overrides{ProjectDir: t.TempDir()})
	require.Error(t, err)
	require.Contains(t, err.Error(), path)
	require.Contains(t, err.Error(), "leaves project_dir")
}

func TestLoadValidationErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"marker_path": "/abs/port"}`), 0o600))

	_, err := Load(path, Overrides{})
	require.Error(t, err)
	require.Contains(t, err.Error(), path)
	require.Contains(t, err.Error(), "marker_path")
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path, Overrides{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}
