package doctor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/ueagent/internal/config"
	"github.com/rbright/ueagent/internal/health"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "abc")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "editor_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	installFakeBin(t, "fake-editor")

	check := checkCommand([]string{"fake-editor", "{project}"}, "editor_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "editor_cmd command is available")
}

func TestCheckProject(t *testing.T) {
	cfg := config.Default()

	cfg.ProjectDir = filepath.Join(t.TempDir(), "missing")
	require.False(t, checkProject(cfg).Pass)

	cfg.ProjectDir = t.TempDir()
	check := checkProject(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "no .uproject")

	require.NoError(t, os.WriteFile(filepath.Join(cfg.ProjectDir, "Shooter.uproject"), []byte("{}"), 0o600))
	check = checkProject(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "Shooter.uproject")
}

func TestCheckMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port")

	check := checkMarker(path)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "not running")

	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o600))
	require.False(t, checkMarker(path).Pass)

	require.NoError(t, os.WriteFile(path, []byte("41234\n"), 0o600))
	check = checkMarker(path)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "port 41234")
}

func TestCheckHealth(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reporter := health.NewReporter()
	reporter.SetConnected(true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- health.Serve(ctx, listener, reporter) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	check := checkHealth(context.Background(), listener.Addr().String())
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "reports serving")
}

func TestCheckHealthUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	check := checkHealth(context.Background(), addr)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "unreachable")
}

func TestRunChecksHyprctlOnlyWhenFocusEnabled(t *testing.T) {
	installFakeBin(t, "hyprctl")
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc123")

	cfg := config.Default()
	cfg.ProjectDir = t.TempDir()
	cfg.Health.Addr = ""

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.True(t, hasCheck(report, "hyprctl"))
	require.True(t, hasCheck(report, "project"))
	require.True(t, hasCheck(report, "marker"))
	require.False(t, hasCheck(report, "health"))

	cfg.Focus.Enable = false
	report = Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.False(t, hasCheck(report, "hyprctl"))
	require.False(t, hasCheck(report, "HYPRLAND_INSTANCE_SIGNATURE"))
}

func hasCheck(report Report, name string) bool {
	for _, check := range report.Checks {
		if check.Name == name {
			return true
		}
	}
	return false
}

func installFakeBin(t *testing.T, name string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
