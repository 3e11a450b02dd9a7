// Package doctor runs readiness diagnostics for config, project layout, tools,
// and the running daemon.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/ueagent/internal/agent"
	"github.com/rbright/ueagent/internal/config"
	"github.com/rbright/ueagent/internal/health"
)

const healthCheckTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes config, project, tool, and endpoint checks.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkProject(cfg.Config))
	checks = append(checks, checkMarker(cfg.Config.MarkerFile()))
	checks = append(checks, checkCommand(cfg.Config.Editor.Argv, "editor_cmd"))
	if len(cfg.Config.OpenFile.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.OpenFile.Argv, "open_file_cmd"))
	}

	if cfg.Config.Focus.Enable {
		checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))
		checks = append(checks, checkBinary("hyprctl", "editor focus requires hyprctl"))
	}

	if addr := strings.TrimSpace(cfg.Config.Health.Addr); addr != "" {
		checks = append(checks, checkHealth(ctx, addr))
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkProject(cfg config.Config) Check {
	info, err := os.Stat(cfg.ProjectDir)
	if err != nil {
		return Check{Name: "project", Pass: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: "project", Pass: false, Message: fmt.Sprintf("%s is not a directory", cfg.ProjectDir)}
	}
	file, err := cfg.ProjectFile()
	if err != nil {
		return Check{Name: "project", Pass: false, Message: err.Error()}
	}
	return Check{Name: "project", Pass: true, Message: fmt.Sprintf("found %s", file)}
}

// checkMarker reports the editor's published port. A missing marker only
// means the editor is not running.
func checkMarker(path string) Check {
	port, err := agent.ReadMarkerPort(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Check{Name: "marker", Pass: true, Message: fmt.Sprintf("%s absent; editor agent not running", path)}
	case err != nil:
		return Check{Name: "marker", Pass: false, Message: fmt.Sprintf("%s: %v", path, err)}
	default:
		return Check{Name: "marker", Pass: true, Message: fmt.Sprintf("editor agent listening on port %d", port)}
	}
}

func checkHealth(ctx context.Context, addr string) Check {
	status, err := health.Check(ctx, addr, healthCheckTimeout)
	if err != nil {
		return Check{Name: "health", Pass: false, Message: fmt.Sprintf("%s unreachable: %v", addr, err)}
	}
	return Check{Name: "health", Pass: true, Message: fmt.Sprintf("%s reports %s", addr, status)}
}
