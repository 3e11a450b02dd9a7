// Package opener hands editor "open" requests to the configured IDE command.
package opener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/ueagent/internal/config"
)

// ErrNoCommand reports an open request with no command configured for it.
var ErrNoCommand = errors.New("no open command configured")

const commandTimeout = 5 * time.Second

// Opener runs open_file_cmd and open_symbol_cmd with placeholders expanded.
type Opener struct {
	projectDir string
	fileCmd    config.CommandConfig
	symbolCmd  config.CommandConfig
	logger     *slog.Logger
}

// New constructs an opener from runtime config.
func New(cfg config.Config, logger *slog.Logger) *Opener {
	return &Opener{
		projectDir: cfg.ProjectDir,
		fileCmd:    cfg.OpenFile,
		symbolCmd:  cfg.OpenSymbol,
		logger:     logger,
	}
}

// OpenFile opens path at line. Relative paths resolve against the project.
func (o *Opener) OpenFile(ctx context.Context, path string, line int) error {
	if len(o.fileCmd.Argv) == 0 {
		return fmt.Errorf("%w: open_file_cmd", ErrNoCommand)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("open file: empty path")
	}
	if !filepath.IsAbs(path) && o.projectDir != "" {
		path = filepath.Join(o.projectDir, path)
	}
	if line <= 0 {
		line = 1
	}

	return o.run(ctx, o.fileCmd.Expand(map[config.Placeholder]string{
		config.PlaceholderFile: path,
		config.PlaceholderLine: strconv.Itoa(line),
	}))
}

// OpenSymbol opens a class or member symbol such as AHero::Jump.
func (o *Opener) OpenSymbol(ctx context.Context, symbol string) error {
	if len(o.symbolCmd.Argv) == 0 {
		return fmt.Errorf("%w: open_symbol_cmd", ErrNoCommand)
	}
	if strings.TrimSpace(symbol) == "" {
		return errors.New("open symbol: empty symbol")
	}

	return o.run(ctx, o.symbolCmd.Expand(map[config.Placeholder]string{
		config.PlaceholderSymbol: symbol,
	}))
}

// Symbol renders class and optional member as Class or Class::Member.
func Symbol(class, member string) string {
	if member == "" {
		return class
	}
	return class + "::" + member
}

func (o *Opener) run(ctx context.Context, argv []string) error {
	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if o.logger != nil {
		o.logger.Debug("running open command", "argv", argv)
	}
	return runCommand(runCtx, argv)
}

func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("run %s: %w", argv[0], err)
		}
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
	}
	return nil
}
