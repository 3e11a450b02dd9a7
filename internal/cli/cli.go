// Package cli parses ueagent command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandWatch     Command = "watch"
	CommandEngine    Command = "engine"
	CommandHotReload Command = "hotreload"
	CommandEndPIE    Command = "endpie"
	CommandPlay      Command = "play"
	CommandFocus     Command = "focus"
	CommandStatus    Command = "status"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandWatch:     {},
	CommandEngine:    {},
	CommandHotReload: {},
	CommandEndPIE:    {},
	CommandPlay:      {},
	CommandFocus:     {},
	CommandStatus:    {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

// Forwarded reports whether the command is relayed to the running daemon.
func (c Command) Forwarded() bool {
	switch c {
	case CommandHotReload, CommandEndPIE, CommandPlay, CommandFocus, CommandStatus:
		return true
	default:
		return false
	}
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ProjectDir string
	Mobile     bool
	// Args are passed through to the standalone game by play.
	Args     []string
	ShowHelp bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--mobile":
			parsed.Mobile = true
		case "--config", "--project":
			i++
			if i >= len(args) {
				if arg == "--config" {
					return Parsed{}, errors.New("--config requires a path")
				}
				return Parsed{}, errors.New("--project requires a directory")
			}
			if arg == "--config" {
				parsed.ConfigPath = args[i]
			} else {
				parsed.ProjectDir = args[i]
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if cmd == CommandPlay {
				parsed.Mobile, parsed.Args = parsePlayTail(parsed.Mobile, args[i+1:])
				i = len(args)
				continue
			}
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	if parsed.Mobile && parsed.Command != CommandPlay {
		return Parsed{}, errors.New("--mobile is only valid with play")
	}
	return parsed, nil
}

// parsePlayTail consumes leading --mobile flags and an optional "--"
// separator; everything else belongs to the game.
func parsePlayTail(mobile bool, tail []string) (bool, []string) {
	i := 0
	for ; i < len(tail); i++ {
		if tail[i] == "--" {
			i++
			break
		}
		if tail[i] != "--mobile" {
			break
		}
		mobile = true
	}
	if i >= len(tail) {
		return mobile, nil
	}
	return mobile, append([]string(nil), tail[i:]...)
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--project DIR] <command>

Commands:
  watch       Follow the editor marker and serve control commands
  engine      Run a local engine agent for testing the link
  hotreload   Ask the editor to recompile game code
  endpie      Stop the current play-in-editor session
  play        Start a standalone game: play [--mobile] [--] [ARGS...]
  focus       Launch the editor if needed and raise its window
  status      Print the editor link state
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/ueagent/config.jsonc)
  --project DIR   Project directory (overrides project_dir)
  --mobile        Launch the standalone game as a mobile preview (play only)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
