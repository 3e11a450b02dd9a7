package ipc

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Control commands a CLI invocation forwards to the project's daemon.
const (
	CommandStatus    = "status"
	CommandHotReload = "hotreload"
	CommandEndPIE    = "endpie"
	CommandPlay      = "play"
	CommandFocus     = "focus"
)

var knownCommands = []string{CommandStatus, CommandHotReload, CommandEndPIE, CommandPlay, CommandFocus}

// Link states reported in every response.
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Request is one control command forwarded to the running daemon.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// normalize trims and lowercases the command and rejects names the daemon
// does not serve. Only play carries arguments.
func (r Request) normalize() (Request, error) {
	r.Command = strings.ToLower(strings.TrimSpace(r.Command))
	switch {
	case r.Command == "":
		return r, errors.New("empty command")
	case !slices.Contains(knownCommands, r.Command):
		return r, fmt.Errorf("unknown command: %s", r.Command)
	case len(r.Args) > 0 && r.Command != CommandPlay:
		return r, fmt.Errorf("%s takes no arguments", r.Command)
	}
	return r, nil
}

// Response reports the link state alongside the command outcome.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Succeed(state string, message string) Response {
	return Response{OK: true, State: state, Message: message}
}

// Fail builds an error response carrying the current state.
func Fail(state string, format string, args ...any) Response {
	return Response{OK: false, State: state, Error: fmt.Sprintf(format, args...)}
}
