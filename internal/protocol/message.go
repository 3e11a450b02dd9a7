package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// Wire names for every command the agent understands.
const (
	NameConnected      = "connected"
	NameClose          = "close"
	NamePing           = "ping"
	NameBeginPIE       = "beginpie"
	NameEndPIE         = "endpie"
	NameHotReloaded    = "hotreloaded"
	NameLocalPlay      = "beginlocalplay"
	NameOpenClass      = "openclass"
	NameOpenFunction   = "openfunction"
	NameOpenProperty   = "openproperty"
	NameOpenFile       = "openfile"
	NameHotReload      = "hotreload"
	NameBeginLocalPlay = "playlocal"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArguments   = errors.New("bad command arguments")
)

// Message is the closed set of typed commands. Parse converts a decoded line
// into exactly one of the types below.
type Message interface {
	Command() Command
	isMessage()
}

// Connected is synthesized locally once the handshake completes. It is never
// written to the wire.
type Connected struct{}

// Close ends the session gracefully.
type Close struct{}

// Ping is a no-op keepalive.
type Ping struct{}

// BeginPIE reports that play-in-editor started.
type BeginPIE struct {
	Simulating bool
}

// EndPIE reports (engine to IDE) or requests (IDE to engine) the end of play-in-editor.
type EndPIE struct {
	Simulating bool
}

// HotReloaded reports the outcome of a hot reload.
type HotReloaded struct {
	Success bool
}

// LocalPlayStarted reports the process id of a launched local play session.
type LocalPlayStarted struct {
	PID int
}

type OpenClass struct {
	Class string
}

type OpenFunction struct {
	Class    string
	Function string
}

type OpenProperty struct {
	Class    string
	Property string
}

// OpenFile asks the IDE to show a file. Line is zero when unspecified.
type OpenFile struct {
	Path string
	Line int
}

// HotReload asks the engine to recompile and reload game modules.
type HotReload struct{}

// BeginLocalPlay asks the engine to start a standalone play session.
type BeginLocalPlay struct {
	Mobile bool
	Args   []string
}

func (Connected) Command() Command { return Command{Name: NameConnected} }
func (Close) Command() Command     { return Command{Name: NameClose} }
func (Ping) Command() Command      { return Command{Name: NamePing} }
func (HotReload) Command() Command { return Command{Name: NameHotReload} }

func (m BeginPIE) Command() Command {
	if !m.Simulating {
		return Command{Name: NameBeginPIE}
	}
	return Command{Name: NameBeginPIE, Args: []string{"true"}}
}

func (m EndPIE) Command() Command {
	if !m.Simulating {
		return Command{Name: NameEndPIE}
	}
	return Command{Name: NameEndPIE, Args: []string{"true"}}
}

func (m HotReloaded) Command() Command {
	return Command{Name: NameHotReloaded, Args: []string{strconv.FormatBool(m.Success)}}
}

func (m LocalPlayStarted) Command() Command {
	return Command{Name: NameLocalPlay, Args: []string{strconv.Itoa(m.PID)}}
}

func (m OpenClass) Command() Command {
	return Command{Name: NameOpenClass, Args: []string{m.Class}}
}

func (m OpenFunction) Command() Command {
	return Command{Name: NameOpenFunction, Args: []string{m.Class, m.Function}}
}

func (m OpenProperty) Command() Command {
	return Command{Name: NameOpenProperty, Args: []string{m.Class, m.Property}}
}

func (m OpenFile) Command() Command {
	if m.Line <= 0 {
		return Command{Name: NameOpenFile, Args: []string{m.Path}}
	}
	return Command{Name: NameOpenFile, Args: []string{m.Path, strconv.Itoa(m.Line)}}
}

func (m BeginLocalPlay) Command() Command {
	args := make([]string, 0, len(m.Args)+1)
	args = append(args, strconv.FormatBool(m.Mobile))
	args = append(args, m.Args...)
	return Command{Name: NameBeginLocalPlay, Args: args}
}

func (Connected) isMessage()        {}
func (Close) isMessage()            {}
func (Ping) isMessage()             {}
func (BeginPIE) isMessage()         {}
func (EndPIE) isMessage()           {}
func (HotReloaded) isMessage()      {}
func (LocalPlayStarted) isMessage() {}
func (OpenClass) isMessage()        {}
func (OpenFunction) isMessage()     {}
func (OpenProperty) isMessage()     {}
func (OpenFile) isMessage()         {}
func (HotReload) isMessage()        {}
func (BeginLocalPlay) isMessage()   {}

// Parse converts a decoded command into its typed message.
func Parse(cmd Command) (Message, error) {
	switch cmd.Name {
	case NameConnected:
		return Connected{}, nil
	case NameClose:
		return Close{}, nil
	case NamePing:
		return Ping{}, nil
	case NameHotReload:
		return HotReload{}, nil
	case NameBeginPIE:
		simulating, err := optionalBool(cmd, 0)
		if err != nil {
			return nil, err
		}
		return BeginPIE{Simulating: simulating}, nil
	case NameEndPIE:
		simulating, err := optionalBool(cmd, 0)
		if err != nil {
			return nil, err
		}
		return EndPIE{Simulating: simulating}, nil
	case NameHotReloaded:
		if err := requireArgs(cmd, 1); err != nil {
			return nil, err
		}
		success, err := parseBool(cmd, 0)
		if err != nil {
			return nil, err
		}
		return HotReloaded{Success: success}, nil
	case NameLocalPlay:
		if err := requireArgs(cmd, 1); err != nil {
			return nil, err
		}
		pid, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s pid %q", ErrBadArguments, cmd.Name, cmd.Args[0])
		}
		return LocalPlayStarted{PID: pid}, nil
	case NameOpenClass:
		if err := requireArgs(cmd, 1); err != nil {
			return nil, err
		}
		return OpenClass{Class: cmd.Args[0]}, nil
	case NameOpenFunction:
		if err := requireArgs(cmd, 2); err != nil {
			return nil, err
		}
		return OpenFunction{Class: cmd.Args[0], Function: cmd.Args[1]}, nil
	case NameOpenProperty:
		if err := requireArgs(cmd, 2); err != nil {
			return nil, err
		}
		return OpenProperty{Class: cmd.Args[0], Property: cmd.Args[1]}, nil
	case NameOpenFile:
		if err := requireArgs(cmd, 1); err != nil {
			return nil, err
		}
		msg := OpenFile{Path: cmd.Args[0]}
		if len(cmd.Args) > 1 {
			line, err := strconv.Atoi(cmd.Args[1])
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %q", ErrBadArguments, cmd.Name, cmd.Args[1])
			}
			msg.Line = line
		}
		return msg, nil
	case NameBeginLocalPlay:
		mobile, err := optionalBool(cmd, 0)
		if err != nil {
			return nil, err
		}
		msg := BeginLocalPlay{Mobile: mobile}
		if len(cmd.Args) > 1 {
			msg.Args = append([]string(nil), cmd.Args[1:]...)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
}

func requireArgs(cmd Command, n int) error {
	if len(cmd.Args) < n {
		return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrBadArguments, cmd.Name, n, len(cmd.Args))
	}
	return nil
}

func optionalBool(cmd Command, index int) (bool, error) {
	if len(cmd.Args) <= index {
		return false, nil
	}
	return parseBool(cmd, index)
}

func parseBool(cmd Command, index int) (bool, error) {
	value, err := strconv.ParseBool(cmd.Args[index])
	if err != nil {
		return false, fmt.Errorf("%w: %s flag %q", ErrBadArguments, cmd.Name, cmd.Args[index])
	}
	return value, nil
}
