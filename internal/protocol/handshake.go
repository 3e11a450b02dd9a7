package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Tag identifies the agent protocol on the greeting line.
	Tag = "UNREALAGENT"
	// Version is bumped on any incompatible wire change.
	Version = "1"
)

// ErrHandshake reports a greeting line that does not match the expected peer.
var ErrHandshake = errors.New("handshake rejected")

// Role is the side of the connection a process plays.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleServer Role = "SERVER"
)

// Peer returns the role expected on the other end.
func (r Role) Peer() Role {
	if r == RoleClient {
		return RoleServer
	}
	return RoleClient
}

// HandshakeLine builds the greeting a side writes before reading anything.
func HandshakeLine(role Role, pid int) string {
	return fmt.Sprintf("%s %s %s %d", Tag, role, Version, pid)
}

// ParseHandshake validates a peer greeting and returns the peer process id.
func ParseHandshake(line string, expect Role) (int, error) {
	line = strings.TrimRight(line, "\r\n")
	prefix := Tag + " " + string(expect) + " " + Version + " "
	if !strings.HasPrefix(line, prefix) {
		return 0, fmt.Errorf("%w: unexpected greeting %q", ErrHandshake, line)
	}

	fields := strings.Fields(line)
	pid, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid peer pid in %q", ErrHandshake, line)
	}
	return pid, nil
}
