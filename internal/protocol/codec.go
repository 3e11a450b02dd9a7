// Package protocol implements the line-oriented editor agent wire format:
// command framing, the versioned handshake, and the typed message set.
package protocol

import (
	"strings"
)

// Command is one decoded wire line.
type Command struct {
	Name string
	Args []string
}

// String renders the command in wire form.
func (c Command) String() string {
	return Encode(c.Name, c.Args)
}

var argEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
)

// Encode frames a command as a single line without the trailing newline.
// Every argument is double-quoted whether or not it needs to be.
func Encode(name string, args []string) string {
	if len(args) == 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name)
	for _, arg := range args {
		b.WriteString(` "`)
		b.WriteString(argEscaper.Replace(arg))
		b.WriteByte('"')
	}
	return b.String()
}

// Decode splits a wire line into its command name and arguments. It never
// fails: an unbalanced quote swallows the rest of the line as one argument.
func Decode(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	name, rest, found := strings.Cut(line, " ")
	if !found {
		return Command{Name: line}
	}
	return Command{Name: name, Args: tokenize(rest)}
}

// tokenize splits on unquoted spaces. A quote only toggles its own kind while
// the other kind is inactive; backslash escapes apply inside double quotes.
// Every delimiter is ASCII, so it walks bytes and leaves other bytes intact.
func tokenize(input string) []string {
	var (
		args    []string
		current strings.Builder
		quote   byte
		started bool
		escape  bool
	)

	flush := func() {
		if !started {
			return
		}
		args = append(args, current.String())
		current.Reset()
		started = false
	}

	for i := 0; i < len(input); i++ {
		r := input[i]
		switch {
		case escape:
			switch r {
			case 'n':
				current.WriteByte('\n')
			case 'r':
				current.WriteByte('\r')
			default:
				current.WriteByte(r)
			}
			escape = false
		case quote == '"' && r == '\\':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteByte(r)
		case r == '\'' || r == '"':
			quote = r
			started = true
		case r == ' ':
			flush()
		default:
			current.WriteByte(r)
			started = true
		}
	}

	if escape {
		current.WriteByte('\\')
	}
	flush()
	return args
}
