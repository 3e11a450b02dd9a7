package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// Placeholder is a {name} token substituted into a command template.
type Placeholder string

const (
	PlaceholderProject Placeholder = "{project}"
	PlaceholderFile    Placeholder = "{file}"
	PlaceholderLine    Placeholder = "{line}"
	PlaceholderSymbol  Placeholder = "{symbol}"
)

// commandPlaceholders lists what each command key is expanded with.
var commandPlaceholders = map[string][]Placeholder{
	"editor_cmd":      {PlaceholderProject},
	"open_file_cmd":   {PlaceholderFile, PlaceholderLine},
	"open_symbol_cmd": {PlaceholderSymbol},
}

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// parseCommand tokenizes raw shell-style and rejects placeholders the key is
// never expanded with.
func parseCommand(key, raw string) (CommandConfig, error) {
	argv, err := parseArgv(raw)
	if err != nil {
		return CommandConfig{}, err
	}
	allowed := commandPlaceholders[key]
	for _, arg := range argv {
		for _, token := range placeholderPattern.FindAllString(arg, -1) {
			if !slices.Contains(allowed, Placeholder(token)) {
				return CommandConfig{}, fmt.Errorf("unknown placeholder %s (allowed: %s)", token, joinPlaceholders(allowed))
			}
		}
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func mustParseCommand(key, raw string) CommandConfig {
	cmd, err := parseCommand(key, raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

// Uses reports whether any argument references p.
func (c CommandConfig) Uses(p Placeholder) bool {
	for _, arg := range c.Argv {
		if strings.Contains(arg, string(p)) {
			return true
		}
	}
	return false
}

// Expand returns a copy of Argv with every placeholder in values substituted.
// Substituted text is never re-expanded.
func (c CommandConfig) Expand(values map[Placeholder]string) []string {
	if len(c.Argv) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(values)*2)
	for p, v := range values {
		pairs = append(pairs, string(p), v)
	}
	replacer := strings.NewReplacer(pairs...)

	out := make([]string, len(c.Argv))
	for i, arg := range c.Argv {
		out[i] = replacer.Replace(arg)
	}
	return out
}

func joinPlaceholders(ps []Placeholder) string {
	if len(ps) == 0 {
		return "none"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, " ")
}

// parseArgv splits a command line the way a shell would for quoting and
// backslash escapes. A leading # comments the whole command out.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		argv    []string
		current strings.Builder
		quote   rune
		escape  bool
		started bool
	)

	for _, r := range input {
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape = true
			started = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			started = true
		case unicode.IsSpace(r):
			if started {
				argv = append(argv, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if escape {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	if started {
		argv = append(argv, current.String())
	}
	return argv, nil
}
