package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	ProjectDir    *string         `json:"project_dir"`
	MarkerPath    *string         `json:"marker_path"`
	EditorCmd     *string         `json:"editor_cmd"`
	OpenFileCmd   *string         `json:"open_file_cmd"`
	OpenSymbolCmd *string         `json:"open_symbol_cmd"`
	Agent         *jsoncAgent     `json:"agent"`
	Focus         *jsoncFocus     `json:"focus"`
	Health        *jsoncHealth    `json:"health"`
	Indicator     *jsoncIndicator `json:"indicator"`
}

type jsoncAgent struct {
	DialTimeoutMS      *int `json:"dial_timeout_ms"`
	HandshakeTimeoutMS *int `json:"handshake_timeout_ms"`
	SettleDelayMS      *int `json:"settle_delay_ms"`
	RequestTimeoutMS   *int `json:"request_timeout_ms"`
}

type jsoncFocus struct {
	Enable *bool `json:"enable"`
}

type jsoncHealth struct {
	Addr *string `json:"addr"`
}

type jsoncIndicator struct {
	Enable                *bool   `json:"enable"`
	Backend               *string `json:"backend"`
	DesktopAppName        *string `json:"desktop_app_name"`
	SoundEnable           *bool   `json:"sound_enable"`
	SoundConnectedFile    *string `json:"sound_connected_file"`
	SoundDisconnectedFile *string `json:"sound_disconnected_file"`
	SoundReloadFile       *string `json:"sound_reload_file"`
	SoundErrorFile        *string `json:"sound_error_file"`
	ErrorTimeoutMS        *int    `json:"error_timeout_ms"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.ProjectDir != nil {
		cfg.ProjectDir = strings.TrimSpace(*payload.ProjectDir)
	}
	if payload.MarkerPath != nil {
		cfg.MarkerPath = strings.TrimSpace(*payload.MarkerPath)
	}

	commands := []struct {
		key    string
		raw    *string
		target *CommandConfig
	}{
		{key: "editor_cmd", raw: payload.EditorCmd, target: &cfg.Editor},
		{key: "open_file_cmd", raw: payload.OpenFileCmd, target: &cfg.OpenFile},
		{key: "open_symbol_cmd", raw: payload.OpenSymbolCmd, target: &cfg.OpenSymbol},
	}
	for _, command := range commands {
		if command.raw == nil {
			continue
		}
		parsed, err := parseCommand(command.key, *command.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", command.key, err)
		}
		*command.target = parsed
	}

	if payload.Agent != nil {
		setInt(&cfg.Agent.DialTimeoutMS, payload.Agent.DialTimeoutMS)
		setInt(&cfg.Agent.HandshakeTimeoutMS, payload.Agent.HandshakeTimeoutMS)
		setInt(&cfg.Agent.SettleDelayMS, payload.Agent.SettleDelayMS)
		setInt(&cfg.Agent.RequestTimeoutMS, payload.Agent.RequestTimeoutMS)
	}

	if payload.Focus != nil && payload.Focus.Enable != nil {
		cfg.Focus.Enable = *payload.Focus.Enable
	}

	if payload.Health != nil && payload.Health.Addr != nil {
		cfg.Health.Addr = strings.TrimSpace(*payload.Health.Addr)
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		if payload.Indicator.Backend != nil {
			cfg.Indicator.Backend = strings.TrimSpace(*payload.Indicator.Backend)
		}
		if payload.Indicator.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*payload.Indicator.DesktopAppName)
		}
		if payload.Indicator.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *payload.Indicator.SoundEnable
		}
		setString(&cfg.Indicator.SoundConnectedFile, payload.Indicator.SoundConnectedFile)
		setString(&cfg.Indicator.SoundDisconnectedFile, payload.Indicator.SoundDisconnectedFile)
		setString(&cfg.Indicator.SoundReloadFile, payload.Indicator.SoundReloadFile)
		setString(&cfg.Indicator.SoundErrorFile, payload.Indicator.SoundErrorFile)
		setInt(&cfg.Indicator.ErrorTimeoutMS, payload.Indicator.ErrorTimeoutMS)
	}

	return warnings, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
