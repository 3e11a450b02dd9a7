package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessageMatrix(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Message
		wantErr error
	}{
		{name: "connected", line: "connected", want: Connected{}},
		{name: "close", line: "close", want: Close{}},
		{name: "ping", line: "ping", want: Ping{}},
		{name: "begin pie default", line: "beginpie", want: BeginPIE{}},
		{name: "begin pie simulating", line: `beginpie "true"`, want: BeginPIE{Simulating: true}},
		{name: "end pie", line: "endpie false", want: EndPIE{}},
		{name: "hot reloaded", line: `hotreloaded "true"`, want: HotReloaded{Success: true}},
		{name: "hot reloaded missing flag", line: "hotreloaded", wantErr: ErrBadArguments},
		{name: "hot reloaded bad flag", line: "hotreloaded maybe", wantErr: ErrBadArguments},
		{name: "local play", line: `beginlocalplay "4242"`, want: LocalPlayStarted{PID: 4242}},
		{name: "local play bad pid", line: "beginlocalplay abc", wantErr: ErrBadArguments},
		{name: "open class", line: `openclass "AHero"`, want: OpenClass{Class: "AHero"}},
		{name: "open function", line: `openfunction "AHero" "Jump"`, want: OpenFunction{Class: "AHero", Function: "Jump"}},
		{name: "open function missing arg", line: `openfunction "AHero"`, wantErr: ErrBadArguments},
		{name: "open property", line: `openproperty "AHero" "Health"`, want: OpenProperty{Class: "AHero", Property: "Health"}},
		{name: "open file", line: `openfile "Source/Hero.cpp"`, want: OpenFile{Path: "Source/Hero.cpp"}},
		{name: "open file with line", line: `openfile "Source/Hero.cpp" "17"`, want: OpenFile{Path: "Source/Hero.cpp", Line: 17}},
		{name: "open file bad line", line: `openfile "a" "x"`, wantErr: ErrBadArguments},
		{name: "hot reload request", line: "hotreload", want: HotReload{}},
		{name: "local play request", line: `playlocal "true" "-log" "-windowed"`, want: BeginLocalPlay{Mobile: true, Args: []string{"-log", "-windowed"}}},
		{name: "local play request defaults", line: "playlocal", want: BeginLocalPlay{}},
		{name: "unknown", line: "teleport", wantErr: ErrUnknownCommand},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(Decode(tc.line))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMessageCommandRoundTrip(t *testing.T) {
	messages := []Message{
		Close{},
		Ping{},
		BeginPIE{Simulating: true},
		BeginPIE{},
		EndPIE{Simulating: true},
		HotReloaded{Success: false},
		LocalPlayStarted{PID: 77},
		OpenClass{Class: "UWidget"},
		OpenFunction{Class: "UWidget", Function: "Tick"},
		OpenProperty{Class: "UWidget", Property: "Visibility"},
		OpenFile{Path: "/tmp/My Game/Source.cpp", Line: 9},
		OpenFile{Path: "Readme.md"},
		HotReload{},
		BeginLocalPlay{Mobile: true, Args: []string{"-game", "map name"}},
		BeginLocalPlay{},
	}

	for _, msg := range messages {
		cmd := msg.Command()
		got, err := Parse(Decode(Encode(cmd.Name, cmd.Args)))
		require.NoError(t, err, cmd.String())
		require.Equal(t, msg, got)
	}
}

func TestHandshakeLineAndParse(t *testing.T) {
	line := HandshakeLine(RoleServer, 1234)
	require.Equal(t, "UNREALAGENT SERVER 1 1234", line)

	pid, err := ParseHandshake(line+"\n", RoleServer)
	require.NoError(t, err)
	require.Equal(t, 1234, pid)
}

func TestParseHandshakeRejections(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "wrong role", line: "UNREALAGENT CLIENT 1 10"},
		{name: "wrong version", line: "UNREALAGENT SERVER 2 10"},
		{name: "wrong tag", line: "HELLO SERVER 1 10"},
		{name: "missing pid", line: "UNREALAGENT SERVER 1"},
		{name: "bad pid", line: "UNREALAGENT SERVER 1 ten"},
		{name: "empty", line: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHandshake(tc.line, RoleServer)
			require.ErrorIs(t, err, ErrHandshake)
		})
	}
}

func TestRolePeer(t *testing.T) {
	require.Equal(t, RoleServer, RoleClient.Peer())
	require.Equal(t, RoleClient, RoleServer.Peer())
}
