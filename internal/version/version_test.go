package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	originalVersion, originalCommit, originalDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = originalVersion, originalCommit, originalDate
	})

	tests := []struct {
		name                  string
		version, commit, date string
		want                  string
	}{
		{
			name:    "unstamped build",
			version: "dev", commit: "none", date: "unknown",
			want: "ueagent dev (commit=none, date=unknown, go=" + runtime.Version() + ")",
		},
		{
			name:    "release build",
			version: "0.4.0", commit: "9f2c1ab", date: "2026-10-19",
			want: "ueagent 0.4.0 (commit=9f2c1ab, date=2026-10-19, go=" + runtime.Version() + ")",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			Version, Commit, Date = tc.version, tc.commit, tc.date
			require.Equal(t, tc.want, String())
		})
	}
}
