package git

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidRefName(t *testing.T) {
	valid := []string{
		"refs/heads/master",
		"refs/heads/feature/deep/nesting",
		"refs/tags/v1.0.0",
		"HEAD",
		"refs/remotes/origin/main",
	}
	for _, name := range valid {
		require.True(t, validRefName(name), name)
	}

	invalid := []string{
		"",
		"/refs/heads/x",
		"refs/heads/x/",
		"refs//heads",
		"refs/heads/.hidden",
		"refs/heads/x.lock",
		"refs/heads/a..b",
		"refs/heads/a b",
		"refs/heads/a~b",
		"refs/heads/a^b",
		"refs/heads/a:b",
		"refs/heads/a?b",
		"refs/heads/a*b",
		"refs/heads/a[b",
		"refs/heads/a\\b",
		"refs/heads/a@{b",
		"refs/heads/@",
		"refs/heads/trailing.",
	}
	for _, name := range invalid {
		require.False(t, validRefName(name), name)
	}
}

func TestSanitizeRefName(t *testing.T) {
	cases := map[string]string{
		"has space":    "has-space",
		"a~b^c":        "a-b-c",
		"//a//b//":     "a/b",
		"...":          "unnamed",
		"already-fine": "already-fine",
	}
	for in, want := range cases {
		got := sanitizeRefName(in)
		require.Equal(t, want, got, in)
	}
}
