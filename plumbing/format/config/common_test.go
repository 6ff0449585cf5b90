package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeThenEncodeRoundTrip(t *testing.T) {
	input := "[core]\n\trepositoryformatversion = 0\n\tbare = false\n[remote \"origin\"]\n\turl = https://example.com/repo.git\n\tfetch = +refs/heads/*:refs/remotes/origin/*\n"

	cfg := New()
	require.NoError(t, NewDecoder(strings.NewReader(input)).Decode(cfg))

	require.Equal(t, "0", cfg.GetOption("core", NoSubsection, "repositoryformatversion"))
	require.Equal(t, "https://example.com/repo.git", cfg.GetOption("remote", "origin", "url"))

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(cfg))

	cfg2 := New()
	require.NoError(t, NewDecoder(strings.NewReader(buf.String())).Decode(cfg2))
	require.Equal(t, "https://example.com/repo.git", cfg2.GetOption("remote", "origin", "url"))
}

func TestSetOptionReplacesExistingValues(t *testing.T) {
	s := &Section{Name: "core"}
	s.AddOption("bare", "true")
	s.SetOption("bare", "false")
	require.Equal(t, "false", s.GetOption("bare"))
	require.Len(t, s.Options, 1)
}

func TestMultiValuedOptionPreservesOrder(t *testing.T) {
	s := &Section{Name: "remote"}
	s.AddOption("fetch", "+refs/heads/a:refs/remotes/origin/a")
	s.AddOption("fetch", "+refs/heads/b:refs/remotes/origin/b")
	require.Equal(t, []string{
		"+refs/heads/a:refs/remotes/origin/a",
		"+refs/heads/b:refs/remotes/origin/b",
	}, s.GetAllOptions("fetch"))
}
