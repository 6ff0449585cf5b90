package config

import (
	"strings"
	"testing"

	"github.com/go-git/git-engine/plumbing"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalAndMarshalRoundTrip(t *testing.T) {
	input := "[core]\n\tbare = false\n[user]\n\tname = J Doe\n\temail = j@example.com\n[remote \"origin\"]\n\turl = https://example.com/r.git\n\tfetch = +refs/heads/*:refs/remotes/origin/*\n"

	c, err := ReadConfig(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, "J Doe", c.User.Name)
	require.Len(t, c.Remotes, 1)
	require.Equal(t, []string{"https://example.com/r.git"}, c.Remotes["origin"].URLs)

	require.NoError(t, c.Validate())
}

func TestMergePrecedence(t *testing.T) {
	system := NewConfig()
	system.User.Name = "System User"
	system.Core.FileMode = false

	global := NewConfig()
	global.User.Name = "Global User"

	local := NewConfig()
	local.User.Email = "local@example.com"

	merged := Merge(system, global, local)
	require.Equal(t, "Global User", merged.User.Name)
	require.Equal(t, "local@example.com", merged.User.Email)
}

func TestRefSpecMatchAndDst(t *testing.T) {
	rs := RefSpec("+refs/heads/*:refs/remotes/origin/*")
	require.NoError(t, rs.Validate())
	require.True(t, rs.IsForceUpdate())

	name := plumbing.NewBranchReferenceName("main")
	require.True(t, rs.Match(name))
	require.Equal(t, plumbing.ReferenceName("refs/remotes/origin/main"), rs.Dst(name))
}

func TestRemoteConfigValidateDefaultsFetch(t *testing.T) {
	r := &RemoteConfig{Name: "origin", URLs: []string{"https://example.com/r.git"}}
	require.NoError(t, r.Validate())
	require.Len(t, r.Fetch, 1)
	require.Equal(t, "+refs/heads/*:refs/remotes/origin/*", r.Fetch[0].String())
}
