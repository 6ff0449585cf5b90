package dotgit

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/go-git/git-engine/plumbing"
)

// TestReadPackedRefsFixture: a packed-refs file
// with a remote-tracking branch, a tag, and the tag's peeled line decodes
// into exactly those three values.
func TestReadPackedRefsFixture(t *testing.T) {
	fs := memfs.New()
	content := "# pack-refs with: peeled fully-peeled sorted \n" +
		"dba5b92408549e55c36e16c89e2b4a4e4cbc8c8f refs/remotes/origin/master\n" +
		"0a117b8378f5e5323d15694c7eb8f62c4bea152b refs/tags/v0.0.10\n" +
		"^ce03143bd6567fc7063549c204e877834cda5645\n"
	require.NoError(t, util.WriteFile(fs, "packed-refs", []byte(content), 0644))

	dg := New(fs)
	refs, peeled, err := dg.PackedRefs()
	require.NoError(t, err)
	require.Len(t, refs, 2)

	byName := map[plumbing.ReferenceName]plumbing.Hash{}
	for _, r := range refs {
		byName[r.Name()] = r.Hash()
	}
	require.Equal(t,
		plumbing.NewHash("dba5b92408549e55c36e16c89e2b4a4e4cbc8c8f"),
		byName[plumbing.ReferenceName("refs/remotes/origin/master")])
	require.Equal(t,
		plumbing.NewHash("0a117b8378f5e5323d15694c7eb8f62c4bea152b"),
		byName[plumbing.ReferenceName("refs/tags/v0.0.10")])
	require.Equal(t,
		plumbing.NewHash("ce03143bd6567fc7063549c204e877834cda5645"),
		peeled[plumbing.ReferenceName("refs/tags/v0.0.10")])
}

// Loose refs override packed ones with the same name when reading.
func TestLooseRefWinsOverPacked(t *testing.T) {
	fs := memfs.New()
	packed := "1111111111111111111111111111111111111111 refs/heads/main\n"
	require.NoError(t, util.WriteFile(fs, "packed-refs", []byte(packed), 0644))

	dg := New(fs)
	name := plumbing.ReferenceName("refs/heads/main")

	// Only packed: resolves to the packed value.
	ref, err := dg.Ref(name)
	require.NoError(t, err)
	require.Equal(t, plumbing.NewHash("1111111111111111111111111111111111111111"), ref.Hash())

	// Write a loose version; it now wins.
	loose := plumbing.NewHashReference(name, plumbing.NewHash("2222222222222222222222222222222222222222"))
	require.NoError(t, dg.SetRef(loose, nil))

	ref, err = dg.Ref(name)
	require.NoError(t, err)
	require.Equal(t, plumbing.NewHash("2222222222222222222222222222222222222222"), ref.Hash())
}

// Deleting a ref removes both its loose file and its packed-refs line.
func TestRemoveRefRewritesPackedRefs(t *testing.T) {
	fs := memfs.New()
	packed := "1111111111111111111111111111111111111111 refs/heads/doomed\n" +
		"3333333333333333333333333333333333333333 refs/heads/other\n"
	require.NoError(t, util.WriteFile(fs, "packed-refs", []byte(packed), 0644))

	dg := New(fs)
	require.NoError(t, dg.RemoveRef(plumbing.ReferenceName("refs/heads/doomed")))

	_, err := dg.Ref(plumbing.ReferenceName("refs/heads/doomed"))
	require.Equal(t, plumbing.ErrReferenceNotFound, err)

	// The surviving packed ref is untouched.
	ref, err := dg.Ref(plumbing.ReferenceName("refs/heads/other"))
	require.NoError(t, err)
	require.Equal(t, plumbing.NewHash("3333333333333333333333333333333333333333"), ref.Hash())
}

// TestRefDirectoryConflict covers the directory/file collision policy: a
// ref cannot be created where an existing ref occupies the name as a
// directory, or vice versa.
func TestRefDirectoryConflict(t *testing.T) {
	dg := New(memfs.New())

	nested := plumbing.ReferenceName("refs/heads/a/b")
	require.NoError(t, dg.SetRef(plumbing.NewHashReference(nested, plumbing.NewHash("1111111111111111111111111111111111111111")), nil))

	parent := plumbing.ReferenceName("refs/heads/a")
	err := dg.SetRef(plumbing.NewHashReference(parent, plumbing.NewHash("2222222222222222222222222222222222222222")), nil)
	var conflict *RefDirectoryConflict
	require.ErrorAs(t, err, &conflict)
}
