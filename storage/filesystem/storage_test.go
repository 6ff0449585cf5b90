package filesystem

import (
	"testing"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/packfile"
	"github.com/go-git/git-engine/storage/filesystem/dotgit"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadLooseThroughStorage(t *testing.T) {
	dg := dotgit.New(memfs.New())
	s, err := NewStorage(dg)
	require.NoError(t, err)

	h, err := s.Write(plumbing.BlobObject, []byte("hello world"))
	require.NoError(t, err)

	has, err := s.Has(h)
	require.NoError(t, err)
	require.True(t, has)

	typ, content, err := s.Read(h)
	require.NoError(t, err)
	require.Equal(t, plumbing.BlobObject, typ)
	require.Equal(t, []byte("hello world"), content)
}

func TestInstallPackThenReadThroughStorage(t *testing.T) {
	dg := dotgit.New(memfs.New())
	s, err := NewStorage(dg)
	require.NoError(t, err)

	blobOid := plumbing.NewHash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	objs := []packfile.EncodeObject{
		{Hash: blobOid, Type: plumbing.BlobObject, Content: []byte{}},
	}
	packBytes, _, err := packfile.Encode(objs)
	require.NoError(t, err)

	require.NoError(t, s.InstallPack(packBytes))

	has, err := s.Has(blobOid)
	require.NoError(t, err)
	require.True(t, has)

	typ, content, err := s.Read(blobOid)
	require.NoError(t, err)
	require.Equal(t, plumbing.BlobObject, typ)
	require.Equal(t, []byte{}, content)
}

func TestExpandShortOid(t *testing.T) {
	dg := dotgit.New(memfs.New())
	s, err := NewStorage(dg)
	require.NoError(t, err)

	h, err := s.Write(plumbing.BlobObject, []byte("some content"))
	require.NoError(t, err)

	matches, err := s.ExpandShortOid(h.String()[:6])
	require.NoError(t, err)
	require.Contains(t, matches, h)
}
