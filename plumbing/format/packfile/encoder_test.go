package packfile

import (
	"bytes"
	"testing"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/idxfile"
	"github.com/stretchr/testify/require"
)

func TestEncodeThenReadRoundTrip(t *testing.T) {
	blobOid, blobRaw := plumbing.NewHash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"), []byte{}
	treeContent := []byte("100644 a.txt\x00" + string(blobOid[:]))
	treeOid := plumbing.NewHash("1111111111111111111111111111111111111111")

	objs := []EncodeObject{
		{Hash: blobOid, Type: plumbing.BlobObject, Content: blobRaw},
		{Hash: treeOid, Type: plumbing.TreeObject, Content: treeContent},
	}

	packBytes, entries, err := Encode(objs)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	w := &idxfile.Writer{}
	for _, e := range entries {
		w.Add(e.Hash, e.Offset, e.CRC32)
	}
	trailer := packBytes[len(packBytes)-20:]
	var packSHA plumbing.Hash
	copy(packSHA[:], trailer)

	idxBytes, err := w.Encode(packSHA)
	require.NoError(t, err)

	idx, err := idxfile.Decode(idxBytes)
	require.NoError(t, err)

	pf := NewPackfile(NewBytesReaderAt(packBytes), idx, nil, 0)
	require.True(t, pf.Has(blobOid))
	require.True(t, pf.Has(treeOid))

	gotType, gotContent, err := pf.Read(treeOid)
	require.NoError(t, err)
	require.Equal(t, plumbing.TreeObject, gotType)
	require.Equal(t, treeContent, gotContent)
}

func TestParseAndIndexRoundTrip(t *testing.T) {
	blobOid := plumbing.NewHash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	objs := []EncodeObject{
		{Hash: blobOid, Type: plumbing.BlobObject, Content: []byte{}},
	}
	packBytes, _, err := Encode(objs)
	require.NoError(t, err)

	parsed, err := ParseAndIndex(bytes.NewReader(packBytes), nil)
	require.NoError(t, err)
	require.Len(t, parsed.Objects, 1)
	require.Equal(t, blobOid, parsed.Objects[0].Hash)

	idxBytes, err := BuildIndex(parsed)
	require.NoError(t, err)
	idx, err := idxfile.Decode(idxBytes)
	require.NoError(t, err)
	require.Equal(t, 1, idx.Count())

	// The trailer checksum matches the preceding bytes.
	require.Equal(t, parsed.PackSHA, idx.PackSHA)
}
