package object

import (
	"testing"
	"time"

	"github.com/go-git/git-engine/plumbing"
	"github.com/stretchr/testify/require"
)

func TestTreeEncodeDecodeRoundTrip(t *testing.T) {
	tr := &Tree{Entries: []TreeEntry{
		{Name: "b.txt", Mode: plumbing.FileModeRegular, Hash: plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
		{Name: "a", Mode: plumbing.FileModeTree, Hash: plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		{Name: "a.txt", Mode: plumbing.FileModeRegular, Hash: plumbing.NewHash("cccccccccccccccccccccccccccccccccccccccc")},
	}}

	encoded := tr.EncodeCanonical()
	decoded, err := DecodeTree(encoded)
	require.NoError(t, err)
	require.Equal(t, encoded, decoded.EncodeCanonical())
}

// TestTreeCanonicalOrderingIndependentOfInputOrder: sorting by
// the canonical rule yields the same OID regardless of input order, and
// "a.txt" sorts before the directory "a" because "a" compares as "a/".
func TestTreeCanonicalOrderingIndependentOfInputOrder(t *testing.T) {
	entries := []TreeEntry{
		{Name: "a", Mode: plumbing.FileModeTree, Hash: plumbing.NewHash("1111111111111111111111111111111111111111")},
		{Name: "a.txt", Mode: plumbing.FileModeRegular, Hash: plumbing.NewHash("2222222222222222222222222222222222222222")},
	}

	t1 := &Tree{Entries: append([]TreeEntry(nil), entries...)}
	reversed := []TreeEntry{entries[1], entries[0]}
	t2 := &Tree{Entries: reversed}

	require.Equal(t, t1.EncodeCanonical(), t2.EncodeCanonical())

	t1.Sort()
	require.Equal(t, "a.txt", t1.Entries[0].Name)
	require.Equal(t, "a", t1.Entries[1].Name)
}

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	when := time.Unix(1136239445, 0).In(time.FixedZone("", -7*3600))
	c := &Commit{
		TreeHash: plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Parents:  []plumbing.Hash{plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
		Author:   Signature{Name: "A U Thor", Email: "author@example.com", When: when},
		Committer: Signature{Name: "A U Thor", Email: "author@example.com", When: when},
		Message:  "initial commit\n",
	}

	encoded := c.Encode()
	decoded, err := DecodeCommit(encoded)
	require.NoError(t, err)
	require.Equal(t, c.TreeHash, decoded.TreeHash)
	require.Equal(t, c.Parents, decoded.Parents)
	require.Equal(t, c.Message, decoded.Message)
	require.Equal(t, c.Author.Name, decoded.Author.Name)
	require.Equal(t, c.Author.When.Unix(), decoded.Author.When.Unix())
}

func TestCommitWithGPGSignatureRoundTrip(t *testing.T) {
	raw := "tree aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n" +
		"author A U Thor <author@example.com> 1136239445 -0700\n" +
		"committer A U Thor <author@example.com> 1136239445 -0700\n" +
		"gpgsig -----BEGIN PGP SIGNATURE-----\n" +
		" line one\n" +
		" line two\n" +
		" -----END PGP SIGNATURE-----\n" +
		"\n" +
		"signed commit\n"

	c, err := DecodeCommit([]byte(raw))
	require.NoError(t, err)
	require.Contains(t, c.PGPSignature, "BEGIN PGP SIGNATURE")
	require.Contains(t, c.PGPSignature, "line one")
	require.Equal(t, "signed commit\n", c.Message)
}

func TestTagEncodeDecodeRoundTrip(t *testing.T) {
	when := time.Unix(1136239445, 0).In(time.FixedZone("", 0))
	tg := &Tag{
		Object:     plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		ObjectType: plumbing.CommitObject,
		Name:       "v1.0.0",
		Tagger:     Signature{Name: "Tagger", Email: "tagger@example.com", When: when},
		Message:    "release\n",
	}

	encoded := tg.Encode()
	decoded, err := DecodeTag(encoded)
	require.NoError(t, err)
	require.Equal(t, tg.Object, decoded.Object)
	require.Equal(t, tg.ObjectType, decoded.ObjectType)
	require.Equal(t, tg.Name, decoded.Name)
	require.Equal(t, tg.Message, decoded.Message)
}

func TestBlobIdentityEncoding(t *testing.T) {
	payload := []byte("raw bytes")
	b := &Blob{Blob: payload}
	require.Equal(t, payload, b.Encode())
}
