package index

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/filemode"
	"github.com/stretchr/testify/require"
)

func TestEncodeThenDecodeRoundTrip(t *testing.T) {
	idx := &Index{Version: 2}
	e1 := idx.Add("a.txt")
	e1.Hash = plumbing.NewHash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	e1.Mode = filemode.Regular
	e1.Size = 0
	e1.ModifiedAt = time.Unix(1700000000, 0)

	e2 := idx.Add("dir/b.txt")
	e2.Hash = plumbing.NewHash("1111111111111111111111111111111111111111")
	e2.Mode = filemode.Executable

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(idx))

	got := &Index{}
	require.NoError(t, NewDecoder(bytes.NewReader(buf.Bytes())).Decode(got))

	require.Len(t, got.Entries, 2)
	require.Equal(t, "a.txt", got.Entries[0].Name)
	require.Equal(t, "dir/b.txt", got.Entries[1].Name)
	require.Equal(t, e1.Hash, got.Entries[0].Hash)
	require.Equal(t, filemode.Executable, got.Entries[1].Mode)
}

func TestEntryLookupAndRemove(t *testing.T) {
	idx := &Index{Version: 2}
	idx.Add("x.txt")

	e, err := idx.Entry("x.txt")
	require.NoError(t, err)
	require.Equal(t, "x.txt", e.Name)

	removed, err := idx.Remove("x.txt")
	require.NoError(t, err)
	require.Equal(t, "x.txt", removed.Name)

	_, err = idx.Entry("x.txt")
	require.Equal(t, ErrEntryNotFound, err)
}

func TestHasConflicts(t *testing.T) {
	idx := &Index{Version: 2}
	e := idx.Add("conflicted.txt")
	e.Stage = OurMode
	require.True(t, idx.HasConflicts())

	idx2 := &Index{Version: 2}
	idx2.Add("clean.txt")
	require.False(t, idx2.HasConflicts())
}

// Entries written out of order come back sorted by (name, stage) with
// unique keys.
func TestEncodeSortsByNameAndStage(t *testing.T) {
	idx := &Index{Version: 2}

	conflicted := idx.Add("b.txt")
	conflicted.Stage = TheirMode
	conflicted.Hash = plumbing.NewHash("3333333333333333333333333333333333333333")

	a := idx.Add("a.txt")
	a.Hash = plumbing.NewHash("1111111111111111111111111111111111111111")

	ours := idx.Add("b.txt")
	ours.Stage = OurMode
	ours.Hash = plumbing.NewHash("2222222222222222222222222222222222222222")

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(idx))

	got := &Index{}
	require.NoError(t, NewDecoder(bytes.NewReader(buf.Bytes())).Decode(got))
	require.Len(t, got.Entries, 3)

	type key struct {
		name  string
		stage Stage
	}
	seen := map[key]bool{}
	var last key
	for i, e := range got.Entries {
		k := key{e.Name, e.Stage}
		require.False(t, seen[k], "duplicate key %v", k)
		seen[k] = true
		if i > 0 {
			require.True(t, last.name < k.name || (last.name == k.name && last.stage < k.stage),
				"entries out of order: %v then %v", last, k)
		}
		last = k
	}
}

func TestCacheTreeInvalidate(t *testing.T) {
	idx := &Index{Cache: &Tree{Entries: []TreeEntry{
		{Path: "", Entries: 2, Trees: 1},
		{Path: "a", Entries: 1, Trees: 0},
	}}}

	idx.Cache.Invalidate("a/b.txt")

	for _, e := range idx.Cache.Entries {
		require.Equal(t, -1, e.Entries, e.Path)
	}
}
