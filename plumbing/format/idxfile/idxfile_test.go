package idxfile

import (
	"testing"

	"github.com/go-git/git-engine/plumbing"
	"github.com/stretchr/testify/require"
)

func TestWriterEncodeDecodeRoundTrip(t *testing.T) {
	w := &Writer{}
	w.Add(plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 12, 0x1111)
	w.Add(plumbing.NewHash("0000000000000000000000000000000000000a"), 34, 0x2222)
	w.Add(plumbing.NewHash("ffffffffffffffffffffffffffffffffffffffff"), 9999999999, 0x3333)

	packSHA := plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	b, err := w.Encode(packSHA)
	require.NoError(t, err)

	idx, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, packSHA, idx.PackSHA)
	require.Equal(t, 3, idx.Count())

	// The fan-out table is monotonically non-decreasing.
	for i := 1; i < fanoutEntries; i++ {
		require.GreaterOrEqual(t, idx.Fanout[i], idx.Fanout[i-1])
	}

	off, ok := idx.FindOffset(plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.True(t, ok)
	require.Equal(t, uint64(12), off)

	off, ok = idx.FindOffset(plumbing.NewHash("ffffffffffffffffffffffffffffffffffffffff"))
	require.True(t, ok)
	require.Equal(t, uint64(9999999999), off)

	_, ok = idx.FindOffset(plumbing.NewHash("1234567890123456789012345678901234567890"))
	require.False(t, ok)
}

func TestMultiPackIndex(t *testing.T) {
	w1 := &Writer{}
	w1.Add(plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 1, 1)
	b1, _ := w1.Encode(plumbing.NewHash("1111111111111111111111111111111111111111111111111111111111111111111111"[:40]))
	idx1, _ := Decode(b1)

	w2 := &Writer{}
	w2.Add(plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"), 2, 2)
	b2, _ := w2.Encode(plumbing.NewHash("2222222222222222222222222222222222222222"))
	idx2, _ := Decode(b2)

	midx := NewMultiPackIndex([]string{"pack-1.pack", "pack-2.pack"}, []*Index{idx1, idx2})

	packIdx, offset, ok := midx.FindOffset(plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	require.True(t, ok)
	require.Equal(t, 1, packIdx)
	require.Equal(t, uint64(2), offset)
}
