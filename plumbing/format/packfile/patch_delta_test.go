package packfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatchDeltaInsertOnly(t *testing.T) {
	base := []byte("hello")
	result := []byte("hello world")

	// delta: base size varint(5), result size varint(11), insert "hello world" (11 bytes)
	delta := []byte{5, 11, 11, 'h', 'e', 'l', 'l', 'o', ' ', 'w', 'o', 'r', 'l', 'd'}

	got, err := PatchDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, result, got)
}

func TestPatchDeltaCopyAndInsert(t *testing.T) {
	base := []byte("the quick brown fox")
	// copy "the quick " (offset 0, size 10), insert "slow ", then copy
	// "brown fox" (offset 10, size 9).
	cmd1 := byte(0x80 | 0x01 | 0x10) // offset byte 0 present, size byte 0 present
	cmd2 := byte(0x80 | 0x01 | 0x10)

	delta := []byte{}
	delta = append(delta, byte(len(base))) // base size varint (fits in 1 byte, <128)
	result := "the quick slow brown fox"
	delta = append(delta, byte(len(result)))
	delta = append(delta, cmd1, 0, 10) // copy offset=0 size=10
	delta = append(delta, byte(5), 's', 'l', 'o', 'w', ' ')
	delta = append(delta, cmd2, 10, 9) // copy offset=10 size=9

	got, err := PatchDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, result, string(got))
}
