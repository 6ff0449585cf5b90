package filemode

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidModes(t *testing.T) {
	cases := []struct {
		input    string
		expected FileMode
	}{
		{"40000", Dir},
		{"100644", Regular},
		{"100664", Deprecated},
		{"100755", Executable},
		{"120000", Symlink},
		{"160000", Submodule},
		{"0", Empty},
		{"42", FileMode(0o42)},
		{"00000000000100644", Regular},
	}
	for _, c := range cases {
		got, err := New(c.input)
		require.NoError(t, err, c.input)
		require.Equal(t, c.expected, got, c.input)
	}
}

func TestNewInvalidModes(t *testing.T) {
	for _, input := range []string{
		"0x81a4", "-rw-r--r--", "", "-42", "9", "09", "mode", "-100644", "+100644",
	} {
		_, err := New(input)
		require.Error(t, err, input)
	}
}

func TestNewFromOSFileMode(t *testing.T) {
	got, err := NewFromOSFileMode(os.FileMode(0o755))
	require.NoError(t, err)
	require.Equal(t, Executable, got)

	got, err = NewFromOSFileMode(os.FileMode(0o644))
	require.NoError(t, err)
	require.Equal(t, Regular, got)

	got, err = NewFromOSFileMode(os.ModeDir | 0o755)
	require.NoError(t, err)
	require.Equal(t, Dir, got)
}
