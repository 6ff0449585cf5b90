package convert

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRLFToLF(t *testing.T) {
	var buf bytes.Buffer
	w := NewLFWriter(&buf)
	_, err := w.Write([]byte("one\r\ntwo\r\nthree\n"))
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\nthree\n", buf.String())
}

func TestCRLFToLFSplitAcrossWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewLFWriter(&buf)
	// The CR and LF of one line ending arrive in separate writes.
	_, err := w.Write([]byte("one\r"))
	require.NoError(t, err)
	_, err = w.Write([]byte("\ntwo\n"))
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", buf.String())
}

func TestLoneCRIsPreserved(t *testing.T) {
	var buf bytes.Buffer
	w := NewLFWriter(&buf)
	_, err := w.Write([]byte("one\rtwo\n"))
	require.NoError(t, err)
	require.Equal(t, "one\rtwo\n", buf.String())
}

func TestLFToCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := NewCRLFWriter(&buf)
	_, err := w.Write([]byte("one\ntwo\n"))
	require.NoError(t, err)
	require.Equal(t, "one\r\ntwo\r\n", buf.String())
}

func TestLFToCRLFDoesNotDoubleConvert(t *testing.T) {
	var buf bytes.Buffer
	w := NewCRLFWriter(&buf)
	_, err := w.Write([]byte("already\r\ncrlf\r\n"))
	require.NoError(t, err)
	require.Equal(t, "already\r\ncrlf\r\n", buf.String())
}

func TestGetStatDetectsBinary(t *testing.T) {
	text := strings.Repeat("plain text line\n", 10)
	st, err := GetStat(strings.NewReader(text))
	require.NoError(t, err)
	require.False(t, st.IsBinary())

	st, err = GetStat(bytes.NewReader([]byte{'P', 'K', 0x00, 0x01, 0x02, 0x00}))
	require.NoError(t, err)
	require.True(t, st.IsBinary())
}
