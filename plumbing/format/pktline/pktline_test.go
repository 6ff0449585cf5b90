package pktline

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	_, err := WritePacket(&buf, []byte("want deadbeef\n"))
	require.NoError(t, err)

	length, payload, err := ReadPacket(&buf)
	require.NoError(t, err)
	require.Equal(t, 0x12, length)
	require.Equal(t, "want deadbeef\n", string(payload))
}

func TestWriteFlush(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFlush(&buf))
	require.Equal(t, "0000", buf.String())
}

func TestScannerFlushAndEOF(t *testing.T) {
	var buf bytes.Buffer
	_, _ = WritePacketln(&buf, "hello")
	_ = WriteFlush(&buf)

	sc := NewScanner(&buf)
	require.True(t, sc.Scan())
	require.Equal(t, "hello\n", string(sc.Bytes()))
	require.True(t, sc.Scan())
	require.True(t, sc.IsFlush())
	require.False(t, sc.Scan())
	require.NoError(t, sc.Err())
}

// TestDemux: a stream with a normal packet line, a
// 0x01 packfile chunk, a 0x02 progress chunk, and a flush demuxes into the
// expected three channels.
func TestDemuxDataProgressAndFlush(t *testing.T) {
	var buf bytes.Buffer
	_, _ = WritePacketln(&buf, "unpack ok")
	_, _ = WritePacket(&buf, append([]byte{SidebandData}, []byte("packfile")...))
	_, _ = WritePacket(&buf, append([]byte{SidebandProgress}, []byte("hi there")...))
	_ = WriteFlush(&buf)

	d := NewDemux(&buf)
	packBytes, err := readAll(d.Pack())
	require.NoError(t, err)
	require.Equal(t, "packfile", string(packBytes))
	require.Equal(t, "hi there", string(d.Progress()))
	require.NoError(t, d.Err())
}

func TestDemuxErrorFrame(t *testing.T) {
	var buf bytes.Buffer
	_, _ = WritePacket(&buf, append([]byte{SidebandData}, []byte("partial")...))
	_, _ = WritePacket(&buf, append([]byte{SidebandError}, []byte("error in stream\n")...))

	d := NewDemux(&buf)
	packBytes, err := readAll(d.Pack())
	require.NoError(t, err)
	require.Equal(t, "partial", string(packBytes))
	require.Error(t, d.Err())
	require.Equal(t, "error in stream\n", d.Err().Error())
}

func readAll(r io.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
	}
}
