package hash

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Deflate zlib-compresses b at the given level (use zlib.DefaultCompression
// for -1). This backs the on-disk loose-object framing.
func Deflate(b []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Inflate decompresses a zlib-framed byte slice in full.
func Inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// NewInflateReader wraps r in a streaming zlib reader. When r is not an
// io.ByteReader the zlib reader buffers it and may read past the end of
// the deflate stream; passing an io.ByteReader leaves r positioned right
// after the stream once the reader has been drained to EOF.
func NewInflateReader(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}

// NewDeflateWriter wraps w in a streaming zlib writer at the given level.
func NewDeflateWriter(w io.Writer, level int) (*zlib.Writer, error) {
	return zlib.NewWriterLevel(w, level)
}
