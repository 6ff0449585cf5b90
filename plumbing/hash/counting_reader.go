package hash

import "io"

// CountingReader wraps an io.Reader and tracks how many bytes have been
// read through it. It is not an io.ByteReader, so a zlib reader placed on
// top of it buffers ahead: N then counts the bytes pulled from r, which
// can run past the end of the deflate stream.
type CountingReader struct {
	r io.Reader
	n int64
}

func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// N returns the number of bytes read so far.
func (c *CountingReader) N() int64 { return c.n }
