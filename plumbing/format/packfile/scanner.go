package packfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-git/git-engine/plumbing"
	ehash "github.com/go-git/git-engine/plumbing/hash"
)

// ObjectHeader describes one pack entry's header, before its payload is
// inflated.
type ObjectHeader struct {
	Type       plumbing.ObjectType
	Size       int64
	Offset     int64 // offset of this entry's header within the pack
	OffsetBase int64 // for OffsetDeltaObject: offset of the base entry
	RefBase    plumbing.Hash // for RefDeltaObject: OID of the base object
}

// Scanner reads a packfile byte stream, exposing its header, a sequence of
// entries, and the trailer checksum.
type Scanner struct {
	r      *countingByteReader
	count  uint32
	read   uint32
}

// NewScanner wraps r, which must start at the first byte of a "PACK"
// signature.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: newCountingByteReader(r)}
}

// Header reads and validates the 12-byte pack header, returning the object
// count.
func (s *Scanner) Header() (version, count uint32, err error) {
	var hdr [4]byte
	if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
		return 0, 0, err
	}
	if !isValidSignature(hdr[:]) {
		return 0, 0, ErrBadSignature
	}

	var buf [4]byte
	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		return 0, 0, err
	}
	version = binary.BigEndian.Uint32(buf[:])
	if version != VersionSupported {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		return 0, 0, err
	}
	count = binary.BigEndian.Uint32(buf[:])
	s.count = count

	return version, count, nil
}

// NextObjectHeader parses one entry's variable-length header: type
// (3 bits) and uncompressed size; for ofs-delta a negative offset
// follows; for ref-delta a 20-byte base OID follows.
func (s *Scanner) NextObjectHeader() (*ObjectHeader, error) {
	offset := s.r.N()

	b, err := s.r.ReadByte()
	if err != nil {
		return nil, err
	}

	typ := plumbing.ObjectType((b & maskType) >> firstLengthBits)
	size := int64(b & maskLength & 0x0f)
	shift := firstLengthBits

	for b&maskContinue != 0 {
		b, err = s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		size |= int64(b&maskLength) << shift
		shift += lengthBits
	}

	h := &ObjectHeader{Type: typ, Size: size, Offset: offset}

	switch typ {
	case plumbing.OffsetDeltaObject:
		relOffset, err := readOffsetDelta(s.r)
		if err != nil {
			return nil, err
		}
		h.OffsetBase = offset - relOffset
	case plumbing.RefDeltaObject:
		var base [20]byte
		if _, err := io.ReadFull(s.r, base[:]); err != nil {
			return nil, err
		}
		copy(h.RefBase[:], base[:])
	}

	return h, nil
}

// readOffsetDelta decodes the negative-offset varint used by ofs-delta
// entries: 7 bits per byte, continuation in the MSB, with the git-specific
// "+1 per continuation byte" accumulation rule.
func readOffsetDelta(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	var offset = int64(b & maskLength)
	for b&maskContinue != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		offset = ((offset + 1) << 7) | int64(b&maskLength)
	}

	return offset, nil
}

// ReadObjectContent inflates exactly one entry's deflated payload (of the
// declared uncompressed size h.Size), returning the raw bytes and leaving
// the scanner at the first byte after the entry's deflate stream.
func (s *Scanner) ReadObjectContent(h *ObjectHeader) ([]byte, error) {
	// s.r is an io.ByteReader, so the zlib reader consumes it byte by byte
	// instead of buffering ahead into the next entry.
	zr, err := ehash.NewInflateReader(s.r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZLib, err)
	}
	defer zr.Close()

	buf := make([]byte, h.Size)
	if h.Size > 0 {
		if _, err := io.ReadFull(zr, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrZLib, err)
		}
	}
	// Drain any remaining zlib footer bytes so the reader's internal state
	// consumes exactly what it deflated and the pack position ends at the
	// next entry.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZLib, err)
	}
	return buf, nil
}

// Count returns the object count declared in the header.
func (s *Scanner) Count() uint32 { return s.count }

// Trailer reads the final 20-byte pack checksum.
func (s *Scanner) Trailer() (plumbing.Hash, error) {
	var h plumbing.Hash
	if _, err := io.ReadFull(s.r, h[:]); err != nil {
		return h, err
	}
	return h, nil
}

// Checksum returns the SHA-1 of every byte read so far (used to validate
// the trailer checksum).
func (s *Scanner) Checksum() plumbing.Hash {
	return s.r.Sum()
}

// countingByteReader wraps an io.Reader, tracking position and hashing
// every byte read, so the scanner can both report offsets (for ofs-delta
// resolution) and validate the trailing checksum.
type countingByteReader struct {
	r   io.Reader
	n   int64
	h   *runningHash
	buf [1]byte
}

func newCountingByteReader(r io.Reader) *countingByteReader {
	return &countingByteReader{r: r, h: newRunningHash()}
}

func (c *countingByteReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
		c.n += int64(n)
	}
	return n, err
}

func (c *countingByteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(c, c.buf[:]); err != nil {
		return 0, err
	}
	return c.buf[0], nil
}

func (c *countingByteReader) N() int64 { return c.n }

func (c *countingByteReader) Sum() plumbing.Hash {
	return c.h.Sum()
}
