// Package idxfile implements the packfile index format (idx v2): a
// 256-entry fan-out table, sorted OIDs, CRC32s, and offsets,
// supporting O(log n) lookup of an object's pack offset by OID.
package idxfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/git-engine/plumbing"
)

var (
	idxMagic = []byte{0xff, 't', 'O', 'c'}

	ErrUnsupportedVersion = errors.New("idxfile: unsupported version")
	ErrMalformedIdxFile    = errors.New("idxfile: malformed index file")
)

const (
	fanoutEntries = 256
	offsetsIndexed = 1 << 31 // MSB set => index into 8-byte offset table
)

// Entry is one object's position in an idx file.
type Entry struct {
	Hash   plumbing.Hash
	CRC32  uint32
	Offset uint64
}

// Index is a fully-parsed, in-memory idx v2 file.
type Index struct {
	Version   uint32
	Fanout    [fanoutEntries]uint32
	Entries   []Entry // sorted by Hash
	PackSHA   plumbing.Hash
	IdxSHA    plumbing.Hash
}

// Decode parses the bytes of an idx v2 file.
func Decode(b []byte) (*Index, error) {
	if len(b) < 4+4+fanoutEntries*4+2*plumbing.HashSize {
		return nil, ErrMalformedIdxFile
	}
	if !bytes.Equal(b[:4], idxMagic) {
		return nil, fmt.Errorf("%w: not an idx v2 file", ErrMalformedIdxFile)
	}

	version := binary.BigEndian.Uint32(b[4:8])
	if version != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	idx := &Index{Version: version}
	off := 8
	for i := 0; i < fanoutEntries; i++ {
		idx.Fanout[i] = binary.BigEndian.Uint32(b[off : off+4])
		off += 4
	}

	n := int(idx.Fanout[fanoutEntries-1])
	idx.Entries = make([]Entry, n)

	for i := 0; i < n; i++ {
		copy(idx.Entries[i].Hash[:], b[off:off+plumbing.HashSize])
		off += plumbing.HashSize
	}
	for i := 0; i < n; i++ {
		idx.Entries[i].CRC32 = binary.BigEndian.Uint32(b[off : off+4])
		off += 4
	}

	type wideRef struct {
		entryIndex int
		wideOffset uint32
	}
	var wide []wideRef
	for i := 0; i < n; i++ {
		v := binary.BigEndian.Uint32(b[off : off+4])
		off += 4
		if v&offsetsIndexed != 0 {
			wide = append(wide, wideRef{i, v &^ offsetsIndexed})
		} else {
			idx.Entries[i].Offset = uint64(v)
		}
	}

	for _, w := range wide {
		o := off + int(w.wideOffset)*8
		if o+8 > len(b) {
			return nil, ErrMalformedIdxFile
		}
		idx.Entries[w.entryIndex].Offset = binary.BigEndian.Uint64(b[o : o+8])
	}

	// Trailer follows the (possibly-absent) wide offset table.
	trailerStart := len(b) - 2*plumbing.HashSize
	if trailerStart < off {
		return nil, ErrMalformedIdxFile
	}
	copy(idx.PackSHA[:], b[trailerStart:trailerStart+plumbing.HashSize])
	copy(idx.IdxSHA[:], b[trailerStart+plumbing.HashSize:])

	return idx, nil
}

// FindOffset returns the pack offset for h, or false if not present. It
// narrows via the fan-out table then binary-searches the sorted OIDs.
func (idx *Index) FindOffset(h plumbing.Hash) (uint64, bool) {
	lo := 0
	if h[0] > 0 {
		lo = int(idx.Fanout[h[0]-1])
	}
	hi := int(idx.Fanout[h[0]])

	i := sort.Search(hi-lo, func(i int) bool {
		return idx.Entries[lo+i].Hash.Compare(h[:]) >= 0
	})
	i += lo
	if i < hi && idx.Entries[i].Hash == h {
		return idx.Entries[i].Offset, true
	}
	return 0, false
}

// FindHashesByPrefix returns every entry whose hash starts with the given
// prefix bytes and nibble count, used by short-OID expansion.
func (idx *Index) FindHashesByPrefix(prefix []byte, nibbles int) []plumbing.Hash {
	first := prefix[0]
	lo := 0
	if first > 0 {
		lo = int(idx.Fanout[first-1])
	}
	hi := int(idx.Fanout[first])

	var out []plumbing.Hash
	for i := lo; i < hi; i++ {
		if hasPrefix(idx.Entries[i].Hash, prefix, nibbles) {
			out = append(out, idx.Entries[i].Hash)
		}
	}
	return out
}

func hasPrefix(h plumbing.Hash, prefix []byte, nibbles int) bool {
	fullBytes := nibbles / 2
	for i := 0; i < fullBytes; i++ {
		if h[i] != prefix[i] {
			return false
		}
	}
	if nibbles%2 == 1 {
		return h[fullBytes]>>4 == prefix[fullBytes]>>4
	}
	return true
}

// Count returns the number of objects indexed.
func (idx *Index) Count() int { return len(idx.Entries) }
