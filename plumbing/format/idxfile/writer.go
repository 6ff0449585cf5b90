package idxfile

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/go-git/git-engine/plumbing"
	ehash "github.com/go-git/git-engine/plumbing/hash"
)

// ObjectEntry is one object collected while indexing a packfile.
type ObjectEntry struct {
	Hash   plumbing.Hash
	Offset uint64
	CRC32  uint32
}

// Writer accumulates object entries (in the style of go-git's
// packfile-Observer-fed Writer) and produces the idx v2 bytes in Encode.
type Writer struct {
	objects []ObjectEntry
}

// Add records one object's position and checksum.
func (w *Writer) Add(h plumbing.Hash, offset uint64, crc uint32) {
	w.objects = append(w.objects, ObjectEntry{Hash: h, Offset: offset, CRC32: crc})
}

// Encode produces the idx v2 bytes for packSHA: the
// fan-out table is monotonically non-decreasing and the trailer matches.
func (w *Writer) Encode(packSHA plumbing.Hash) ([]byte, error) {
	sort.Slice(w.objects, func(i, j int) bool {
		return w.objects[i].Hash.Compare(w.objects[j].Hash[:]) < 0
	})

	var fanout [fanoutEntries]uint32
	for _, o := range w.objects {
		for b := int(o.Hash[0]); b < fanoutEntries; b++ {
			fanout[b]++
		}
	}

	var wideOffsets []uint64
	var buf bytes.Buffer
	buf.Write(idxMagic)
	writeU32(&buf, 2)
	for _, f := range fanout {
		writeU32(&buf, f)
	}
	for _, o := range w.objects {
		buf.Write(o.Hash[:])
	}
	for _, o := range w.objects {
		writeU32(&buf, o.CRC32)
	}
	for _, o := range w.objects {
		if o.Offset > math.MaxInt32 {
			writeU32(&buf, uint32(offsetsIndexed|uint32(len(wideOffsets))))
			wideOffsets = append(wideOffsets, o.Offset)
			continue
		}
		writeU32(&buf, uint32(o.Offset))
	}
	for _, off := range wideOffsets {
		writeU64(&buf, off)
	}

	buf.Write(packSHA[:])
	idxSHA := ehash.Sum(buf.Bytes())
	buf.Write(idxSHA[:])

	return buf.Bytes(), nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
