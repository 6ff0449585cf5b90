package packfile

import (
	"bytes"
	"encoding/binary"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/idxfile"
	ehash "github.com/go-git/git-engine/plumbing/hash"
)

// EncodeObject is one object to be written into a new packfile.
type EncodeObject struct {
	Hash    plumbing.Hash
	Type    plumbing.ObjectType
	Content []byte
}

// Encode writes objs as a packfile Every object is written
// whole (no delta compression): correctness does not depend on deltas,
// which are a transport-size optimisation go-git's own encoder makes
// opt-in via EncoderOptions. This keeps the wire format identical while
// trimming the combinatorial delta-selection search out of scope.
func Encode(objs []EncodeObject) ([]byte, []idxfile.ObjectEntry, error) {
	var buf bytes.Buffer
	buf.Write(signature)

	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], VersionSupported)
	buf.Write(verBuf[:])

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(objs)))
	buf.Write(countBuf[:])

	entries := make([]idxfile.ObjectEntry, 0, len(objs))

	for _, o := range objs {
		offset := uint64(buf.Len())
		writeObjectHeader(&buf, o.Type, len(o.Content))

		deflated, err := ehash.Deflate(o.Content, -1)
		if err != nil {
			return nil, nil, err
		}
		buf.Write(deflated)

		entries = append(entries, idxfile.ObjectEntry{
			Hash:   o.Hash,
			Offset: offset,
			CRC32:  crc32Of(deflated),
		})
	}

	sum := ehash.Sum(buf.Bytes())
	buf.Write(sum[:])

	return buf.Bytes(), entries, nil
}

// writeObjectHeader writes the variable-length type+size header (the
// inverse of Scanner.NextObjectHeader for non-delta entries).
func writeObjectHeader(buf *bytes.Buffer, t plumbing.ObjectType, size int) {
	firstByte := byte(t) << firstLengthBits
	rem := size >> firstLengthBits
	firstByte |= byte(size) & 0x0f

	if rem > 0 {
		firstByte |= maskContinue
	}
	buf.WriteByte(firstByte)

	for rem > 0 {
		b := byte(rem) & maskLength
		rem >>= lengthBits
		if rem > 0 {
			b |= maskContinue
		}
		buf.WriteByte(b)
	}
}
