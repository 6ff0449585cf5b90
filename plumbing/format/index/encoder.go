package index

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
)

// EncodeVersionSupported is the version written when Index.Version is
// zero; otherwise Index.Version is written as is. Entries are always laid
// out without the version-3 extended flag word.
const EncodeVersionSupported = 2

// Encoder writes index files, computing the trailing SHA-1 over
// everything written as it goes.
type Encoder struct {
	w    io.Writer
	hash hash.Hash
}

func NewEncoder(w io.Writer) *Encoder {
	h := sha1.New()
	return &Encoder{w: io.MultiWriter(w, h), hash: h}
}

// Encode writes idx, sorting entries by (Name, Stage)
// ordering invariant, and appends the cache-tree extension if present.
func (e *Encoder) Encode(idx *Index) error {
	sortEntries(idx.Entries)

	if err := e.encodeHeader(idx); err != nil {
		return err
	}
	for _, entry := range idx.Entries {
		if err := e.encodeEntry(entry); err != nil {
			return err
		}
	}
	if idx.Cache != nil {
		if err := e.encodeTreeExtension(idx.Cache); err != nil {
			return err
		}
	}

	sum := e.hash.Sum(nil)
	_, err := e.w.Write(sum)
	return err
}

func sortEntries(entries []*Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j], entries[j-1]); j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func less(a, b *Entry) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Stage < b.Stage
}

func (e *Encoder) encodeHeader(idx *Index) error {
	if _, err := e.w.Write(indexSignature); err != nil {
		return err
	}
	version := idx.Version
	if version == 0 {
		version = EncodeVersionSupported
	}
	if err := binary.Write(e.w, binary.BigEndian, version); err != nil {
		return err
	}
	return binary.Write(e.w, binary.BigEndian, uint32(len(idx.Entries)))
}

func (e *Encoder) encodeEntry(entry *Entry) error {
	sec, nsec := uint32(0), uint32(0)
	if !entry.CreatedAt.IsZero() {
		sec, nsec = uint32(entry.CreatedAt.Unix()), uint32(entry.CreatedAt.Nanosecond())
	}
	msec, mnsec := uint32(0), uint32(0)
	if !entry.ModifiedAt.IsZero() {
		msec, mnsec = uint32(entry.ModifiedAt.Unix()), uint32(entry.ModifiedAt.Nanosecond())
	}

	fields := []uint32{
		sec, nsec, msec, mnsec,
		entry.Dev, entry.Inode,
		uint32(entry.Mode),
		entry.UID, entry.GID, entry.Size,
	}
	for _, f := range fields {
		if err := binary.Write(e.w, binary.BigEndian, f); err != nil {
			return err
		}
	}

	if _, err := e.w.Write(entry.Hash[:]); err != nil {
		return err
	}

	if len(entry.Name) > nameMask {
		return fmt.Errorf("index: entry name %q exceeds %d bytes", entry.Name, nameMask)
	}
	flags := uint16(entry.Stage&0x3) << 12
	flags |= uint16(len(entry.Name)) & nameMask
	if err := binary.Write(e.w, binary.BigEndian, flags); err != nil {
		return err
	}

	if _, err := e.w.Write([]byte(entry.Name)); err != nil {
		return err
	}

	entrySize := entryHeaderLength + len(entry.Name)
	padLen := 8 - entrySize%8
	_, err := e.w.Write(make([]byte, padLen))
	return err
}

func (e *Encoder) encodeTreeExtension(t *Tree) error {
	var payload []byte
	for _, te := range t.Entries {
		payload = append(payload, []byte(te.Path)...)
		payload = append(payload, 0)
		payload = append(payload, []byte(fmt.Sprintf("%d", te.Entries))...)
		payload = append(payload, ' ')
		payload = append(payload, []byte(fmt.Sprintf("%d\n", te.Trees))...)
		if te.Entries >= 0 {
			payload = append(payload, te.Hash[:]...)
		}
	}

	if _, err := e.w.Write(treeExtSignature); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := e.w.Write(payload)
	return err
}
