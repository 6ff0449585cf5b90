package index

import (
	"bufio"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/go-git/git-engine/plumbing/filemode"
)

const (
	entryHeaderLength = 62
	entryExtended     = 0x4000
	nameMask          = 0x0fff
	intentToAddMask   = 1 << 13
	skipWorktreeMask  = 1 << 14
)

var (
	ErrMalformedSignature = errors.New("index: malformed signature")
	ErrInvalidChecksum    = errors.New("index: invalid checksum")
)

// Decoder reads and decodes index files from an input stream. Only
// versions 2 and 3 are supported; version 4's path-compression scheme and
// the rarer extensions (split-index, untracked-cache, fsmonitor) are out
// of scope.
type Decoder struct {
	buf  *bufio.Reader
	r    io.Reader
	hash hash.Hash

	lastEntry *Entry
}

func NewDecoder(r io.Reader) *Decoder {
	h := sha1.New()
	buf := bufio.NewReader(r)
	return &Decoder{
		buf:  buf,
		r:    io.TeeReader(buf, h),
		hash: h,
	}
}

// Decode parses the whole index file into idx.
func (d *Decoder) Decode(idx *Index) error {
	version, err := d.readHeader()
	if err != nil {
		return err
	}
	if version != 2 && version != 3 {
		return fmt.Errorf("index: %w: version %d", ErrUnsupportedVersion, version)
	}
	idx.Version = version

	var count uint32
	if err := binary.Read(d.r, binary.BigEndian, &count); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		e, err := d.readEntry(idx.Version)
		if err != nil {
			return err
		}
		d.lastEntry = e
		idx.Entries = append(idx.Entries, e)
	}

	return d.readExtensions(idx)
}

func (d *Decoder) readHeader() (uint32, error) {
	var sig [4]byte
	if _, err := io.ReadFull(d.r, sig[:]); err != nil {
		return 0, err
	}
	if string(sig[:]) != string(indexSignature) {
		return 0, ErrMalformedSignature
	}

	var version uint32
	if err := binary.Read(d.r, binary.BigEndian, &version); err != nil {
		return 0, err
	}
	return version, nil
}

func (d *Decoder) readEntry(version uint32) (*Entry, error) {
	e := &Entry{}

	var sec, nsec, msec, mnsec uint32
	for _, field := range []*uint32{&sec, &nsec, &msec, &mnsec, &e.Dev, &e.Inode} {
		if err := binary.Read(d.r, binary.BigEndian, field); err != nil {
			return nil, err
		}
	}

	var mode uint32
	if err := binary.Read(d.r, binary.BigEndian, &mode); err != nil {
		return nil, err
	}
	e.Mode = filemode.FileMode(mode)

	for _, field := range []*uint32{&e.UID, &e.GID, &e.Size} {
		if err := binary.Read(d.r, binary.BigEndian, field); err != nil {
			return nil, err
		}
	}

	var hashBytes [20]byte
	if _, err := io.ReadFull(d.r, hashBytes[:]); err != nil {
		return nil, err
	}
	copy(e.Hash[:], hashBytes[:])

	var flags uint16
	if err := binary.Read(d.r, binary.BigEndian, &flags); err != nil {
		return nil, err
	}

	read := entryHeaderLength

	if sec != 0 || nsec != 0 {
		e.CreatedAt = time.Unix(int64(sec), int64(nsec))
	}
	if msec != 0 || mnsec != 0 {
		e.ModifiedAt = time.Unix(int64(msec), int64(mnsec))
	}
	e.Stage = Stage((flags >> 12) & 0x3)

	if flags&entryExtended != 0 && version == 3 {
		var extended uint16
		if err := binary.Read(d.r, binary.BigEndian, &extended); err != nil {
			return nil, err
		}
		read += 2
		e.IntentToAdd = extended&intentToAddMask != 0
		e.SkipWorktree = extended&skipWorktreeMask != 0
	}

	nameLen := int(flags & nameMask)
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(d.r, name); err != nil {
		return nil, err
	}
	e.Name = string(name)

	entrySize := read + nameLen
	padLen := 8 - entrySize%8
	if _, err := io.CopyN(io.Discard, d.r, int64(padLen)); err != nil {
		return nil, err
	}

	return e, nil
}

func (d *Decoder) readExtensions(idx *Index) error {
	peekLen := 4 + 4 + d.hash.Size()

	for {
		peeked, _ := d.buf.Peek(peekLen)
		if len(peeked) < peekLen {
			break
		}

		if err := d.readExtension(idx); err != nil {
			return err
		}
	}

	return d.readChecksum()
}

func (d *Decoder) readExtension(idx *Index) error {
	var header [4]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return err
	}

	var size uint32
	if err := binary.Read(d.r, binary.BigEndian, &size); err != nil {
		return err
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return err
	}

	if string(header[:]) == string(treeExtSignature) {
		tree, err := decodeTreeExtension(payload)
		if err != nil {
			return err
		}
		idx.Cache = tree
	}
	return nil
}

func (d *Decoder) readChecksum() error {
	expected := d.hash.Sum(nil)
	var got [20]byte
	if _, err := io.ReadFull(d.buf, got[:]); err != nil {
		return err
	}
	for i := range expected {
		if expected[i] != got[i] {
			return ErrInvalidChecksum
		}
	}
	return nil
}

func decodeTreeExtension(b []byte) (*Tree, error) {
	t := &Tree{}
	for len(b) > 0 {
		nul := indexByte(b, 0)
		if nul < 0 {
			return nil, fmt.Errorf("index: malformed TREE extension")
		}
		path := string(b[:nul])
		b = b[nul+1:]

		sp := indexByte(b, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("index: malformed TREE extension")
		}
		entries, err := parseASCIIInt(string(b[:sp]))
		if err != nil {
			return nil, err
		}
		b = b[sp+1:]

		nl := indexByte(b, '\n')
		if nl < 0 {
			return nil, fmt.Errorf("index: malformed TREE extension")
		}
		trees, err := parseASCIIInt(string(b[:nl]))
		if err != nil {
			return nil, err
		}
		b = b[nl+1:]

		te := TreeEntry{Path: path, Entries: entries, Trees: trees}
		if entries >= 0 {
			if len(b) < 20 {
				return nil, fmt.Errorf("index: malformed TREE extension")
			}
			copy(te.Hash[:], b[:20])
			b = b[20:]
		}
		t.Entries = append(t.Entries, te)
	}
	return t, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func parseASCIIInt(s string) (int, error) {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("index: malformed integer %q", s)
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}
