package object

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-git/git-engine/plumbing"
)

var (
	ErrMalformedTree = errors.New("object: malformed tree object")
	ErrEntryNotFound  = errors.New("object: tree entry not found")
)

// TreeEntry is one line of a tree object.
type TreeEntry struct {
	Name string
	Mode plumbing.FileMode
	Hash plumbing.Hash
}

// Tree is an ordered sequence of entries.
type Tree struct {
	Entries []TreeEntry
}

// sortKey returns the byte sequence used for the canonical tree-entry
// ordering: directory entries sort as if they carried a trailing slash.
func sortKey(e TreeEntry) []byte {
	if e.Mode == plumbing.FileModeTree {
		return append([]byte(e.Name), '/')
	}
	return []byte(e.Name)
}

// Sort orders entries by the canonical tree-entry rule: treating
// directory entries as if they had a trailing "/", compare keys
// lexicographically by raw byte.
func (t *Tree) Sort() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return bytes.Compare(sortKey(t.Entries[i]), sortKey(t.Entries[j])) < 0
	})
}

// Encode serialises the tree to its canonical binary form. Entries must
// already be in canonical order (call Sort first); Encode does not sort so
// that callers that already maintain sorted entries avoid the cost.
func (t *Tree) Encode() []byte {
	var buf bytes.Buffer
	for _, e := range t.Entries {
		fmt.Fprintf(&buf, "%s %s\x00", strconv.FormatUint(uint64(e.Mode), 8), e.Name)
		buf.Write(e.Hash[:])
	}
	return buf.Bytes()
}

// EncodeCanonical sorts a copy of the entries and encodes them, guaranteeing
// a stable OID regardless of input order.
func (t *Tree) EncodeCanonical() []byte {
	sorted := &Tree{Entries: append([]TreeEntry(nil), t.Entries...)}
	sorted.Sort()
	return sorted.Encode()
}

// DecodeTree parses a tree object's binary payload.
func DecodeTree(payload []byte) (*Tree, error) {
	t := &Tree{}
	for len(payload) > 0 {
		sp := bytes.IndexByte(payload, ' ')
		if sp < 0 {
			return nil, ErrMalformedTree
		}
		modeStr := string(payload[:sp])
		mode, err := strconv.ParseUint(modeStr, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad mode %q", ErrMalformedTree, modeStr)
		}
		payload = payload[sp+1:]

		nul := bytes.IndexByte(payload, 0)
		if nul < 0 {
			return nil, ErrMalformedTree
		}
		name := string(payload[:nul])
		payload = payload[nul+1:]

		if len(payload) < plumbing.HashSize {
			return nil, ErrMalformedTree
		}
		var h plumbing.Hash
		copy(h[:], payload[:plumbing.HashSize])
		payload = payload[plumbing.HashSize:]

		t.Entries = append(t.Entries, TreeEntry{
			Name: name,
			Mode: plumbing.FileMode(mode),
			Hash: h,
		})
	}
	return t, nil
}

// Entry returns the entry with the given name, or ErrEntryNotFound.
func (t *Tree) Entry(name string) (*TreeEntry, error) {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i], nil
		}
	}
	return nil, ErrEntryNotFound
}
