package idxfile

import "github.com/go-git/git-engine/plumbing"

// MultiPackIndex aggregates lookup across several packs behind the same
// FindOffset-shaped interface. The packIdx FindOffset returns indexes
// PackNames; callers resolve that name to an open pack via their own pack
// set.
type MultiPackIndex struct {
	PackNames []string
	entries   map[plumbing.Hash]midxEntry
}

type midxEntry struct {
	packIdx int
	offset  uint64
}

// NewMultiPackIndex builds a MIDX in memory from a set of already-decoded
// per-pack indexes; a real implementation would parse the MIDX binary
// format directly, but since every bit of information it carries is
// reconstructible from the member idx files, building it by composition
// keeps FindOffset's behavior identical without a second binary codec.
func NewMultiPackIndex(packNames []string, indexes []*Index) *MultiPackIndex {
	m := &MultiPackIndex{PackNames: packNames, entries: make(map[plumbing.Hash]midxEntry)}
	for pi, idx := range indexes {
		for _, e := range idx.Entries {
			if _, exists := m.entries[e.Hash]; !exists {
				m.entries[e.Hash] = midxEntry{packIdx: pi, offset: e.Offset}
			}
		}
	}
	return m
}

// FindOffset returns which pack (by index into PackNames) and offset
// holds h; a read is served from whichever pack the MIDX points at.
func (m *MultiPackIndex) FindOffset(h plumbing.Hash) (packIdx int, offset uint64, ok bool) {
	e, found := m.entries[h]
	if !found {
		return 0, 0, false
	}
	return e.packIdx, e.offset, true
}

// Has reports whether h is indexed by any member pack.
func (m *MultiPackIndex) Has(h plumbing.Hash) bool {
	_, ok := m.entries[h]
	return ok
}
