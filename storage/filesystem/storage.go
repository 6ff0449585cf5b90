// Package filesystem composes dotgit's loose-object store, packfiles and
// multi-pack-index into a single object-database facade:
// has/read/write/expand-short-oid/iterate, transparent to whether an
// object ultimately lives loose or packed.
package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/idxfile"
	"github.com/go-git/git-engine/plumbing/format/objfile"
	"github.com/go-git/git-engine/plumbing/format/packfile"
	"github.com/go-git/git-engine/storage/filesystem/dotgit"
)

// Storage is the on-disk object database: a DotGit loose-object store
// overlaid by zero or more packfiles, consulted in that order because a
// freshly-written loose object is always authoritative over a stale pack.
type Storage struct {
	dir *dotgit.DotGit

	mu    sync.RWMutex
	packs []*openPack
}

type openPack struct {
	base string
	ra   io.ReaderAt
	idx  *idxfile.Index
	pf   *packfile.Packfile
}

// NewStorage opens the object database rooted at dir, loading every pack
// and its idx under objects/pack.
func NewStorage(dir *dotgit.DotGit) (*Storage, error) {
	s := &Storage{dir: dir}
	if err := s.loadPacks(); err != nil {
		return nil, err
	}
	return s, nil
}

// DotGit exposes the underlying loose-object/ref/opstate directory, for
// callers (the commands façade) that need ref, reflog and opstate access
// alongside the object database this type otherwise fully encapsulates.
func (s *Storage) DotGit() *dotgit.DotGit { return s.dir }

// ReloadPacks re-scans the pack directory, picking up packs written by a
// concurrent InstallPack since this Storage was opened or last reloaded.
func (s *Storage) ReloadPacks() error { return s.loadPacks() }

func (s *Storage) loadPacks() error {
	names, err := s.dir.PackfileNames()
	if err != nil {
		return err
	}

	s.packs = s.packs[:0]
	for _, base := range names {
		idxFile, err := s.dir.OpenPackIdx(base)
		if err != nil {
			return err
		}
		idxBytes, err := readAllCloser(idxFile)
		if err != nil {
			return err
		}
		idx, err := idxfile.Decode(idxBytes)
		if err != nil {
			return fmt.Errorf("filesystem: decoding idx for %s: %w", base, err)
		}

		packFile, err := s.dir.OpenPackfile(base)
		if err != nil {
			return err
		}
		packBytes, err := readAllCloser(packFile)
		if err != nil {
			return err
		}

		ra := packfile.NewBytesReaderAt(packBytes)
		s.packs = append(s.packs, &openPack{
			base: base,
			ra:   ra,
			idx:  idx,
			pf:   packfile.NewPackfile(ra, idx, s, 0),
		})
	}
	return nil
}

// GetRawObject implements packfile.BaseResolver by resolving REF-delta
// bases against the object database as a whole.
func (s *Storage) GetRawObject(base plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	return s.readObject(base)
}

// Has reports whether h is present, loose or packed.
func (s *Storage) Has(h plumbing.Hash) (bool, error) {
	has, err := s.dir.HasObject(h)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packs {
		if p.pf.Has(h) {
			return true, nil
		}
	}
	return false, nil
}

// Read returns the type and raw payload of object h.
func (s *Storage) Read(h plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	return s.readObject(h)
}

func (s *Storage) readObject(h plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	if has, err := s.dir.HasObject(h); err != nil {
		return 0, nil, err
	} else if has {
		raw, err := s.dir.ReadObject(h)
		if err != nil {
			return 0, nil, err
		}
		return objfile.ReadLoose(raw)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packs {
		if p.pf.Has(h) {
			return p.pf.Read(h)
		}
	}
	return 0, nil, plumbing.ErrObjectNotFound
}

// Write stores payload under its canonical OID as a loose object and
// returns the computed hash.
func (s *Storage) Write(t plumbing.ObjectType, payload []byte) (plumbing.Hash, error) {
	h, raw, err := objfile.WriteLoose(t, payload)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := s.dir.WriteObject(h, raw); err != nil {
		return plumbing.ZeroHash, err
	}
	return h, nil
}

// IterEncodedObjects lists every loose and packed OID, de-duplicated.
func (s *Storage) IterEncodedObjects() ([]plumbing.Hash, error) {
	seen := make(map[plumbing.Hash]bool)
	var out []plumbing.Hash

	loose, err := s.dir.IterLooseObjects()
	if err != nil {
		return nil, err
	}
	for _, h := range loose {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packs {
		for _, e := range p.idx.Entries {
			if !seen[e.Hash] {
				seen[e.Hash] = true
				out = append(out, e.Hash)
			}
		}
	}
	return out, nil
}

// ExpandShortOid resolves a hex prefix to every matching OID in the
// database ambiguous-OID handling.
func (s *Storage) ExpandShortOid(prefix string) ([]plumbing.Hash, error) {
	prefix = strings.ToLower(prefix)
	seen := make(map[plumbing.Hash]bool)
	var out []plumbing.Hash

	loose, err := s.dir.FindLooseByPrefix(prefix)
	if err != nil {
		return nil, err
	}
	for _, h := range loose {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}

	nibbles := len(prefix)
	var packedPrefix [20]byte
	decodeHexPrefix(prefix, packedPrefix[:])

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packs {
		for _, h := range p.idx.FindHashesByPrefix(packedPrefix[:], nibbles) {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// InstallPack ingests a freshly-received packfile, building and writing
// its idx, then adds it to the set of packs consulted by reads.
func (s *Storage) InstallPack(packBytes []byte) error {
	parsed, err := packfile.ParseAndIndex(bytes.NewReader(packBytes), s)
	if err != nil {
		return err
	}
	idxBytes, err := packfile.BuildIndex(parsed)
	if err != nil {
		return err
	}

	base := "pack-" + parsed.PackSHA.String()
	if err := s.dir.WritePackAndIdx(base, packBytes, idxBytes); err != nil {
		return err
	}
	return s.loadPacks()
}

func decodeHexPrefix(s string, out []byte) {
	for i := 0; i+1 < len(s) && i/2 < len(out); i += 2 {
		out[i/2] = hexByte(s[i])<<4 | hexByte(s[i+1])
	}
	if len(s)%2 == 1 && len(s)/2 < len(out) {
		out[len(s)/2] = hexByte(s[len(s)-1]) << 4
	}
}

func hexByte(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

func readAllCloser(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	var buf []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return buf, err
		}
	}
}
