// Package index implements the binary staging index (DIRC v2): the
// DIRC-header entry list (one record per staged path, carrying stat
// metadata, a 20-byte OID and stage/flag bits) plus the "TREE" cache
// extension used to speed up tree-object generation from the index.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/filemode"
)

var (
	ErrUnsupportedVersion = errors.New("index: unsupported version")
	ErrEntryNotFound      = errors.New("index: entry not found")

	indexSignature   = []byte{'D', 'I', 'R', 'C'}
	treeExtSignature = []byte{'T', 'R', 'E', 'E'}
)

// Stage identifies which side of a conflict an Entry belongs to: stage 0
// means "no conflict", stages 1-3 hold the common ancestor,
// our side and their side while a conflict is unresolved.
type Stage int

const (
	Merged       Stage = 0
	AncestorMode Stage = 1
	OurMode      Stage = 2
	TheirMode    Stage = 3
)

// Index is the parsed contents of the staging index file.
type Index struct {
	Version uint32
	Entries []*Entry
	Cache   *Tree
}

// Add creates and appends a new Entry for path. The caller must ensure no
// other stage-0 entry for the same path already exists.
func (i *Index) Add(path string) *Entry {
	e := &Entry{Name: filepath.ToSlash(path)}
	i.Entries = append(i.Entries, e)
	return e
}

// Entry returns the stage-0 entry for path, if any.
func (i *Index) Entry(path string) (*Entry, error) {
	path = filepath.ToSlash(path)
	for _, e := range i.Entries {
		if e.Name == path && e.Stage == Merged {
			return e, nil
		}
	}
	return nil, ErrEntryNotFound
}

// EntriesByPath returns every entry (all stages) for path, used to read
// out an unresolved conflict's three sides.
func (i *Index) EntriesByPath(path string) []*Entry {
	path = filepath.ToSlash(path)
	var out []*Entry
	for _, e := range i.Entries {
		if e.Name == path {
			out = append(out, e)
		}
	}
	return out
}

// Remove deletes every stage of path and returns the stage-0 entry, if
// one existed.
func (i *Index) Remove(path string) (*Entry, error) {
	path = filepath.ToSlash(path)
	var removed *Entry
	kept := i.Entries[:0]
	for _, e := range i.Entries {
		if e.Name == path {
			if e.Stage == Merged {
				removed = e
			}
			continue
		}
		kept = append(kept, e)
	}
	i.Entries = kept
	if removed == nil {
		return nil, ErrEntryNotFound
	}
	return removed, nil
}

// HasConflicts reports whether any entry sits above stage 0, i.e. an
// unresolved merge conflict remains.
func (i *Index) HasConflicts() bool {
	for _, e := range i.Entries {
		if e.Stage != Merged {
			return true
		}
	}
	return false
}

// String renders the index as `git ls-files --stage --debug` would.
func (i *Index) String() string {
	var buf bytes.Buffer
	for _, e := range i.Entries {
		buf.WriteString(e.String())
	}
	return buf.String()
}

// Entry is one path's staged state (or one stage of a conflicted path).
type Entry struct {
	Hash         plumbing.Hash
	Name         string
	CreatedAt    time.Time
	ModifiedAt   time.Time
	Dev, Inode   uint32
	Mode         filemode.FileMode
	UID, GID     uint32
	Size         uint32
	Stage        Stage
	SkipWorktree bool
	IntentToAdd  bool
	AssumeValid  bool
}

func (e Entry) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%06o %s %d\t%s\n", uint32(e.Mode), e.Hash, e.Stage, e.Name)
	fmt.Fprintf(&buf, "  ctime: %d:%d\n", e.CreatedAt.Unix(), e.CreatedAt.Nanosecond())
	fmt.Fprintf(&buf, "  mtime: %d:%d\n", e.ModifiedAt.Unix(), e.ModifiedAt.Nanosecond())
	fmt.Fprintf(&buf, "  dev: %d\tino: %d\n", e.Dev, e.Inode)
	fmt.Fprintf(&buf, "  uid: %d\tgid: %d\n", e.UID, e.GID)
	fmt.Fprintf(&buf, "  size: %d\n", e.Size)
	return buf.String()
}

// Tree is the "Cache Tree" extension: per-directory tree OIDs already
// known to be correct for the current index contents, so a commit can
// skip recomputing unchanged subtrees.
type Tree struct {
	Entries []TreeEntry
}

// TreeEntry is one directory's cached state. An Entries count of -1
// means "invalid" (any index mutation under this path must
// invalidate its cached hash so the next tree-write recomputes it).
type TreeEntry struct {
	Path    string
	Entries int
	Trees   int
	Hash    plumbing.Hash
}

// Invalidate marks path and every ancestor directory's cache entry
// invalid: a write under "a/b/c.txt" must invalidate "a/b", "a"
// and the root, since their cached tree hashes no longer reflect the
// index.
func (t *Tree) Invalidate(path string) {
	if t == nil {
		return
	}
	path = filepath.ToSlash(path)
	for dir := filepath.ToSlash(filepath.Dir(path)); ; dir = filepath.ToSlash(filepath.Dir(dir)) {
		t.invalidateOne(dir)
		if dir == "." || dir == "/" {
			break
		}
	}
	t.invalidateOne("")
}

func (t *Tree) invalidateOne(path string) {
	if path == "." {
		path = ""
	}
	for i, e := range t.Entries {
		if e.Path == path {
			t.Entries[i].Entries = -1
			return
		}
	}
}
