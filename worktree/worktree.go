// Package worktree implements the working-tree state machine:
// materialising a tree into files, tracking the difference between
// HEAD, the index and the files on disk, and the plumbing behind
// checkout/add/remove/move.
package worktree

import (
	"errors"
	"io"
	"os"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/filemode"
	"github.com/go-git/git-engine/plumbing/format/index"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/utils/convert"
)

const maxSymbolicDepth = 10

var (
	ErrWorktreeNotClean  = errors.New("worktree is not clean")
	ErrUnstagedChanges   = errors.New("worktree contains unstaged changes")
	ErrDestinationExists = errors.New("destination exists")
)

// Storer is the façade slice the worktree needs out of a repository: the
// object database, the staging index and named references. A git.Repository
// satisfies this directly.
type Storer interface {
	Read(h plumbing.Hash) (plumbing.ObjectType, []byte, error)
	Write(t plumbing.ObjectType, payload []byte) (plumbing.Hash, error)
	Index() (*index.Index, error)
	SetIndex(idx *index.Index) error
	Reference(name plumbing.ReferenceName) (*plumbing.Reference, error)
	SetReference(new, old *plumbing.Reference) error
}

// Worktree ties a Storer to the billy filesystem its files live in.
type Worktree struct {
	Storer Storer
	FS     billy.Filesystem

	// AutoCRLF mirrors core.autocrlf: "true" normalises CRLF to LF in the
	// index and expands LF to CRLF on checkout; "input" normalises on the
	// way in only. Anything else (including "") disables the filter.
	AutoCRLF string
}

// New builds a Worktree over fs, rooted at the repository the Storer reads
// from.
func New(s Storer, fs billy.Filesystem) *Worktree {
	return &Worktree{Storer: s, FS: fs}
}

func (w *Worktree) resolve(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	ref, err := w.Storer.Reference(name)
	if err != nil {
		return nil, err
	}
	for depth := 0; ref.Type() == plumbing.SymbolicReference; depth++ {
		if depth >= maxSymbolicDepth {
			return nil, engineerr.MaxDepth(maxSymbolicDepth, "worktree.resolve")
		}
		ref, err = w.Storer.Reference(ref.Target())
		if err != nil {
			return nil, err
		}
	}
	return ref, nil
}

func (w *Worktree) headCommit() (*object.Commit, error) {
	ref, err := w.resolve(plumbing.HEAD)
	if err != nil {
		return nil, err
	}
	return w.getCommit(ref.Hash())
}

func (w *Worktree) getCommit(h plumbing.Hash) (*object.Commit, error) {
	typ, payload, err := w.Storer.Read(h)
	if err != nil {
		return nil, err
	}
	if typ != plumbing.CommitObject {
		return nil, engineerr.Corrupt("object", "expected a commit", "worktree.getCommit")
	}
	return object.DecodeCommit(payload)
}

func (w *Worktree) getTree(h plumbing.Hash) (*object.Tree, error) {
	if h == plumbing.ZeroHash {
		return &object.Tree{}, nil
	}
	typ, payload, err := w.Storer.Read(h)
	if err != nil {
		return nil, err
	}
	if typ != plumbing.TreeObject {
		return nil, engineerr.Corrupt("object", "expected a tree", "worktree.getTree")
	}
	return object.DecodeTree(payload)
}

// treeEntry walks a "/"-separated path down from root, decoding subtrees
// as needed; object.Tree itself only resolves a single path component.
func (w *Worktree) treeEntry(root *object.Tree, path string) (*object.TreeEntry, error) {
	segs := strings.Split(path, "/")
	t := root
	for i, seg := range segs {
		e, err := t.Entry(seg)
		if err != nil {
			return nil, object.ErrEntryNotFound
		}
		if i == len(segs)-1 {
			return e, nil
		}
		if !e.Mode.IsDir() {
			return nil, object.ErrEntryNotFound
		}
		t, err = w.getTree(e.Hash)
		if err != nil {
			return nil, err
		}
	}
	return nil, object.ErrEntryNotFound
}

// walkTree visits every blob/symlink entry in t, recursing into
// subdirectories, calling fn with the full slash-separated path.
func (w *Worktree) walkTree(t *object.Tree, prefix string, fn func(path string, e *object.TreeEntry) error) error {
	for i := range t.Entries {
		e := &t.Entries[i]
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		if e.Mode.IsDir() {
			sub, err := w.getTree(e.Hash)
			if err != nil {
				return err
			}
			if err := w.walkTree(sub, p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, e); err != nil {
			return err
		}
	}
	return nil
}

func toOSFileMode(m plumbing.FileMode) (os.FileMode, error) {
	switch m {
	case plumbing.FileModeRegular:
		return 0644, nil
	case plumbing.FileModeExecutable:
		return 0755, nil
	case plumbing.FileModeSymlink:
		return os.ModeSymlink | 0777, nil
	default:
		return 0, engineerr.Internal("unsupported blob file mode", "worktree.toOSFileMode")
	}
}

func (w *Worktree) blobContent(h plumbing.Hash) ([]byte, error) {
	typ, payload, err := w.Storer.Read(h)
	if err != nil {
		return nil, err
	}
	if typ != plumbing.BlobObject {
		return nil, engineerr.Corrupt("object", "expected a blob", "worktree.blobContent")
	}
	return payload, nil
}

// writeFileFromBlob materialises one tree entry onto the filesystem,
// applying the CRLF filter to regular files when AutoCRLF is "true".
func (w *Worktree) writeFileFromBlob(path string, e *object.TreeEntry) error {
	content, err := w.blobContent(e.Hash)
	if err != nil {
		return err
	}

	if e.Mode == plumbing.FileModeSymlink {
		return w.FS.Symlink(string(content), path)
	}

	mode, err := toOSFileMode(e.Mode)
	if err != nil {
		return err
	}

	f, err := w.FS.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	if w.AutoCRLF == "true" && e.Mode == plumbing.FileModeRegular {
		stat, err := convert.GetStat(strings.NewReader(string(content)))
		if err == nil && !stat.IsBinary() {
			_, err = io.Copy(convert.NewCRLFWriter(f), strings.NewReader(string(content)))
			return err
		}
	}

	_, err = f.Write(content)
	return err
}

func modeFromOS(fi os.FileInfo) plumbing.FileMode {
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		return plumbing.FileModeSymlink
	case fi.Mode()&0100 != 0:
		return plumbing.FileModeExecutable
	default:
		return plumbing.FileModeRegular
	}
}

func toIndexFileMode(m plumbing.FileMode) filemode.FileMode {
	switch m {
	case plumbing.FileModeExecutable:
		return filemode.Executable
	case plumbing.FileModeSymlink:
		return filemode.Symlink
	case plumbing.FileModeTree:
		return filemode.Dir
	case plumbing.FileModeGitlink:
		return filemode.Submodule
	default:
		return filemode.Regular
	}
}
