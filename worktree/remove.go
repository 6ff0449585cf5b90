package worktree

import (
	"github.com/go-git/git-engine/plumbing"
)

// Remove unstages path and deletes it from the worktree.
func (w *Worktree) Remove(path string) (plumbing.Hash, error) {
	h, err := w.removeFromIndex(path)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := w.FS.Remove(path); err != nil && !isNotExist(err) {
		return h, err
	}
	return h, nil
}

func (w *Worktree) removeFromIndex(path string) (plumbing.Hash, error) {
	idx, err := w.Storer.Index()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	e, err := idx.Remove(path)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return e.Hash, w.Storer.SetIndex(idx)
}

// Move renames path from -> to in both the worktree and the index.
// Directories are not supported, matching file-level scope.
func (w *Worktree) Move(from, to string) (plumbing.Hash, error) {
	if _, err := w.FS.Lstat(from); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.FS.Lstat(to); err == nil {
		return plumbing.ZeroHash, ErrDestinationExists
	}

	h, err := w.removeFromIndex(from)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := w.FS.Rename(from, to); err != nil {
		return h, err
	}

	idx, err := w.Storer.Index()
	if err != nil {
		return h, err
	}
	fi, err := w.FS.Lstat(to)
	if err != nil {
		return h, err
	}
	e := idx.Add(to)
	e.Hash = h
	e.ModifiedAt = fi.ModTime()
	e.Mode = toIndexFileMode(modeFromOS(fi))
	if e.Mode.IsRegular() {
		e.Size = uint32(fi.Size())
	}
	return h, w.Storer.SetIndex(idx)
}
