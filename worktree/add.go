package worktree

import (
	"bytes"
	"io"
	"os"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/index"
	"github.com/go-git/git-engine/utils/convert"
)

// Add stages path, hashing its current worktree content as a blob object
// and recording it in the index.
func (w *Worktree) Add(path string) (plumbing.Hash, error) {
	fi, err := w.FS.Lstat(path)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	content, err := w.readWorktreeBlob(path, fi)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	h, err := w.Storer.Write(plumbing.BlobObject, content)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	idx, err := w.Storer.Index()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	e, err := idx.Entry(path)
	if err == index.ErrEntryNotFound {
		e = idx.Add(path)
	} else if err != nil {
		return plumbing.ZeroHash, err
	}

	e.Hash = h
	e.ModifiedAt = fi.ModTime()
	e.Mode = toIndexFileMode(modeFromOS(fi))
	if e.Mode.IsRegular() {
		e.Size = uint32(len(content))
	}

	return h, w.Storer.SetIndex(idx)
}

// readWorktreeBlob reads path's content exactly as it will be stored as a
// blob: a symlink's target as its literal bytes, everything else as its
// file content with CRLF normalised to LF when AutoCRLF is enabled and the
// file doesn't look binary.
func (w *Worktree) readWorktreeBlob(path string, fi os.FileInfo) ([]byte, error) {
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := w.FS.Readlink(path)
		if err != nil {
			return nil, err
		}
		return []byte(target), nil
	}

	f, err := w.FS.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	if w.AutoCRLF != "true" && w.AutoCRLF != "input" {
		return raw, nil
	}

	stat, err := convert.GetStat(bytes.NewReader(raw))
	if err != nil || stat.IsBinary() {
		return raw, nil
	}

	var buf bytes.Buffer
	if _, err := convert.NewLFWriter(&buf).Write(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
