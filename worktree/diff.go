package worktree

import (
	"bytes"
	"io"
	"os"
	"path"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/filemode"
	"github.com/go-git/git-engine/plumbing/format/gitignore"
	"github.com/go-git/git-engine/plumbing/format/index"
	"github.com/go-git/git-engine/plumbing/object"
)

func isNotExist(err error) bool {
	return err != nil && os.IsNotExist(err)
}

// Status reports HEAD-vs-index and index-vs-worktree state for every path
// either side knows about.
func (w *Worktree) Status() (Status, error) {
	head, err := w.resolve(plumbing.HEAD)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return make(Status), nil
		}
		return nil, err
	}
	return w.status(head.Hash())
}

func (w *Worktree) status(commit plumbing.Hash) (Status, error) {
	s := make(Status)

	staged, err := w.diffCommitWithIndex(commit)
	if err != nil {
		return nil, err
	}
	for path, code := range staged {
		s.File(path).Staging = code
	}

	worktreeDiff, err := w.diffIndexWithWorktree()
	if err != nil {
		return nil, err
	}
	for path, st := range worktreeDiff {
		fs := s.File(path)
		fs.Worktree = st.Worktree
		if st.Worktree == Untracked {
			fs.Staging = Untracked
		}
	}

	return s, nil
}

// diffCommitWithIndex compares the tree at commit against the index,
// reporting the staging-column status for every path either side knows.
func (w *Worktree) diffCommitWithIndex(commit plumbing.Hash) (map[string]StatusCode, error) {
	out := map[string]StatusCode{}

	c, err := w.getCommit(commit)
	if err != nil {
		return nil, err
	}
	tree, err := w.getTree(c.TreeHash)
	if err != nil {
		return nil, err
	}

	treeBlobs := map[string]plumbing.Hash{}
	if err := w.walkTree(tree, "", func(p string, e *object.TreeEntry) error {
		treeBlobs[p] = e.Hash
		return nil
	}); err != nil {
		return nil, err
	}

	idx, err := w.Storer.Index()
	if err != nil {
		return nil, err
	}
	idxBlobs := map[string]plumbing.Hash{}
	for _, e := range idx.Entries {
		if e.Stage == index.Merged {
			idxBlobs[e.Name] = e.Hash
		}
	}

	for p, h := range treeBlobs {
		if ih, ok := idxBlobs[p]; !ok {
			out[p] = Deleted
		} else if ih != h {
			out[p] = Modified
		}
	}
	for p := range idxBlobs {
		if _, ok := treeBlobs[p]; !ok {
			out[p] = Added
		}
	}
	return out, nil
}

// diffIndexWithWorktree compares the index against the actual files on
// disk, reporting the worktree-column status for every path either side
// knows, skipping anything gitignore excludes.
func (w *Worktree) diffIndexWithWorktree() (Status, error) {
	s := make(Status)

	idx, err := w.Storer.Index()
	if err != nil {
		return nil, err
	}

	patterns, err := w.ignorePatterns()
	if err != nil {
		return nil, err
	}
	matcher := gitignore.NewMatcher(patterns)

	tracked := map[string]bool{}
	for _, e := range idx.Entries {
		if e.Stage != index.Merged {
			continue
		}
		tracked[e.Name] = true

		fi, err := w.FS.Lstat(e.Name)
		if isNotExist(err) {
			s.File(e.Name).Worktree = Deleted
			continue
		}
		if err != nil {
			return nil, err
		}

		changed, err := w.blobDiffersFromFile(e, fi)
		if err != nil {
			return nil, err
		}
		if changed {
			s.File(e.Name).Worktree = Modified
		}
	}

	if err := w.walkWorktreeFiles(".", matcher, func(p string) {
		if !tracked[p] {
			s.File(p).Worktree = Untracked
		}
	}); err != nil {
		return nil, err
	}

	return s, nil
}

func (w *Worktree) blobDiffersFromFile(e *index.Entry, fi os.FileInfo) (bool, error) {
	if modeFromIndex(e.Mode) != modeFromOS(fi) {
		return true, nil
	}

	content, err := w.blobContent(e.Hash)
	if err != nil {
		return false, err
	}

	if e.Mode == filemode.Symlink {
		target, err := w.FS.Readlink(e.Name)
		if err != nil {
			return false, err
		}
		return target != string(content), nil
	}

	f, err := w.FS.Open(e.Name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	actual, err := io.ReadAll(f)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(actual, content), nil
}

func modeFromIndex(m filemode.FileMode) plumbing.FileMode {
	switch m {
	case filemode.Executable:
		return plumbing.FileModeExecutable
	case filemode.Symlink:
		return plumbing.FileModeSymlink
	case filemode.Submodule:
		return plumbing.FileModeGitlink
	case filemode.Dir:
		return plumbing.FileModeTree
	default:
		return plumbing.FileModeRegular
	}
}

// walkWorktreeFiles visits every regular file/symlink under dir (relative
// to the worktree root), skipping ".git" and anything matcher excludes.
func (w *Worktree) walkWorktreeFiles(dir string, matcher gitignore.Matcher, fn func(path string)) error {
	entries, err := w.FS.ReadDir(dir)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.Name() == ".git" && dir == "." {
			continue
		}
		p := e.Name()
		if dir != "." {
			p = path.Join(dir, e.Name())
		}
		segs := splitPath(p)

		if e.IsDir() {
			if matcher.Match(segs, true) {
				continue
			}
			if err := w.walkWorktreeFiles(p, matcher, fn); err != nil {
				return err
			}
			continue
		}
		if matcher.Match(segs, false) {
			continue
		}
		fn(p)
	}
	return nil
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range bytesSplit(p, '/') {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func bytesSplit(p string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == sep {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	out = append(out, p[start:])
	return out
}

// ignorePatterns loads every applicable gitignore layer, lowest precedence
// first: system excludes, then global excludes, then repo-tree patterns
// (info/exclude plus nested .gitignore files). The matcher lets the last
// matching pattern win, so this order gives git's own precedence.
func (w *Worktree) ignorePatterns() ([]gitignore.Pattern, error) {
	var ps []gitignore.Pattern

	system, err := gitignore.LoadSystemPatterns(w.FS)
	if err != nil {
		return nil, err
	}
	ps = append(ps, system...)

	global, err := gitignore.LoadGlobalPatterns(w.FS)
	if err != nil {
		return nil, err
	}
	ps = append(ps, global...)

	tree, err := gitignore.ReadPatterns(w.FS, nil)
	if err != nil {
		return nil, err
	}
	ps = append(ps, tree...)

	return ps, nil
}
