package git

import (
	"fmt"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/merge"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/filemode"
	"github.com/go-git/git-engine/plumbing/format/index"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/worktree"
)

// MergeOptions configures Merge.
type MergeOptions struct {
	// Theirs is the commit being merged into HEAD.
	Theirs  plumbing.Hash
	Message string
	// NoFastForward forces a merge commit even when a fast-forward would
	// otherwise apply, matching `git merge --no-ff`.
	NoFastForward bool
}

// Merge integrates Theirs into the current branch: a
// fast-forward when possible, else a recursive tree merge producing a
// merge commit with two parents. A conflicting merge leaves MERGE_HEAD/
// MERGE_MSG written, stage 1/2/3 index entries for every conflicted path,
// and returns UnmergedPaths -- the caller resolves the paths and calls
// Commit to conclude it, the same merge/commit split git itself uses.
func (r *Repository) Merge(opts MergeOptions) (plumbing.Hash, error) {
	h, err := r.merge(opts)
	return h, engineerr.WithStack(err)
}

func (r *Repository) merge(opts MergeOptions) (plumbing.Hash, error) {
	if opts.Theirs.IsZero() {
		return plumbing.ZeroHash, engineerr.MissingParameter("Theirs", "Repository.Merge")
	}

	headRef, err := r.ResolveRef(plumbing.HEAD)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	ours, err := r.ReadCommit(headRef.Hash())
	if err != nil {
		return plumbing.ZeroHash, err
	}
	theirs, err := r.ReadCommit(opts.Theirs)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if !opts.NoFastForward {
		ff, err := merge.FastForward(r, ours, theirs)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if ff {
			if err := r.moveHEAD(theirs.Hash, "merge: Fast-forward"); err != nil {
				return plumbing.ZeroHash, err
			}
			return theirs.Hash, r.materializeCommit(theirs.Hash)
		}
	}

	bases, err := object.MergeBase(r, ours, theirs)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var baseTree plumbing.Hash
	if len(bases) > 0 {
		baseTree = bases[0].TreeHash
	}

	mergedTree, conflicts, err := merge.MergeTrees(r.storage, baseTree, ours.TreeHash, theirs.TreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if len(conflicts) == 0 {
		message := opts.Message
		if message == "" {
			message = fmt.Sprintf("Merge commit %s", theirs.Hash)
		}
		if err := r.writeIndexForTree(mergedTree); err != nil {
			return plumbing.ZeroHash, err
		}
		h, err := r.Commit(CommitOptions{
			Message: message,
			Parents: []plumbing.Hash{ours.Hash, theirs.Hash},
		})
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return h, r.materializeCommit(h)
	}

	if err := r.stageConflicts(conflicts); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := r.dot.SetMergeHead(theirs.Hash); err != nil {
		return plumbing.ZeroHash, err
	}
	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("Merge commit %s", theirs.Hash)
	}
	if err := r.dot.SetMergeMsg(message); err != nil {
		return plumbing.ZeroHash, err
	}
	return plumbing.ZeroHash, engineerr.UnmergedPaths(conflictPaths(conflicts), "Repository.Merge")
}

// CherryPick applies the change introduced by commit onto HEAD as a new
// commit: a three-way merge of (commit's
// parent, HEAD, commit) with the result committed as a single-parent
// descendant of HEAD, preserving the original author.
func (r *Repository) CherryPick(commit plumbing.Hash) (plumbing.Hash, error) {
	h, err := r.cherryPick(commit)
	return h, engineerr.WithStack(err)
}

func (r *Repository) cherryPick(commit plumbing.Hash) (plumbing.Hash, error) {
	if commit.IsZero() {
		return plumbing.ZeroHash, engineerr.MissingParameter("commit", "Repository.CherryPick")
	}

	target, err := r.ReadCommit(commit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if target.NumParents() != 1 {
		return plumbing.ZeroHash, engineerr.Internal("cherry-pick of a merge or root commit is unsupported", "Repository.CherryPick")
	}
	base, err := r.ReadCommit(target.Parents[0])
	if err != nil {
		return plumbing.ZeroHash, err
	}

	headRef, err := r.ResolveRef(plumbing.HEAD)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	ours, err := r.ReadCommit(headRef.Hash())
	if err != nil {
		return plumbing.ZeroHash, err
	}

	mergedTree, conflicts, err := merge.MergeTrees(r.storage, base.TreeHash, ours.TreeHash, target.TreeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if len(conflicts) == 0 {
		if err := r.writeIndexForTree(mergedTree); err != nil {
			return plumbing.ZeroHash, err
		}
		h, err := r.Commit(CommitOptions{
			Message: target.Message,
			Author:  &target.Author,
			Parents: []plumbing.Hash{ours.Hash},
		})
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return h, r.materializeCommit(h)
	}

	if err := r.stageConflicts(conflicts); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := r.dot.SetCherryPickHead(commit); err != nil {
		return plumbing.ZeroHash, err
	}
	return plumbing.ZeroHash, engineerr.UnmergedPaths(conflictPaths(conflicts), "Repository.CherryPick")
}

func conflictPaths(cs []merge.Conflict) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Path
	}
	return out
}

// writeIndexForTree replaces the index wholesale with the flattened
// contents of tree, used after a clean merge/cherry-pick where every path
// resolved to a single stage-0 entry.
func (r *Repository) writeIndexForTree(tree plumbing.Hash) error {
	t, err := r.ReadTree(tree)
	if err != nil {
		return err
	}
	idx := &index.Index{Version: 2}
	err = r.walkTreeEntries(t, "", func(path string, e *object.TreeEntry) error {
		idx.Entries = append(idx.Entries, &index.Entry{
			Name: path,
			Hash: e.Hash,
			Mode: treeModeToIndexMode(e.Mode),
		})
		return nil
	})
	if err != nil {
		return err
	}
	return r.SetIndex(idx)
}

// materializeCommit hard-resets the index (and, unless bare, the worktree
// files) to commit's tree, used after fast-forward/clean merges and clone
// where HEAD already points at commit but the files do not yet reflect it.
func (r *Repository) materializeCommit(commit plumbing.Hash) error {
	if r.wt != nil {
		return r.wt.Reset(&worktree.ResetOptions{Commit: commit, Mode: worktree.HardReset})
	}
	tree, err := r.commitTree(commit)
	if err != nil {
		return err
	}
	return r.writeIndexForTree(tree)
}

func (r *Repository) walkTreeEntries(t *object.Tree, prefix string, fn func(path string, e *object.TreeEntry) error) error {
	for i := range t.Entries {
		e := &t.Entries[i]
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}
		if e.Mode == plumbing.FileModeTree {
			sub, err := r.ReadTree(e.Hash)
			if err != nil {
				return err
			}
			if err := r.walkTreeEntries(sub, path, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(path, e); err != nil {
			return err
		}
	}
	return nil
}

// stageConflicts records each conflict's base/ours/theirs side at index
// stages 1/2/3, and, for a text conflict, writes the marked-up
// content as the worktree file so the caller can inspect and resolve it.
func (r *Repository) stageConflicts(conflicts []merge.Conflict) error {
	idx, err := r.Index()
	if err != nil {
		return err
	}

	for _, c := range conflicts {
		if _, err := idx.Remove(c.Path); err != nil && err != index.ErrEntryNotFound {
			return err
		}
		stage(idx, c.Path, index.AncestorMode, c.Base)
		stage(idx, c.Path, index.OurMode, c.Ours)
		stage(idx, c.Path, index.TheirMode, c.Theirs)

		if c.Text != nil && r.wt != nil {
			if err := r.writeConflictMarkers(c.Path, c.Text.Merged); err != nil {
				return err
			}
		}
	}

	return r.SetIndex(idx)
}

func stage(idx *index.Index, path string, s index.Stage, e *object.TreeEntry) {
	if e == nil {
		return
	}
	idx.Entries = append(idx.Entries, &index.Entry{
		Name:  path,
		Hash:  e.Hash,
		Mode:  treeModeToIndexMode(e.Mode),
		Stage: s,
	})
}

func (r *Repository) writeConflictMarkers(path, content string) error {
	wt, err := r.Worktree()
	if err != nil {
		return nil
	}
	f, err := wt.FS.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(content))
	return err
}

func treeModeToIndexMode(m plumbing.FileMode) filemode.FileMode {
	switch m {
	case plumbing.FileModeExecutable:
		return filemode.Executable
	case plumbing.FileModeSymlink:
		return filemode.Symlink
	case plumbing.FileModeGitlink:
		return filemode.Submodule
	case plumbing.FileModeTree:
		return filemode.Dir
	default:
		return filemode.Regular
	}
}
