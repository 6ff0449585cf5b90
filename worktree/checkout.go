package worktree

import (
	"fmt"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/index"
	"github.com/go-git/git-engine/plumbing/object"
)

// ResetMode selects how far Reset reaches: just HEAD, HEAD and the index,
// or HEAD, the index and the worktree files.
type ResetMode int

const (
	// SoftReset moves HEAD only.
	SoftReset ResetMode = iota
	// MixedReset moves HEAD and resets the index to match, leaving the
	// worktree files untouched.
	MixedReset
	// MergeReset moves HEAD and resets both the index and the worktree
	// files, but refuses with ErrUnstagedChanges when the worktree has any
	// unstaged change.
	MergeReset
	// HardReset moves HEAD, the index and the worktree files
	// unconditionally, discarding any local changes.
	HardReset
)

// ResetOptions configures Reset.
type ResetOptions struct {
	Commit plumbing.Hash
	Mode   ResetMode
}

// CheckoutOptions configures Checkout.
type CheckoutOptions struct {
	Branch plumbing.ReferenceName
	Hash   plumbing.Hash
	Create bool
	Force  bool
}

func (o *CheckoutOptions) Validate() error {
	if o.Hash.IsZero() && o.Branch == "" {
		return engineerr.MissingParameter("Branch or Hash", "worktree.Checkout")
	}
	return nil
}

// Checkout switches the worktree (and HEAD) to the commit a branch, tag or
// explicit hash resolves to.
func (w *Worktree) Checkout(opts *CheckoutOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	if !opts.Force {
		dirty, err := w.hasUnstagedChanges()
		if err != nil {
			return err
		}
		if dirty {
			return ErrUnstagedChanges
		}
	}

	commit, err := w.checkoutTarget(opts)
	if err != nil {
		return err
	}

	if opts.Create {
		if err := w.Storer.SetReference(plumbing.NewHashReference(opts.Branch, commit), nil); err != nil {
			return err
		}
	}

	if !opts.Hash.IsZero() {
		if err := w.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, commit), nil); err != nil {
			return err
		}
	} else if err := w.setHEADToBranch(opts.Branch, commit); err != nil {
		return err
	}

	mode := MergeReset
	if opts.Force {
		mode = HardReset
	}
	return w.Reset(&ResetOptions{Commit: commit, Mode: mode})
}

func (w *Worktree) checkoutTarget(opts *CheckoutOptions) (plumbing.Hash, error) {
	if !opts.Hash.IsZero() {
		return opts.Hash, nil
	}
	if opts.Create {
		head, err := w.resolve(plumbing.HEAD)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return head.Hash(), nil
	}

	ref, err := w.resolve(opts.Branch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return w.peelToCommit(ref.Hash())
}

// peelToCommit follows a tag object to the commit it ultimately targets.
func (w *Worktree) peelToCommit(h plumbing.Hash) (plumbing.Hash, error) {
	typ, payload, err := w.Storer.Read(h)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	switch typ {
	case plumbing.CommitObject:
		return h, nil
	case plumbing.TagObject:
		tag, err := object.DecodeTag(payload)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if tag.ObjectType != plumbing.CommitObject {
			return plumbing.ZeroHash, fmt.Errorf("unsupported tag target %s", tag.ObjectType)
		}
		return tag.Object, nil
	default:
		return plumbing.ZeroHash, engineerr.Corrupt("reference target", "expected a commit or tag", "worktree.peelToCommit")
	}
}

func (w *Worktree) setHEADToBranch(branch plumbing.ReferenceName, commit plumbing.Hash) error {
	target, err := w.Storer.Reference(branch)
	if err != nil {
		return err
	}

	var head *plumbing.Reference
	if target.Name().IsBranch() {
		head = plumbing.NewSymbolicReference(plumbing.HEAD, target.Name())
	} else {
		head = plumbing.NewHashReference(plumbing.HEAD, commit)
	}
	return w.Storer.SetReference(head, nil)
}

// Reset moves HEAD to opts.Commit, then materialises that commit's tree
// into the index (Mixed/Merge/Hard) and the worktree (Merge/Hard).
func (w *Worktree) Reset(opts *ResetOptions) error {
	if opts.Commit.IsZero() {
		return engineerr.MissingParameter("Commit", "worktree.Reset")
	}

	if opts.Mode == MergeReset {
		dirty, err := w.hasUnstagedChanges()
		if err != nil {
			return err
		}
		if dirty {
			return ErrUnstagedChanges
		}
	}

	if err := w.setHEADCommit(opts.Commit); err != nil {
		return err
	}

	if opts.Mode == SoftReset {
		return nil
	}

	targetCommit, err := w.getCommit(opts.Commit)
	if err != nil {
		return err
	}
	targetTree, err := w.getTree(targetCommit.TreeHash)
	if err != nil {
		return err
	}

	idx, err := w.Storer.Index()
	if err != nil {
		return err
	}

	newIdx := &index.Index{Version: idx.Version}
	if newIdx.Version == 0 {
		newIdx.Version = 2
	}

	err = w.walkTree(targetTree, "", func(path string, e *object.TreeEntry) error {
		if opts.Mode == HardReset || opts.Mode == MergeReset {
			if err := w.writeFileFromBlob(path, e); err != nil {
				return err
			}
		}
		newIdx.Entries = append(newIdx.Entries, &index.Entry{
			Name: path,
			Hash: e.Hash,
			Mode: toIndexFileMode(e.Mode),
		})
		return nil
	})
	if err != nil {
		return err
	}

	if opts.Mode == HardReset || opts.Mode == MergeReset {
		if err := w.removeFilesNotIn(idx, newIdx); err != nil {
			return err
		}
	}

	return w.Storer.SetIndex(newIdx)
}

func (w *Worktree) removeFilesNotIn(old, new *index.Index) error {
	keep := make(map[string]bool, len(new.Entries))
	for _, e := range new.Entries {
		keep[e.Name] = true
	}
	for _, e := range old.Entries {
		if !keep[e.Name] {
			if err := w.FS.Remove(e.Name); err != nil && !isNotExist(err) {
				return err
			}
		}
	}
	return nil
}

func (w *Worktree) setHEADCommit(commit plumbing.Hash) error {
	head, err := w.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return err
	}

	if head.Type() == plumbing.HashReference {
		return w.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, commit), nil)
	}

	branch, err := w.Storer.Reference(head.Target())
	if err != nil {
		return err
	}
	return w.Storer.SetReference(plumbing.NewHashReference(branch.Name(), commit), nil)
}

func (w *Worktree) hasUnstagedChanges() (bool, error) {
	s, err := w.diffIndexWithWorktree()
	if err != nil {
		return false, err
	}
	for _, st := range s {
		if st.Worktree != Unmodified {
			return true, nil
		}
	}
	return false, nil
}

// RestorePath overwrites path in both the worktree and the index with its
// content at commit, the single-path counterpart to Checkout (`git
// checkout -- path` / `git restore path`)
func (w *Worktree) RestorePath(path string, commit plumbing.Hash) error {
	c, err := w.getCommit(commit)
	if err != nil {
		return err
	}
	tree, err := w.getTree(c.TreeHash)
	if err != nil {
		return err
	}

	e, err := w.treeEntry(tree, path)
	if err != nil {
		return err
	}

	if err := w.writeFileFromBlob(path, e); err != nil {
		return err
	}

	idx, err := w.Storer.Index()
	if err != nil {
		return err
	}
	entry, err := idx.Entry(path)
	if err == index.ErrEntryNotFound {
		entry = idx.Add(path)
	} else if err != nil {
		return err
	}
	entry.Hash = e.Hash
	entry.Mode = toIndexFileMode(e.Mode)

	return w.Storer.SetIndex(idx)
}
