package git

import (
	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/worktree"
)

// Checkout switches the worktree and HEAD to branch (or, if Create is
// set, creates branch at HEAD first). It fails
// with ErrIsBareRepository for a bare repository.
func (r *Repository) Checkout(opts worktree.CheckoutOptions) error {
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	if opts.Branch != "" && !validRefName(opts.Branch.String()) {
		return engineerr.InvalidRefName(opts.Branch.String(), sanitizeRefName(opts.Branch.String()), "Repository.Checkout")
	}
	return wt.Checkout(&opts)
}

// Switch changes the current branch to name, optionally creating it from
// HEAD first (a restricted Checkout that always
// targets a branch, never a bare commit).
func (r *Repository) Switch(name string, create bool) error {
	if name == "" {
		return engineerr.MissingParameter("name", "Repository.Switch")
	}
	return r.Checkout(worktree.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: create,
	})
}

// Restore checks path back out from commit (HEAD's tree if commit is
// zero) into the worktree, leaving HEAD and the current branch alone, per
// "restore".
func (r *Repository) Restore(path string, commit plumbing.Hash) error {
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	if path == "" {
		return engineerr.MissingParameter("path", "Repository.Restore")
	}
	if commit.IsZero() {
		head, err := r.ResolveRef(plumbing.HEAD)
		if err != nil {
			return err
		}
		commit = head.Hash()
	}
	return wt.RestorePath(path, commit)
}

// Add stages path.
func (r *Repository) Add(path string) (plumbing.Hash, error) {
	wt, err := r.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if path == "" {
		return plumbing.ZeroHash, engineerr.MissingParameter("path", "Repository.Add")
	}
	return wt.Add(path)
}

// Rm unstages and deletes path.
func (r *Repository) Rm(path string) (plumbing.Hash, error) {
	wt, err := r.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if path == "" {
		return plumbing.ZeroHash, engineerr.MissingParameter("path", "Repository.Rm")
	}
	return wt.Remove(path)
}

// Status reports the combined staging/worktree state
// "status".
func (r *Repository) Status() (worktree.Status, error) {
	wt, err := r.Worktree()
	if err != nil {
		return nil, err
	}
	return wt.Status()
}
