package git

import (
	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/storage/filesystem/dotgit"
)

// RebaseOptions configures InitRebase.
type RebaseOptions struct {
	// Onto is the commit the current branch's commits are replayed on top
	// of.
	Onto plumbing.Hash
}

// InitRebase begins replaying every commit reachable from HEAD but not
// from Onto onto Onto: it walks first-parent
// history back to the merge base, records the replay list as a
// rebase-merge todo file, detaches HEAD at Onto, and replays the entries
// in order. A conflicting pick leaves the todo file positioned at the
// conflicting entry and returns UnmergedPaths, mirroring Merge.
func (r *Repository) InitRebase(opts RebaseOptions) error {
	return engineerr.WithStack(r.initRebase(opts))
}

func (r *Repository) initRebase(opts RebaseOptions) error {
	if opts.Onto.IsZero() {
		return engineerr.MissingParameter("Onto", "Repository.InitRebase")
	}
	if inProgress, err := r.dot.IsRebaseInProgress(); err != nil {
		return err
	} else if inProgress {
		return engineerr.AlreadyExists("rebase in progress", "Repository.InitRebase")
	}

	head, err := r.Reference(plumbing.HEAD)
	if err != nil {
		return err
	}
	headName := plumbing.HEAD.String()
	if head.Type() == plumbing.SymbolicReference {
		headName = head.Target().String()
	}
	origRef, err := r.ResolveRef(plumbing.HEAD)
	if err != nil {
		return err
	}
	origHead := origRef.Hash()

	commits, err := r.commitsNotIn(origHead, opts.Onto)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		if err := r.moveHEAD(opts.Onto, "rebase: fast-forward"); err != nil {
			return err
		}
		return r.materializeCommit(opts.Onto)
	}

	todo := make([]dotgit.RebaseTodoLine, len(commits))
	for i, c := range commits {
		todo[i] = dotgit.RebaseTodoLine{Action: "pick", Hash: c.Hash, Subject: firstLine(c.Message)}
	}

	if err := r.dot.SetOrigHead(origHead); err != nil {
		return err
	}
	if err := r.dot.InitRebase(opts.Onto, origHead, headName, todo); err != nil {
		return err
	}

	detached := plumbing.NewHashReference(plumbing.HEAD, opts.Onto)
	if err := r.dot.SetRef(detached, nil); err != nil {
		return err
	}
	if err := r.materializeCommit(opts.Onto); err != nil {
		return err
	}

	return r.applyRebaseSteps()
}

// commitsNotIn returns the commits reachable from tip but not from base,
// oldest first, restricted to first-parent history (this engine rebases
// linear history only).
func (r *Repository) commitsNotIn(tip, base plumbing.Hash) ([]*object.Commit, error) {
	exclude := make(map[plumbing.Hash]bool)
	h := base
	for !h.IsZero() {
		exclude[h] = true
		c, err := r.ReadCommit(h)
		if err != nil {
			return nil, err
		}
		if c.NumParents() == 0 {
			break
		}
		h = c.Parents[0]
	}

	var chain []*object.Commit
	h = tip
	for !h.IsZero() && !exclude[h] {
		c, err := r.ReadCommit(h)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
		if c.NumParents() == 0 {
			break
		}
		h = c.Parents[0]
	}

	out := make([]*object.Commit, len(chain))
	for i, c := range chain {
		out[len(chain)-1-i] = c
	}
	return out, nil
}

// applyRebaseSteps cherry-picks todo entries onto HEAD until the list is
// drained (finishing the rebase) or a pick conflicts, in which case the
// todo list is left positioned at the conflicting entry for
// ContinueRebase to retry. A pick whose change is already contained in
// the new base produces no commit and is skipped.
func (r *Repository) applyRebaseSteps() error {
	for {
		todo, err := r.dot.ReadRebaseTodo()
		if err != nil {
			return err
		}
		if len(todo) == 0 {
			return r.finishRebase()
		}

		step := todo[0]
		if _, err := r.CherryPick(step.Hash); err != nil {
			if e, ok := engineerr.As(err); ok && e.Code() == engineerr.CodeAlreadyExists {
				if err := r.dot.WriteRebaseTodo(todo[1:]); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if err := r.dot.WriteRebaseTodo(todo[1:]); err != nil {
			return err
		}
	}
}

// ContinueRebase resumes a rebase after the in-progress step's conflicts
// have been resolved and staged: it commits the staged resolution as the
// replayed commit, clears CHERRY_PICK_HEAD, and applies the remaining
// todo entries.
func (r *Repository) ContinueRebase() error {
	return engineerr.WithStack(r.continueRebase())
}

func (r *Repository) continueRebase() error {
	if inProgress, err := r.dot.IsRebaseInProgress(); err != nil {
		return err
	} else if !inProgress {
		return engineerr.NotFound("rebase in progress", "Repository.ContinueRebase", nil)
	}

	todo, err := r.dot.ReadRebaseTodo()
	if err != nil {
		return err
	}
	if len(todo) == 0 {
		return r.finishRebase()
	}

	cpHead, ok, err := r.dot.CherryPickHead()
	if err != nil {
		return err
	}
	if ok {
		target, err := r.ReadCommit(cpHead)
		if err != nil {
			return err
		}
		if _, err := r.Commit(CommitOptions{
			Message: target.Message,
			Author:  &target.Author,
		}); err != nil {
			return err
		}
		if err := r.dot.RemoveCherryPickHead(); err != nil {
			return err
		}
	}

	if err := r.dot.WriteRebaseTodo(todo[1:]); err != nil {
		return err
	}
	return r.applyRebaseSteps()
}

// AbortRebase restores the branch to its pre-rebase state and discards
// the in-progress rebase-merge bookkeeping.
func (r *Repository) AbortRebase() error {
	return engineerr.WithStack(r.abortRebase())
}

func (r *Repository) abortRebase() error {
	origHead, ok, err := r.dot.OrigHead()
	if err != nil {
		return err
	}
	if !ok {
		return engineerr.NotFound("rebase in progress", "Repository.AbortRebase", nil)
	}
	headName, err := r.readRebaseFile("head-name")
	if err != nil {
		return err
	}
	if err := r.moveHEAD(origHead, "rebase: aborting"); err != nil {
		return err
	}
	if err := r.materializeCommit(origHead); err != nil {
		return err
	}
	// Reattach HEAD to the branch the rebase started from.
	if headName != "" && headName != plumbing.HEAD.String() {
		name := plumbing.ReferenceName(headName)
		if err := r.SetReference(plumbing.NewHashReference(name, origHead), nil); err != nil {
			return err
		}
		if err := r.dot.SetRef(plumbing.NewSymbolicReference(plumbing.HEAD, name), nil); err != nil {
			return err
		}
	}
	_ = r.dot.RemoveCherryPickHead()
	return r.dot.AbortRebase()
}

// finishRebase points the original branch name at HEAD's new position and
// clears the rebase-merge state, concluding a rebase whose todo list has
// been fully applied.
func (r *Repository) finishRebase() error {
	headName, err := r.readRebaseFile("head-name")
	if err != nil {
		return err
	}
	tip, err := r.ResolveRef(plumbing.HEAD)
	if err != nil {
		return err
	}
	if headName != "" && headName != plumbing.HEAD.String() {
		name := plumbing.ReferenceName(headName)
		old, err := r.Reference(name)
		if err != nil && err != plumbing.ErrReferenceNotFound {
			return err
		}
		if err == plumbing.ErrReferenceNotFound {
			old = nil
		}
		if err := r.SetReferenceWithMessage(plumbing.NewHashReference(name, tip.Hash()), old, "rebase: finish"); err != nil {
			return err
		}
		if err := r.dot.SetRef(plumbing.NewSymbolicReference(plumbing.HEAD, name), nil); err != nil {
			return err
		}
	}
	return r.dot.AbortRebase()
}

func (r *Repository) readRebaseFile(name string) (string, error) {
	f, err := r.dot.Filesystem().Open("rebase-merge/" + name)
	if err != nil {
		return "", nil
	}
	defer f.Close()
	b, err := readAll(f)
	if err != nil {
		return "", err
	}
	return string(trimTrailingNewline(b)), nil
}

func trimTrailingNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func (r *Repository) commitTree(commit plumbing.Hash) (plumbing.Hash, error) {
	c, err := r.ReadCommit(commit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return c.TreeHash, nil
}
