package git

import (
	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/object"
)

// LogOptions configures Log.
type LogOptions struct {
	// From is the commit the walk starts at; the zero hash means HEAD.
	From plumbing.Hash
	// MaxCount bounds the number of commits returned; 0 means no bound.
	MaxCount int
}

// Log walks the commit graph from opts.From (or HEAD) toward the roots,
// newest-first by committer time, the same priority-queue ordering the
// merge-base search uses.
func (r *Repository) Log(opts LogOptions) ([]*object.Commit, error) {
	start := opts.From
	if start.IsZero() {
		head, err := r.ResolveRef(plumbing.HEAD)
		if err != nil {
			return nil, engineerr.NotFound("HEAD", "Repository.Log", err)
		}
		start = head.Hash()
	}

	first, err := r.GetCommit(start)
	if err != nil {
		return nil, err
	}

	h := binaryheap.NewWith(func(x, y interface{}) int {
		cx, cy := x.(*object.Commit), y.(*object.Commit)
		switch {
		case cx.Committer.When.After(cy.Committer.When):
			return -1
		case cx.Committer.When.Before(cy.Committer.When):
			return 1
		default:
			return 0
		}
	})
	h.Push(first)
	seen := map[plumbing.Hash]bool{first.Hash: true}

	var out []*object.Commit
	for !h.Empty() {
		v, _ := h.Pop()
		c := v.(*object.Commit)
		out = append(out, c)
		if opts.MaxCount > 0 && len(out) == opts.MaxCount {
			break
		}
		for _, ph := range c.Parents {
			if seen[ph] {
				continue
			}
			seen[ph] = true
			p, err := r.GetCommit(ph)
			if err != nil {
				return nil, err
			}
			h.Push(p)
		}
	}
	return out, nil
}
