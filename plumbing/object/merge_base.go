package object

import (
	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/go-git/git-engine/plumbing"
)

// Getter resolves a commit object by hash. Satisfied by the object
// database's commit-reading facet.
type Getter interface {
	GetCommit(h plumbing.Hash) (*Commit, error)
}

// MergeBase returns the best common ancestors of two commits, used by the
// merge engine as the "base" input to a three-way merge. When
// several independent common ancestors exist (criss-cross merges), all are
// returned; callers that need a single base typically use the first one or
// recursively merge the set.
//
// The traversal is newest-first over a priority queue ordered by committer
// time, backed by emirpasic/gods' binary heap instead of a hand-rolled one.
func MergeBase(g Getter, a, b *Commit) ([]*Commit, error) {
	inA, err := ancestorsAndSelf(g, a)
	if err != nil {
		return nil, err
	}

	visited := make(map[plumbing.Hash]bool)
	var results []*Commit

	h := binaryheap.NewWith(func(x, y interface{}) int {
		cx, cy := x.(*Commit), y.(*Commit)
		switch {
		case cx.Committer.When.After(cy.Committer.When):
			return -1
		case cx.Committer.When.Before(cy.Committer.When):
			return 1
		default:
			return 0
		}
	})
	h.Push(b)
	seen := map[plumbing.Hash]bool{b.Hash: true}

	for !h.Empty() {
		v, _ := h.Pop()
		c := v.(*Commit)

		if inA[c.Hash] {
			if !isDescendantOfAny(g, results, c) {
				results = append(results, c)
			}
			continue
		}
		if visited[c.Hash] {
			continue
		}
		visited[c.Hash] = true

		for _, ph := range c.Parents {
			if seen[ph] {
				continue
			}
			seen[ph] = true
			p, err := g.GetCommit(ph)
			if err != nil {
				return nil, err
			}
			h.Push(p)
		}
	}

	return results, nil
}

func ancestorsAndSelf(g Getter, start *Commit) (map[plumbing.Hash]bool, error) {
	set := map[plumbing.Hash]bool{start.Hash: true}
	queue := []*Commit{start}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, ph := range c.Parents {
			if set[ph] {
				continue
			}
			set[ph] = true
			p, err := g.GetCommit(ph)
			if err != nil {
				return nil, err
			}
			queue = append(queue, p)
		}
	}
	return set, nil
}

// isDescendantOfAny avoids returning a candidate base that is itself an
// ancestor of one already collected (keeps only the most recent
// independent bases).
func isDescendantOfAny(g Getter, bases []*Commit, candidate *Commit) bool {
	for _, base := range bases {
		if base.Hash == candidate.Hash {
			return true
		}
		anc, err := ancestorsAndSelf(g, base)
		if err == nil && anc[candidate.Hash] {
			return true
		}
	}
	return false
}

// IsAncestor reports whether a is a (non-strict) ancestor of b; used by
// the merge fast-forward policy.
func IsAncestor(g Getter, a, b *Commit) (bool, error) {
	anc, err := ancestorsAndSelf(g, b)
	if err != nil {
		return false, err
	}
	return anc[a.Hash], nil
}
