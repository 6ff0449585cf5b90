package object

import (
	"testing"
	"time"

	"github.com/go-git/git-engine/plumbing"
	"github.com/stretchr/testify/require"
)

type fakeGetter map[plumbing.Hash]*Commit

func (f fakeGetter) GetCommit(h plumbing.Hash) (*Commit, error) {
	c, ok := f[h]
	if !ok {
		return nil, plumbing.ErrObjectNotFound
	}
	return c, nil
}

func mkCommit(name string, when int64, parents ...*Commit) *Commit {
	var parentHashes []plumbing.Hash
	for _, p := range parents {
		parentHashes = append(parentHashes, p.Hash)
	}
	c := &Commit{
		Hash:      plumbing.NewHash(padHash(name)),
		Parents:   parentHashes,
		Committer: Signature{When: time.Unix(when, 0)},
		Message:   name,
	}
	return c
}

func padHash(s string) string {
	out := s
	for len(out) < 40 {
		out += "0"
	}
	return out[:40]
}

func TestMergeBaseLinearHistory(t *testing.T) {
	g := fakeGetter{}
	root := mkCommit("a1", 1)
	g[root.Hash] = root
	c2 := mkCommit("a2", 2, root)
	g[c2.Hash] = c2
	c3 := mkCommit("a3", 3, c2)
	g[c3.Hash] = c3

	bases, err := MergeBase(g, c3, root)
	require.NoError(t, err)
	require.Len(t, bases, 1)
	require.Equal(t, root.Hash, bases[0].Hash)
}

func TestMergeBaseDivergentHistory(t *testing.T) {
	g := fakeGetter{}
	root := mkCommit("b1", 1)
	g[root.Hash] = root
	ours := mkCommit("b2", 2, root)
	g[ours.Hash] = ours
	theirs := mkCommit("b3", 2, root)
	g[theirs.Hash] = theirs

	bases, err := MergeBase(g, ours, theirs)
	require.NoError(t, err)
	require.Len(t, bases, 1)
	require.Equal(t, root.Hash, bases[0].Hash)
}

func TestIsAncestor(t *testing.T) {
	g := fakeGetter{}
	root := mkCommit("c1", 1)
	g[root.Hash] = root
	child := mkCommit("c2", 2, root)
	g[child.Hash] = child

	ok, err := IsAncestor(g, root, child)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = IsAncestor(g, child, root)
	require.NoError(t, err)
	require.False(t, ok)
}
