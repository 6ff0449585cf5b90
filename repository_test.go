package git

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/worktree"
)

func testRepo(t *testing.T) (*Repository, billy.Filesystem) {
	t.Helper()
	wtfs := memfs.New()
	r, err := Init(memfs.New(), wtfs)
	require.NoError(t, err)
	return r, wtfs
}

func writeAndCommit(t *testing.T, r *Repository, fs billy.Filesystem, path, content, msg string) plumbing.Hash {
	t.Helper()
	require.NoError(t, util.WriteFile(fs, path, []byte(content), 0644))
	_, err := r.Add(path)
	require.NoError(t, err)
	sig := &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()}
	h, err := r.Commit(CommitOptions{Message: msg, Author: sig})
	require.NoError(t, err)
	return h
}

func TestInitAndFirstCommit(t *testing.T) {
	r, fs := testRepo(t)
	h := writeAndCommit(t, r, fs, "hello.txt", "hello\n", "initial")

	head, err := r.ResolveRef(plumbing.HEAD)
	require.NoError(t, err)
	require.Equal(t, h, head.Hash())

	c, err := r.ReadCommit(h)
	require.NoError(t, err)
	require.Equal(t, "initial", c.Message)
	require.Empty(t, c.Parents)
}

// TestTagLifecycle: a lightweight tag resolves to
// the tagged commit, re-tagging fails with AlreadyExists, and force
// re-tagging succeeds.
func TestTagLifecycle(t *testing.T) {
	r, fs := testRepo(t)
	h := writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	_, err := r.CreateTag(TagOptions{Name: "latest"})
	require.NoError(t, err)

	got, err := r.ResolveRef(plumbing.ReferenceName("refs/tags/latest"))
	require.NoError(t, err)
	require.Equal(t, h, got.Hash())

	_, err = r.CreateTag(TagOptions{Name: "latest"})
	require.Error(t, err)
	e, ok := engineerr.As(err)
	require.True(t, ok)
	require.Equal(t, engineerr.CodeAlreadyExists, e.Code())

	_, err = r.CreateTag(TagOptions{Name: "latest", Force: true})
	require.NoError(t, err)
}

func TestAnnotatedTagPeels(t *testing.T) {
	r, fs := testRepo(t)
	h := writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	tagHash, err := r.CreateTag(TagOptions{
		Name:    "v1.0.0",
		Message: "release v1.0.0",
		Tagger:  object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	require.NotEqual(t, h, tagHash)

	tag, err := r.ReadTag(tagHash)
	require.NoError(t, err)
	require.Equal(t, h, tag.Object)
	require.Equal(t, plumbing.CommitObject, tag.ObjectType)
}

// TestCheckoutRestoresMissingFile: a tracked file
// deleted from the worktree is restored by a forced checkout of HEAD.
func TestCheckoutRestoresMissingFile(t *testing.T) {
	r, fs := testRepo(t)
	writeAndCommit(t, r, fs, "kept.txt", "contents\n", "c1")

	require.NoError(t, fs.Remove("kept.txt"))
	_, err := fs.Stat("kept.txt")
	require.Error(t, err)

	require.NoError(t, r.Checkout(worktree.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("master"),
		Force:  true,
	}))

	got, err := util.ReadFile(fs, "kept.txt")
	require.NoError(t, err)
	require.Equal(t, "contents\n", string(got))
}

func TestBranchCreateSwitchDelete(t *testing.T) {
	r, fs := testRepo(t)
	h := writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	require.NoError(t, r.CreateBranch(BranchOptions{Name: "feature"}))
	branches, err := r.ListBranches()
	require.NoError(t, err)
	require.Len(t, branches, 2)

	require.NoError(t, r.Switch("feature", false))
	head, err := r.Reference(plumbing.HEAD)
	require.NoError(t, err)
	require.Equal(t, plumbing.NewBranchReferenceName("feature"), head.Target())

	h2 := writeAndCommit(t, r, fs, "b.txt", "b\n", "c2")
	require.NotEqual(t, h, h2)

	// The branch moved; master did not.
	master, err := r.Reference(plumbing.NewBranchReferenceName("master"))
	require.NoError(t, err)
	require.Equal(t, h, master.Hash())

	require.NoError(t, r.Switch("master", false))
	require.NoError(t, r.DeleteBranch("feature"))
	_, err = r.Reference(plumbing.NewBranchReferenceName("feature"))
	require.Equal(t, plumbing.ErrReferenceNotFound, err)
}

func TestInvalidRefNameRejected(t *testing.T) {
	r, _ := testRepo(t)

	err := r.CreateBranch(BranchOptions{Name: "bad..name"})
	require.Error(t, err)
	e, ok := engineerr.As(err)
	require.True(t, ok)
	require.Equal(t, engineerr.CodeInvalidRefName, e.Code())
}

func TestLogNewestFirst(t *testing.T) {
	r, fs := testRepo(t)
	h1 := writeAndCommit(t, r, fs, "a.txt", "1\n", "c1")
	h2 := writeAndCommit(t, r, fs, "a.txt", "2\n", "c2")
	h3 := writeAndCommit(t, r, fs, "a.txt", "3\n", "c3")

	commits, err := r.Log(LogOptions{})
	require.NoError(t, err)
	require.Len(t, commits, 3)
	require.Equal(t, h3, commits[0].Hash)
	require.Equal(t, h2, commits[1].Hash)
	require.Equal(t, h1, commits[2].Hash)

	limited, err := r.Log(LogOptions{MaxCount: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

// TestResolveSymbolicDepthBound: resolution follows
// at most a bounded number of symbolic indirections.
func TestResolveSymbolicDepthBound(t *testing.T) {
	r, fs := testRepo(t)
	writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	// Build a chain sym0 -> sym1 -> ... -> sym6 -> master.
	prev := plumbing.NewBranchReferenceName("master")
	for i := 6; i >= 0; i-- {
		name := plumbing.ReferenceName("refs/heads/sym" + string(rune('0'+i)))
		require.NoError(t, r.SetReference(plumbing.NewSymbolicReference(name, prev), nil))
		prev = name
	}

	_, err := r.ResolveRef(plumbing.ReferenceName("refs/heads/sym0"))
	require.Error(t, err)

	// A short chain still resolves.
	_, err = r.ResolveRef(plumbing.ReferenceName("refs/heads/sym5"))
	require.NoError(t, err)
}

func TestStatusReportsModifications(t *testing.T) {
	r, fs := testRepo(t)
	writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("changed\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "new.txt", []byte("new\n"), 0644))

	st, err := r.Status()
	require.NoError(t, err)
	require.Equal(t, worktree.Modified, st.File("a.txt").Worktree)
	require.Equal(t, worktree.Untracked, st.File("new.txt").Worktree)
}

func TestMergeFastForward(t *testing.T) {
	r, fs := testRepo(t)
	h1 := writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	require.NoError(t, r.CreateBranch(BranchOptions{Name: "feature"}))
	require.NoError(t, r.Switch("feature", false))
	h2 := writeAndCommit(t, r, fs, "b.txt", "b\n", "c2")

	require.NoError(t, r.Switch("master", false))
	master, err := r.Reference(plumbing.NewBranchReferenceName("master"))
	require.NoError(t, err)
	require.Equal(t, h1, master.Hash())

	got, err := r.Merge(MergeOptions{Theirs: h2})
	require.NoError(t, err)
	require.Equal(t, h2, got)

	master, err = r.Reference(plumbing.NewBranchReferenceName("master"))
	require.NoError(t, err)
	require.Equal(t, h2, master.Hash())
}

func TestMergeThreeWayCreatesMergeCommit(t *testing.T) {
	r, fs := testRepo(t)
	writeAndCommit(t, r, fs, "base.txt", "base\n", "c1")

	require.NoError(t, r.CreateBranch(BranchOptions{Name: "feature"}))
	require.NoError(t, r.Switch("feature", false))
	hTheirs := writeAndCommit(t, r, fs, "theirs.txt", "theirs\n", "c-theirs")

	require.NoError(t, r.Switch("master", false))
	hOurs := writeAndCommit(t, r, fs, "ours.txt", "ours\n", "c-ours")

	merged, err := r.Merge(MergeOptions{Theirs: hTheirs})
	require.NoError(t, err)

	c, err := r.ReadCommit(merged)
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{hOurs, hTheirs}, c.Parents)

	// Both sides' files are present after the merge.
	for _, name := range []string{"base.txt", "ours.txt", "theirs.txt"} {
		_, err := fs.Stat(name)
		require.NoError(t, err)
	}
}

func TestCherryPick(t *testing.T) {
	r, fs := testRepo(t)
	writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	require.NoError(t, r.CreateBranch(BranchOptions{Name: "feature"}))
	require.NoError(t, r.Switch("feature", false))
	hPick := writeAndCommit(t, r, fs, "picked.txt", "picked\n", "add picked")

	require.NoError(t, r.Switch("master", false))
	got, err := r.CherryPick(hPick)
	require.NoError(t, err)
	require.NotEqual(t, hPick, got)

	c, err := r.ReadCommit(got)
	require.NoError(t, err)
	require.Equal(t, "add picked", c.Message)

	_, err = fs.Stat("picked.txt")
	require.NoError(t, err)
}

// TestIgnoredDirectoryBeatsNegatedFile: a file in a
// directory matched by a non-negated pattern stays ignored even when a
// negated pattern matches the file itself, because the walk never
// descends into the excluded directory.
func TestIgnoredDirectoryBeatsNegatedFile(t *testing.T) {
	r, fs := testRepo(t)
	writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	require.NoError(t, util.WriteFile(fs, ".gitignore", []byte("logs/\n!logs/keep.txt\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "logs/keep.txt", []byte("kept\n"), 0644))
	require.NoError(t, util.WriteFile(fs, "logs/debug.log", []byte("noise\n"), 0644))

	st, err := r.Status()
	require.NoError(t, err)
	require.NotContains(t, st, "logs/keep.txt")
	require.NotContains(t, st, "logs/debug.log")
	require.Equal(t, worktree.Untracked, st.File(".gitignore").Worktree)
}

func TestShortOidExpansion(t *testing.T) {
	r, fs := testRepo(t)
	h := writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	candidates, err := r.Storage().ExpandShortOid(h.String()[:8])
	require.NoError(t, err)
	require.Equal(t, []plumbing.Hash{h}, candidates)
}
