package git

import (
	"sort"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/filemode"
	"github.com/go-git/git-engine/plumbing/format/index"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/plumbing/object/pgp"
)

// CommitOptions configures Commit.
type CommitOptions struct {
	Message   string
	Author    *object.Signature
	Committer *object.Signature
	// Parents overrides the default "current HEAD" single-parent commit,
	// used by merge/cherry-pick/rebase to record multiple ancestors.
	Parents []plumbing.Hash
	AllowEmpty bool
	// SignKey, when set, signs the commit with this entity's private key,
	// recording the armored signature as the commit's gpgsig header.
	SignKey *openpgp.Entity
}

// Commit snapshots the current index as a tree, creates a commit object
// over it with the resolved parent set, and moves HEAD (and the branch it
// names, if any) to the new commit.
func (r *Repository) Commit(opts CommitOptions) (plumbing.Hash, error) {
	h, err := r.commit(opts)
	return h, engineerr.WithStack(err)
}

func (r *Repository) commit(opts CommitOptions) (plumbing.Hash, error) {
	if opts.Message == "" {
		return plumbing.ZeroHash, engineerr.MissingParameter("Message", "Repository.Commit")
	}

	idx, err := r.Index()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if idx.HasConflicts() {
		return plumbing.ZeroHash, engineerr.UnmergedPaths(conflictedPaths(idx), "Repository.Commit")
	}

	treeHash, err := r.writeTreeFromIndex(idx)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	parents := opts.Parents
	headRef, headErr := r.ResolveRef(plumbing.HEAD)
	if parents == nil {
		if headErr == nil {
			parents = []plumbing.Hash{headRef.Hash()}
		} else if headErr != plumbing.ErrReferenceNotFound {
			return plumbing.ZeroHash, headErr
		}
	}

	if !opts.AllowEmpty && len(parents) == 1 {
		parentCommit, err := r.ReadCommit(parents[0])
		if err == nil && parentCommit.TreeHash == treeHash {
			return plumbing.ZeroHash, engineerr.AlreadyExists("commit with identical tree", "Repository.Commit")
		}
	}

	sig := r.defaultSignature()
	author, committer := sig, sig
	if opts.Author != nil {
		author = *opts.Author
	}
	if opts.Committer != nil {
		committer = *opts.Committer
	} else if opts.Author != nil {
		committer = *opts.Author
	}

	commit := &object.Commit{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   opts.Message,
	}

	if opts.SignKey != nil {
		// Sign the serialisation without the gpgsig header, which is what
		// verifiers reconstruct.
		sig, err := pgp.Sign(opts.SignKey, commit.Encode())
		if err != nil {
			return plumbing.ZeroHash, err
		}
		commit.PGPSignature = sig
	}

	h, err := r.storage.Write(plumbing.CommitObject, commit.Encode())
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if err := r.moveHEAD(h, opts.Message); err != nil {
		return plumbing.ZeroHash, err
	}
	return h, nil
}

// moveHEAD points HEAD (and, if HEAD is symbolic, the branch it names) at
// commit, recording a reflog entry. A detached HEAD in an unborn
// repository is created as a direct reference.
func (r *Repository) moveHEAD(commit plumbing.Hash, message string) error {
	head, err := r.Reference(plumbing.HEAD)
	if err != nil {
		return err
	}

	target := plumbing.HEAD
	var old *plumbing.Reference
	if head.Type() == plumbing.SymbolicReference {
		target = head.Target()
		old, err = r.Reference(target)
		if err != nil && err != plumbing.ErrReferenceNotFound {
			return err
		}
		if err == plumbing.ErrReferenceNotFound {
			old = nil
		}
	} else {
		old = head
	}

	return r.SetReferenceWithMessage(plumbing.NewHashReference(target, commit), old, "commit: "+firstLine(message))
}

func (r *Repository) defaultSignature() object.Signature {
	name, email := "unknown", "unknown@localhost"
	if cfg, err := r.Config(); err == nil {
		if cfg.User.Name != "" {
			name = cfg.User.Name
		}
		if cfg.User.Email != "" {
			email = cfg.User.Email
		}
	}
	return object.Signature{Name: name, Email: email, When: time.Now()}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func conflictedPaths(idx *index.Index) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range idx.Entries {
		if e.Stage != index.Merged && !seen[e.Name] {
			seen[e.Name] = true
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out
}

// treeNode accumulates one directory level while building a tree from a
// flat index.
type treeNode struct {
	entries map[string]*object.TreeEntry
	dirs    map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{entries: make(map[string]*object.TreeEntry), dirs: make(map[string]*treeNode)}
}

// writeTreeFromIndex builds and writes the nested tree objects a commit
// over idx's stage-0 entries would need, returning the root tree's OID.
func (r *Repository) writeTreeFromIndex(idx *index.Index) (plumbing.Hash, error) {
	root := newTreeNode()
	for _, e := range idx.Entries {
		if e.Stage != index.Merged {
			continue
		}
		segs := strings.Split(e.Name, "/")
		node := root
		for i, seg := range segs[:len(segs)-1] {
			_ = i
			child, ok := node.dirs[seg]
			if !ok {
				child = newTreeNode()
				node.dirs[seg] = child
			}
			node = child
		}
		leaf := segs[len(segs)-1]
		node.entries[leaf] = &object.TreeEntry{
			Name: leaf,
			Mode: indexModeToTreeMode(e.Mode),
			Hash: e.Hash,
		}
	}
	return r.writeTreeNode(root)
}

func (r *Repository) writeTreeNode(n *treeNode) (plumbing.Hash, error) {
	t := &object.Tree{}
	for name, e := range n.entries {
		_ = name
		t.Entries = append(t.Entries, *e)
	}
	for name, child := range n.dirs {
		h, err := r.writeTreeNode(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		t.Entries = append(t.Entries, object.TreeEntry{
			Name: name,
			Mode: plumbing.FileModeTree,
			Hash: h,
		})
	}
	return r.storage.Write(plumbing.TreeObject, t.EncodeCanonical())
}

func indexModeToTreeMode(m filemode.FileMode) plumbing.FileMode {
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
