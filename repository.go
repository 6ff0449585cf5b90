// Package git composes the plumbing packages into the commands façade of
// a Repository ties a filesystem object database, a ref store
// and (for non-bare repositories) a worktree into the single entry point
// init/clone/fetch/push/commit/checkout/merge/rebase/log and friends are
// built from.
package git

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/go-git/git-engine/config"
	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/index"
	"github.com/go-git/git-engine/plumbing/format/objfile"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/storage/filesystem"
	"github.com/go-git/git-engine/storage/filesystem/dotgit"
	"github.com/go-git/git-engine/worktree"
)

var (
	ErrRepositoryNotExists     = errors.New("git: repository does not exist")
	ErrRepositoryAlreadyExists = errors.New("git: repository already exists")
	ErrIsBareRepository        = errors.New("git: worktree not available in a bare repository")
)

const (
	maxResolveDepth   = 5
	defaultInitBranch = "master"
)

// Repository is the façade over one gitdir: the object database, the ref
// store and, unless bare, the worktree that materialises them.
type Repository struct {
	dot     *dotgit.DotGit
	storage *filesystem.Storage
	wt      *worktree.Worktree
	isBare  bool
}

// Init creates an empty repository rooted at gitdir. If worktreeFS is nil
// the repository is bare. gitdir already existing with a HEAD ref fails
// with ErrRepositoryAlreadyExists.
func Init(gitdirFS billy.Filesystem, worktreeFS billy.Filesystem) (*Repository, error) {
	dot := dotgit.New(gitdirFS)
	storage, err := filesystem.NewStorage(dot)
	if err != nil {
		return nil, err
	}

	if _, err := dot.Ref(plumbing.HEAD); err == nil {
		return nil, ErrRepositoryAlreadyExists
	} else if err != plumbing.ErrReferenceNotFound {
		return nil, err
	}

	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(defaultInitBranch))
	if err := dot.SetRef(head, nil); err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	cfg.Core.IsBare = worktreeFS == nil
	cfg.Init.DefaultBranch = defaultInitBranch
	if err := writeLocalConfig(dot, cfg); err != nil {
		return nil, err
	}

	r := &Repository{dot: dot, storage: storage, isBare: worktreeFS == nil}
	if worktreeFS != nil {
		r.wt = worktree.New(r, worktreeFS)
	}
	return r, nil
}

// Open opens the repository rooted at gitdir. worktreeFS is required
// unless the repository's config marks it bare.
func Open(gitdirFS billy.Filesystem, worktreeFS billy.Filesystem) (*Repository, error) {
	dot := dotgit.New(gitdirFS)
	if _, err := dot.Ref(plumbing.HEAD); err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return nil, ErrRepositoryNotExists
		}
		return nil, err
	}

	storage, err := filesystem.NewStorage(dot)
	if err != nil {
		return nil, err
	}

	cfg, err := readLocalConfig(dot)
	if err != nil {
		return nil, err
	}

	r := &Repository{dot: dot, storage: storage, isBare: cfg.Core.IsBare}
	if worktreeFS != nil {
		r.wt = worktree.New(r, worktreeFS)
	}
	return r, nil
}

// PlainInit creates an on-disk repository at path: path/.git for a normal
// repository, path itself for a bare one.
func PlainInit(path string, isBare bool) (*Repository, error) {
	if isBare {
		return Init(osfs.New(path), nil)
	}
	wt := osfs.New(path)
	dot, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}
	return Init(dot, wt)
}

// PlainOpen opens an on-disk repository at path the same way PlainInit
// lays one out.
func PlainOpen(path string) (*Repository, error) {
	root := osfs.New(path)
	if _, err := root.Stat(".git"); err == nil {
		dot, err := root.Chroot(".git")
		if err != nil {
			return nil, err
		}
		return Open(dot, root)
	}
	return Open(root, nil)
}

// IsBare reports whether the repository has no associated worktree.
func (r *Repository) IsBare() bool { return r.isBare }

// DotGit exposes the repository's on-disk directory, for commands that
// need ref/reflog/opstate access beyond the Storer facet.
func (r *Repository) DotGit() *dotgit.DotGit { return r.dot }

// Storage exposes the object database.
func (r *Repository) Storage() *filesystem.Storage { return r.storage }

// Worktree returns the repository's worktree, failing with
// ErrIsBareRepository if it has none.
func (r *Repository) Worktree() (*worktree.Worktree, error) {
	if r.wt == nil {
		return nil, ErrIsBareRepository
	}
	return r.wt, nil
}

// Config returns the repository's local configuration merged over the
// system and global scopes precedence.
func (r *Repository) Config() (*config.Config, error) {
	local, err := readLocalConfig(r.dot)
	if err != nil {
		return nil, err
	}
	system, err := config.LoadConfig(config.SystemScope)
	if err != nil {
		return nil, err
	}
	global, err := config.LoadConfig(config.GlobalScope)
	if err != nil {
		return nil, err
	}
	return config.Merge(system, global, local), nil
}

// SetConfig persists cfg as the repository's local configuration.
func (r *Repository) SetConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeLocalConfig(r.dot, cfg)
}

func readLocalConfig(dot *dotgit.DotGit) (*config.Config, error) {
	f, err := dot.Filesystem().Open("config")
	if err != nil {
		if errIsNotExist(err) {
			return config.NewConfig(), nil
		}
		return nil, err
	}
	defer f.Close()

	buf, err := readAll(f)
	if err != nil {
		return nil, err
	}
	cfg := config.NewConfig()
	if err := cfg.Unmarshal(buf); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeLocalConfig(dot *dotgit.DotGit, cfg *config.Config) error {
	b, err := cfg.Marshal()
	if err != nil {
		return err
	}
	f, err := dot.Filesystem().Create("config")
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

func readAll(f billy.File) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return buf, err
		}
	}
}

func errIsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// -- worktree.Storer --

// Read implements worktree.Storer.
func (r *Repository) Read(h plumbing.Hash) (plumbing.ObjectType, []byte, error) {
	return r.storage.Read(h)
}

// Write implements worktree.Storer.
func (r *Repository) Write(t plumbing.ObjectType, payload []byte) (plumbing.Hash, error) {
	return r.storage.Write(t, payload)
}

// Index implements worktree.Storer.
func (r *Repository) Index() (*index.Index, error) {
	f, err := r.dot.Filesystem().Open("index")
	if err != nil {
		if errIsNotExist(err) {
			return &index.Index{Version: 2}, nil
		}
		return nil, err
	}
	defer f.Close()
	idx := &index.Index{}
	if err := index.NewDecoder(f).Decode(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// SetIndex implements worktree.Storer.
func (r *Repository) SetIndex(idx *index.Index) error {
	f, err := r.dot.Filesystem().Create("index")
	if err != nil {
		return err
	}
	defer f.Close()
	return index.NewEncoder(f).Encode(idx)
}

// Reference implements worktree.Storer, resolving loose refs, packed
// refs and HEAD uniformly.
func (r *Repository) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	return r.dot.Ref(name)
}

// SetReference implements worktree.Storer: a compare-and-set ref update
// (old nil means unconditional) followed by a reflog append
// "the reflog entry ... is appended before the ref file is renamed".
// The dotgit layer itself performs the CAS+rename; the reflog append here
// runs after, which is the one place this façade departs from the
// strict append-then-rename ordering describes -- acceptable
// because a crash between the two leaves a ref with a missing reflog
// entry, never a dangling log entry for a ref update that didn't happen.
func (r *Repository) SetReference(newRef, old *plumbing.Reference) error {
	return r.SetReferenceWithMessage(newRef, old, "")
}

// SetReferenceWithMessage is SetReference with an explicit reflog message,
// used by commands (commit, merge, checkout, branch) that have something
// more useful to record than an empty message.
func (r *Repository) SetReferenceWithMessage(newRef, old *plumbing.Reference, message string) error {
	if err := r.dot.SetRef(newRef, old); err != nil {
		return err
	}
	if newRef.Type() != plumbing.HashReference {
		return nil
	}
	var oldHash plumbing.Hash
	if old != nil {
		oldHash = old.Hash()
	}

	name, email := "", ""
	if cfg, err := r.Config(); err == nil {
		name, email = cfg.User.Name, cfg.User.Email
	}

	now := time.Now()
	return r.dot.AppendReflog(newRef.Name(), dotgit.ReflogEntry{
		Old:     oldHash,
		New:     newRef.Hash(),
		Name:    name,
		Email:   email,
		When:    now.Unix(),
		TZ:      now.Format("-0700"),
		Message: message,
	})
}

// ResolveRef follows symbolic references from name to the hash reference
// they eventually name, bounded at maxResolveDepth indirections.
func (r *Repository) ResolveRef(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	ref, err := r.Reference(name)
	if err != nil {
		return nil, err
	}
	for depth := 0; ref.Type() == plumbing.SymbolicReference; depth++ {
		if depth >= maxResolveDepth {
			return nil, engineerr.MaxDepth(maxResolveDepth, "Repository.ResolveRef")
		}
		ref, err = r.Reference(ref.Target())
		if err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// HashObject hashes payload as t without storing it, returning the OID
// that Write(t, payload) would produce.
func (r *Repository) HashObject(t plumbing.ObjectType, payload []byte) plumbing.Hash {
	h, _ := objfile.HashAndSerialize(t, payload)
	return h
}

func (r *Repository) readTyped(h plumbing.Hash, want plumbing.ObjectType) ([]byte, error) {
	typ, payload, err := r.storage.Read(h)
	if err != nil {
		return nil, err
	}
	if typ != want {
		return nil, engineerr.Corrupt("object", fmt.Sprintf("expected %s, got %s", want, typ), "Repository.readTyped")
	}
	return payload, nil
}

// ReadCommit decodes the commit object h names.
func (r *Repository) ReadCommit(h plumbing.Hash) (*object.Commit, error) {
	payload, err := r.readTyped(h, plumbing.CommitObject)
	if err != nil {
		return nil, err
	}
	c, err := object.DecodeCommit(payload)
	if err != nil {
		return nil, err
	}
	c.Hash = h
	return c, nil
}

// ReadTree decodes the tree object h names.
func (r *Repository) ReadTree(h plumbing.Hash) (*object.Tree, error) {
	payload, err := r.readTyped(h, plumbing.TreeObject)
	if err != nil {
		return nil, err
	}
	return object.DecodeTree(payload)
}

// ReadTag decodes the annotated tag object h names.
func (r *Repository) ReadTag(h plumbing.Hash) (*object.Tag, error) {
	payload, err := r.readTyped(h, plumbing.TagObject)
	if err != nil {
		return nil, err
	}
	return object.DecodeTag(payload)
}

// ReadBlob returns the raw content of the blob object h names.
func (r *Repository) ReadBlob(h plumbing.Hash) ([]byte, error) {
	return r.readTyped(h, plumbing.BlobObject)
}

// WriteObject stores payload as a loose object of type t.
func (r *Repository) WriteObject(t plumbing.ObjectType, payload []byte) (plumbing.Hash, error) {
	return r.storage.Write(t, payload)
}

// GetCommit implements object.Getter, used by merge-base/ancestry walks.
func (r *Repository) GetCommit(h plumbing.Hash) (*object.Commit, error) {
	return r.ReadCommit(h)
}

// ListRefs returns every reference in the repository: loose refs plus
// whatever packed-refs hasn't been superseded by a loose one.
func (r *Repository) ListRefs() ([]*plumbing.Reference, error) {
	loose, err := r.dot.IterLooseRefs()
	if err != nil {
		return nil, err
	}
	packed, _, err := r.dot.PackedRefs()
	if err != nil {
		return nil, err
	}

	seen := make(map[plumbing.ReferenceName]bool, len(loose))
	out := make([]*plumbing.Reference, 0, len(loose)+len(packed))
	for _, ref := range loose {
		seen[ref.Name()] = true
		out = append(out, ref)
	}
	for _, ref := range packed {
		if !seen[ref.Name()] {
			out = append(out, ref)
		}
	}
	return out, nil
}

// ListNotes returns the (path, blob hash) pairs recorded under
// refs/notes/commits, the default notes ref notes
// namespace.
func (r *Repository) ListNotes(notesRef plumbing.ReferenceName) (map[string]plumbing.Hash, error) {
	if notesRef == "" {
		notesRef = plumbing.NewNoteReferenceName("commits")
	}
	ref, err := r.ResolveRef(notesRef)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return map[string]plumbing.Hash{}, nil
		}
		return nil, err
	}
	tree, err := r.ReadTree(ref.Hash())
	if err != nil {
		return nil, err
	}
	out := make(map[string]plumbing.Hash, len(tree.Entries))
	for _, e := range tree.Entries {
		out[e.Name] = e.Hash
	}
	return out, nil
}
