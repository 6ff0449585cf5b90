package git

import (
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/plumbing/object/pgp"
)

// BranchOptions configures CreateBranch.
type BranchOptions struct {
	Name   string
	Hash   plumbing.Hash // if zero, HEAD is used
	Force  bool
}

// CreateBranch creates refs/heads/<Name> pointing at Hash (or HEAD's
// commit if Hash is zero). An existing branch
// fails with AlreadyExists unless Force is set.
func (r *Repository) CreateBranch(opts BranchOptions) error {
	if opts.Name == "" {
		return engineerr.MissingParameter("Name", "Repository.CreateBranch")
	}
	if !validRefName("refs/heads/" + opts.Name) {
		return engineerr.InvalidRefName(opts.Name, sanitizeRefName(opts.Name), "Repository.CreateBranch")
	}

	target := opts.Hash
	if target.IsZero() {
		head, err := r.ResolveRef(plumbing.HEAD)
		if err != nil {
			return err
		}
		target = head.Hash()
	}

	name := plumbing.NewBranchReferenceName(opts.Name)
	old, err := r.Reference(name)
	switch err {
	case nil:
		if !opts.Force {
			return engineerr.AlreadyExists("branch "+opts.Name, "Repository.CreateBranch")
		}
	case plumbing.ErrReferenceNotFound:
		old = nil
	default:
		return err
	}

	return r.SetReferenceWithMessage(plumbing.NewHashReference(name, target), old, "branch: Created from "+target.String())
}

// DeleteBranch removes refs/heads/<name>.
func (r *Repository) DeleteBranch(name string) error {
	if name == "" {
		return engineerr.MissingParameter("name", "Repository.DeleteBranch")
	}
	ref := plumbing.NewBranchReferenceName(name)
	if _, err := r.Reference(ref); err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return engineerr.NotFound("branch "+name, "Repository.DeleteBranch", err)
		}
		return err
	}
	return r.dot.RemoveRef(ref)
}

// ListBranches returns every refs/heads/* reference.
func (r *Repository) ListBranches() ([]*plumbing.Reference, error) {
	all, err := r.ListRefs()
	if err != nil {
		return nil, err
	}
	var out []*plumbing.Reference
	for _, ref := range all {
		if ref.Name().IsBranch() {
			out = append(out, ref)
		}
	}
	return out, nil
}

// TagOptions configures CreateTag.
type TagOptions struct {
	Name    string
	Hash    plumbing.Hash // if zero, HEAD is used
	Message string        // non-empty creates an annotated tag object
	Tagger  object.Signature
	Force   bool
	// SignKey, when set, signs the annotated tag with this entity's
	// private key; it requires a non-empty Message.
	SignKey *openpgp.Entity
}

// CreateTag creates refs/tags/<Name>, either a lightweight ref pointing
// directly at the target, or (when Message is non-empty) an annotated
// tag object the ref points at.
func (r *Repository) CreateTag(opts TagOptions) (plumbing.Hash, error) {
	if opts.Name == "" {
		return plumbing.ZeroHash, engineerr.MissingParameter("Name", "Repository.CreateTag")
	}
	if !validRefName("refs/tags/" + opts.Name) {
		return plumbing.ZeroHash, engineerr.InvalidRefName(opts.Name, sanitizeRefName(opts.Name), "Repository.CreateTag")
	}

	target := opts.Hash
	if target.IsZero() {
		head, err := r.ResolveRef(plumbing.HEAD)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		target = head.Hash()
	}

	name := plumbing.NewTagReferenceName(opts.Name)
	old, err := r.Reference(name)
	switch err {
	case nil:
		if !opts.Force {
			return plumbing.ZeroHash, engineerr.AlreadyExists("tag "+opts.Name, "Repository.CreateTag")
		}
	case plumbing.ErrReferenceNotFound:
		old = nil
	default:
		return plumbing.ZeroHash, err
	}

	refTarget := target
	if opts.Message != "" {
		typ, _, err := r.storage.Read(target)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		tag := &object.Tag{
			Object:     target,
			ObjectType: typ,
			Name:       opts.Name,
			Tagger:     opts.Tagger,
			Message:    opts.Message,
		}
		if opts.SignKey != nil {
			sig, err := pgp.Sign(opts.SignKey, tag.Encode())
			if err != nil {
				return plumbing.ZeroHash, err
			}
			tag.PGPSignature = sig
		}
		h, err := r.storage.Write(plumbing.TagObject, tag.Encode())
		if err != nil {
			return plumbing.ZeroHash, err
		}
		refTarget = h
	}

	if err := r.SetReferenceWithMessage(plumbing.NewHashReference(name, refTarget), old, "tag: "+opts.Name); err != nil {
		return plumbing.ZeroHash, err
	}
	return refTarget, nil
}

// DeleteTag removes refs/tags/<name>.
func (r *Repository) DeleteTag(name string) error {
	if name == "" {
		return engineerr.MissingParameter("name", "Repository.DeleteTag")
	}
	ref := plumbing.NewTagReferenceName(name)
	if _, err := r.Reference(ref); err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return engineerr.NotFound("tag "+name, "Repository.DeleteTag", err)
		}
		return err
	}
	return r.dot.RemoveRef(ref)
}

// ListTags returns every refs/tags/* reference.
func (r *Repository) ListTags() ([]*plumbing.Reference, error) {
	all, err := r.ListRefs()
	if err != nil {
		return nil, err
	}
	var out []*plumbing.Reference
	for _, ref := range all {
		if ref.Name().IsTag() {
			out = append(out, ref)
		}
	}
	return out, nil
}

// peelTag follows an annotated tag object chain to the commit/tree/blob it
// ultimately names, as resolveRef does for symbolic refs.
func (r *Repository) peelTag(h plumbing.Hash) (plumbing.Hash, plumbing.ObjectType, error) {
	for depth := 0; depth < maxResolveDepth; depth++ {
		typ, payload, err := r.storage.Read(h)
		if err != nil {
			return plumbing.ZeroHash, 0, err
		}
		if typ != plumbing.TagObject {
			return h, typ, nil
		}
		tag, err := object.DecodeTag(payload)
		if err != nil {
			return plumbing.ZeroHash, 0, err
		}
		h = tag.Object
	}
	return plumbing.ZeroHash, 0, engineerr.MaxDepth(maxResolveDepth, "Repository.peelTag")
}

func trimRefsPrefix(name plumbing.ReferenceName) string {
	return strings.TrimPrefix(name.String(), "refs/")
}
