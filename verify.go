package git

import (
	"errors"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/object/pgp"
)

var ErrObjectNotSigned = errors.New("git: object carries no signature")

// VerifyCommit checks the gpgsig header of the commit at h against an
// armored public keyring, returning the signing entity on success.
func (r *Repository) VerifyCommit(h plumbing.Hash, armoredKeyRing string) (*openpgp.Entity, error) {
	c, err := r.ReadCommit(h)
	if err != nil {
		return nil, err
	}
	if c.PGPSignature == "" {
		return nil, engineerr.NotFound("signature on commit "+h.String(), "Repository.VerifyCommit", ErrObjectNotSigned)
	}

	// Reconstruct the payload the signer saw: the commit without its
	// gpgsig header.
	unsigned := *c
	unsigned.PGPSignature = ""
	return pgp.Verify(armoredKeyRing, unsigned.Encode(), c.PGPSignature)
}

// VerifyTag checks the trailing signature block of the annotated tag at h
// against an armored public keyring, returning the signing entity on
// success.
func (r *Repository) VerifyTag(h plumbing.Hash, armoredKeyRing string) (*openpgp.Entity, error) {
	t, err := r.ReadTag(h)
	if err != nil {
		return nil, err
	}
	if t.PGPSignature == "" {
		return nil, engineerr.NotFound("signature on tag "+h.String(), "Repository.VerifyTag", ErrObjectNotSigned)
	}

	unsigned := *t
	unsigned.PGPSignature = ""
	return pgp.Verify(armoredKeyRing, unsigned.Encode(), t.PGPSignature)
}
