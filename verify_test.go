package git

import (
	"bytes"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/go-git/git-engine/plumbing/object"
)

func newTestEntity(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()
	entity, err := openpgp.NewEntity("Test Signer", "", "signer@example.com", nil)
	require.NoError(t, err)

	var pub bytes.Buffer
	aw, err := armor.Encode(&pub, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(aw))
	require.NoError(t, aw.Close())

	return entity, pub.String()
}

func TestCommitSignAndVerify(t *testing.T) {
	entity, keyring := newTestEntity(t)
	r, fs := testRepo(t)

	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("a\n"), 0644))
	_, err := r.Add("a.txt")
	require.NoError(t, err)

	sig := &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()}
	h, err := r.Commit(CommitOptions{Message: "signed work", Author: sig, SignKey: entity})
	require.NoError(t, err)

	// The stored commit round-trips with its gpgsig header intact.
	c, err := r.ReadCommit(h)
	require.NoError(t, err)
	require.Contains(t, c.PGPSignature, "BEGIN PGP SIGNATURE")

	signer, err := r.VerifyCommit(h, keyring)
	require.NoError(t, err)
	require.Equal(t, entity.PrimaryKey.KeyId, signer.PrimaryKey.KeyId)

	// A keyring that does not contain the signing key rejects it.
	_, otherKeyring := newTestEntity(t)
	_, err = r.VerifyCommit(h, otherKeyring)
	require.Error(t, err)
}

func TestVerifyUnsignedCommitFails(t *testing.T) {
	_, keyring := newTestEntity(t)
	r, fs := testRepo(t)
	h := writeAndCommit(t, r, fs, "a.txt", "a\n", "unsigned")

	_, err := r.VerifyCommit(h, keyring)
	require.ErrorIs(t, err, ErrObjectNotSigned)
}

func TestTagSignAndVerify(t *testing.T) {
	entity, keyring := newTestEntity(t)
	r, fs := testRepo(t)
	writeAndCommit(t, r, fs, "a.txt", "a\n", "c1")

	tagHash, err := r.CreateTag(TagOptions{
		Name:    "v1.0.0",
		Message: "signed release\n",
		Tagger:  object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
		SignKey: entity,
	})
	require.NoError(t, err)

	tag, err := r.ReadTag(tagHash)
	require.NoError(t, err)
	require.Contains(t, tag.PGPSignature, "BEGIN PGP SIGNATURE")
	require.Equal(t, "signed release\n", tag.Message)

	signer, err := r.VerifyTag(tagHash, keyring)
	require.NoError(t, err)
	require.Equal(t, entity.PrimaryKey.KeyId, signer.PrimaryKey.KeyId)
}
