// Package pgp signs and verifies the detached OpenPGP signatures carried
// by commit gpgsig headers and annotated tag trailers.
package pgp

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

var (
	ErrNilEntity    = errors.New("pgp: cannot sign with a nil entity")
	ErrEmptyKeyRing = errors.New("pgp: keyring contains no keys")
)

// Sign produces an armored detached signature over payload using entity's
// private key. payload is the object's canonical serialisation without
// its signature block.
func Sign(entity *openpgp.Entity, payload []byte) (string, error) {
	if entity == nil {
		return "", ErrNilEntity
	}
	var b bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&b, entity, bytes.NewReader(payload), nil); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Verify checks an armored detached signature over payload against an
// armored public keyring, returning the signing entity on success.
func Verify(armoredKeyRing string, payload []byte, armoredSignature string) (*openpgp.Entity, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKeyRing))
	if err != nil {
		return nil, err
	}
	if len(keyring) == 0 {
		return nil, ErrEmptyKeyRing
	}
	return VerifyWithKeyring(keyring, payload, armoredSignature)
}

// VerifyWithKeyring is Verify over an already-parsed keyring.
func VerifyWithKeyring(keyring openpgp.EntityList, payload []byte, armoredSignature string) (*openpgp.Entity, error) {
	return openpgp.CheckArmoredDetachedSignature(
		keyring,
		bytes.NewReader(payload),
		strings.NewReader(armoredSignature),
		nil,
	)
}
