// Package objfile implements the canonical object serialisation:
// "<type> <decimal-size>\0<payload>", and its zlib-deflated on-disk framing
// used by loose objects.
package objfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-git/git-engine/plumbing"
	ehash "github.com/go-git/git-engine/plumbing/hash"
)

var (
	ErrClosed      = errors.New("objfile: writer already closed")
	ErrHeaderNotAllowed = errors.New("objfile: header already written")
	ErrMalformedHeader = errors.New("objfile: malformed header")
)

// Serialize returns the canonical "<type> <size>\0<payload>" byte
// representation of an object, used both to compute its OID and to deflate
// it for loose storage.
func Serialize(t plumbing.ObjectType, payload []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", t, len(payload))
	buf := make([]byte, 0, len(header)+len(payload))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	return buf
}

// HashAndSerialize returns both the serialised bytes and the OID of the
// given object.
func HashAndSerialize(t plumbing.ObjectType, payload []byte) (plumbing.Hash, []byte) {
	b := Serialize(t, payload)
	return ehash.Sum(b), b
}

// ParseHeader parses the "<type> <size>\0" header, returning the type and
// the payload size; r is left at the first payload byte.
func ParseHeader(r *bufio.Reader) (plumbing.ObjectType, int64, error) {
	typeBytes, err := r.ReadString(' ')
	if err != nil {
		return plumbing.InvalidObject, 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	t, err := plumbing.ParseObjectType(typeBytes[:len(typeBytes)-1])
	if err != nil {
		return plumbing.InvalidObject, 0, err
	}

	sizeBytes, err := r.ReadString(0)
	if err != nil {
		return plumbing.InvalidObject, 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	size, err := strconv.ParseInt(sizeBytes[:len(sizeBytes)-1], 10, 64)
	if err != nil {
		return plumbing.InvalidObject, 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	return t, size, nil
}

// WriteLoose deflates the canonical serialisation of an object for storage
// as a loose object file.
func WriteLoose(t plumbing.ObjectType, payload []byte) (plumbing.Hash, []byte, error) {
	oid, raw := HashAndSerialize(t, payload)
	deflated, err := ehash.Deflate(raw, -1)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	return oid, deflated, nil
}

// ReadLoose inflates a loose-object file's bytes and parses its header,
// returning the type and payload.
func ReadLoose(b []byte) (plumbing.ObjectType, []byte, error) {
	raw, err := ehash.Inflate(b)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}

	r := bufio.NewReader(bytes.NewReader(raw))
	t, size, err := ParseHeader(r)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return plumbing.InvalidObject, nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	return t, payload, nil
}
