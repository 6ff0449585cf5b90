// Package hash provides SHA-1 hashing of object byte ranges
// It wraps github.com/pjbgf/sha1cd, a drop-in, collision-detecting SHA-1
// implementation, the same dependency the go-git project itself uses to
// compute object ids.
package hash

import (
	"hash"
	"io"

	"github.com/pjbgf/sha1cd"
)

// New returns a new incremental SHA-1 hasher.
func New() hash.Hash {
	return sha1cd.New()
}

// Sum computes the SHA-1 digest of b in one call.
func Sum(b []byte) [20]byte {
	h := New()
	h.Write(b)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SumReader streams r through an incremental hasher, returning the digest
// once r is exhausted. Used when ingesting packfile entries where the
// payload is not fully buffered up front.
func SumReader(r io.Reader) ([20]byte, error) {
	h := New()
	if _, err := io.Copy(h, r); err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
