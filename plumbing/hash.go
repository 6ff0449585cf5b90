package plumbing

import (
	"encoding/hex"
	"sort"
)

// HashSize is the length in bytes of a Hash.
const HashSize = 20

// HexSize is the length in characters of the hex representation of a Hash.
const HexSize = HashSize * 2

// Hash is a SHA-1 object id, the canonical identity of every object in the
// object database.
type Hash [HashSize]byte

// ZeroHash is the zero value of Hash, used to represent "no object" (e.g.
// the old value of a ref being created, or a missing parent).
var ZeroHash Hash

// NewHash returns a new Hash from its hexadecimal representation. An
// invalid or short input results in the zero hash; callers that need to
// distinguish malformed input should use FromHex.
func NewHash(s string) Hash {
	h, _ := FromHex(s)
	return h
}

// FromHex parses a 40-character lowercase hex string into a Hash.
func FromHex(s string) (Hash, error) {
	var h Hash
	if len(s) != HexSize {
		return h, ErrInvalidHashLength
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}

	copy(h[:], b)
	return h, nil
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the 40-character lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Compare returns -1, 0 or 1 comparing h's bytes against b.
func (h Hash) Compare(b []byte) int {
	for i := 0; i < HashSize && i < len(b); i++ {
		if h[i] != b[i] {
			if h[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(b) < HashSize:
		return 1
	case len(b) > HashSize:
		return -1
	default:
		return 0
	}
}

// IsHash reports whether s looks like a full hex object id.
func IsHash(s string) bool {
	if len(s) != HexSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashesSort sorts a slice of Hash in increasing order.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

// HashSlice attaches sort.Interface to []Hash.
type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return p[i].Compare(p[j][:]) < 0 }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
