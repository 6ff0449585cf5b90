package packfile

import (
	"hash"

	"github.com/go-git/git-engine/plumbing"
	ehash "github.com/go-git/git-engine/plumbing/hash"
)

// runningHash accumulates a SHA-1 over every byte fed to it; used by the
// scanner to validate the trailer checksum. Call Sum before reading
// the trailer bytes themselves, since the trailer is a hash of the
// preceding bytes only.
type runningHash struct {
	h hash.Hash
}

func newRunningHash() *runningHash {
	return &runningHash{h: ehash.New()}
}

func (r *runningHash) Write(b []byte) {
	r.h.Write(b)
}

func (r *runningHash) Sum() plumbing.Hash {
	var out plumbing.Hash
	copy(out[:], r.h.Sum(nil))
	return out
}
