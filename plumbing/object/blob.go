package object

import "github.com/go-git/git-engine/plumbing"

// Blob is an opaque byte payload; its encoding is the identity function.
type Blob struct {
	Hash plumbing.Hash
	Blob []byte
}

func (b *Blob) Encode() []byte { return b.Blob }

func DecodeBlob(payload []byte) (*Blob, error) {
	return &Blob{Blob: payload}, nil
}
