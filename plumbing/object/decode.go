package object

import (
	"fmt"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/objfile"
)

// Decode dispatches to the type-specific decoder and stamps the object's
// hash on blobs, commits and tags; a Tree has no hash field and is
// returned as decoded.
func Decode(h plumbing.Hash, t plumbing.ObjectType, payload []byte) (interface{}, error) {
	switch t {
	case plumbing.BlobObject:
		b, err := DecodeBlob(payload)
		if err != nil {
			return nil, err
		}
		b.Hash = h
		return b, nil
	case plumbing.TreeObject:
		return DecodeTree(payload)
	case plumbing.CommitObject:
		c, err := DecodeCommit(payload)
		if err != nil {
			return nil, err
		}
		c.Hash = h
		return c, nil
	case plumbing.TagObject:
		tg, err := DecodeTag(payload)
		if err != nil {
			return nil, err
		}
		tg.Hash = h
		return tg, nil
	default:
		return nil, fmt.Errorf("object: cannot decode type %s", t)
	}
}

// Encode serialises an object value of any of the four kinds, returning its
// wire type and payload ready for objfile.HashAndSerialize.
func Encode(v interface{}) (plumbing.ObjectType, []byte, error) {
	switch o := v.(type) {
	case *Blob:
		return plumbing.BlobObject, o.Encode(), nil
	case *Tree:
		return plumbing.TreeObject, o.EncodeCanonical(), nil
	case *Commit:
		return plumbing.CommitObject, o.Encode(), nil
	case *Tag:
		return plumbing.TagObject, o.Encode(), nil
	default:
		return plumbing.InvalidObject, nil, fmt.Errorf("object: cannot encode type %T", v)
	}
}

// HashObject is a convenience wrapping objfile.HashAndSerialize for an
// already-typed object value.
func HashObject(v interface{}) (plumbing.Hash, []byte, error) {
	t, payload, err := Encode(v)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	oid, raw := objfile.HashAndSerialize(t, payload)
	return oid, raw, nil
}
