package plumbing

import "fmt"

// ObjectType identifies the kind of a git object: every object
// carries a type from this set in its canonical serialisation header.
type ObjectType int8

const (
	InvalidObject ObjectType = 0
	CommitObject  ObjectType = 1
	TreeObject    ObjectType = 2
	BlobObject    ObjectType = 3
	TagObject     ObjectType = 4

	// OffsetDeltaObject and RefDeltaObject only appear inside packfiles;
	// they are resolved to one of the four kinds above before being handed
	// to callers (see plumbing/format/packfile).
	OffsetDeltaObject ObjectType = 6
	RefDeltaObject    ObjectType = 7
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case OffsetDeltaObject:
		return "ofs-delta"
	case RefDeltaObject:
		return "ref-delta"
	default:
		return "invalid"
	}
}

// Bytes returns the type's wire name, as written in the object header
// "<type> <size>\0" and in pack entry debugging output.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// Valid reports whether t is one of the four object kinds that can be
// durably stored (excludes the delta pseudo-types).
func (t ObjectType) Valid() bool {
	switch t {
	case CommitObject, TreeObject, BlobObject, TagObject:
		return true
	default:
		return false
	}
}

// ParseObjectType parses the wire name of an object type.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "commit":
		return CommitObject, nil
	case "tree":
		return TreeObject, nil
	case "blob":
		return BlobObject, nil
	case "tag":
		return TagObject, nil
	default:
		return InvalidObject, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// FileMode is a tree entry's mode.
type FileMode uint32

const (
	FileModeTree       FileMode = 0040000
	FileModeRegular    FileMode = 0100644
	FileModeExecutable FileMode = 0100755
	FileModeSymlink    FileMode = 0120000
	FileModeGitlink    FileMode = 0160000
)

// IsDir reports whether the mode denotes a tree entry.
func (m FileMode) IsDir() bool { return m == FileModeTree }
