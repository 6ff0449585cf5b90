package plumbing

import "strings"

// HEAD is the name of the reference that usually points at the current
// branch.
const HEAD ReferenceName = "HEAD"

const (
	refHeadPrefix    = "refs/heads/"
	refTagPrefix     = "refs/tags/"
	refRemotePrefix  = "refs/remotes/"
	refNotePrefix    = "refs/notes/"
)

// ReferenceName is a normalized reference name, e.g. "refs/heads/main".
type ReferenceName string

func (r ReferenceName) String() string {
	return string(r)
}

// Short returns the short, human-friendly form of a reference name, as
// printed by `git branch`/`git tag`.
func (r ReferenceName) Short() string {
	s := string(r)
	res := s
	for _, prefix := range []string{refHeadPrefix, refTagPrefix, refRemotePrefix, refNotePrefix} {
		if strings.HasPrefix(s, prefix) {
			res = s[len(prefix):]
			break
		}
	}
	return res
}

func (r ReferenceName) IsBranch() bool {
	return strings.HasPrefix(string(r), refHeadPrefix)
}

func (r ReferenceName) IsTag() bool {
	return strings.HasPrefix(string(r), refTagPrefix)
}

func (r ReferenceName) IsRemote() bool {
	return strings.HasPrefix(string(r), refRemotePrefix)
}

func (r ReferenceName) IsNote() bool {
	return strings.HasPrefix(string(r), refNotePrefix)
}

func NewBranchReferenceName(name string) ReferenceName {
	return ReferenceName(refHeadPrefix + name)
}

func NewNoteReferenceName(name string) ReferenceName {
	return ReferenceName(refNotePrefix + name)
}

func NewRemoteReferenceName(remote, name string) ReferenceName {
	return ReferenceName(refRemotePrefix + remote + "/" + name)
}

func NewRemoteHEADReferenceName(remote string) ReferenceName {
	return ReferenceName(refRemotePrefix + remote + "/HEAD")
}

func NewTagReferenceName(name string) ReferenceName {
	return ReferenceName(refTagPrefix + name)
}

// ReferenceType discriminates a symbolic reference from a direct one.
type ReferenceType int8

const (
	InvalidReference  ReferenceType = 0
	HashReference     ReferenceType = 1
	SymbolicReference ReferenceType = 2
)

func (r ReferenceType) String() string {
	switch r {
	case HashReference:
		return "hash-reference"
	case SymbolicReference:
		return "symbolic-reference"
	default:
		return "invalid-reference"
	}
}

// Reference is either a direct (hash) reference or a symbolic reference, per
// A ref is either direct (40-hex OID) or symbolic ("ref: <name>").
type Reference struct {
	t      ReferenceType
	n      ReferenceName
	h      Hash
	target ReferenceName
}

// NewReferenceFromStrings builds a Reference from its on-disk textual
// representation: either a 40-hex OID, or "ref: <target>".
func NewReferenceFromStrings(name, target string) *Reference {
	if strings.HasPrefix(target, "ref: ") {
		return NewSymbolicReference(ReferenceName(name), ReferenceName(target[5:]))
	}
	return NewHashReference(ReferenceName(name), NewHash(target))
}

func NewSymbolicReference(name, target ReferenceName) *Reference {
	return &Reference{t: SymbolicReference, n: name, target: target}
}

func NewHashReference(name ReferenceName, h Hash) *Reference {
	return &Reference{t: HashReference, n: name, h: h}
}

func (r *Reference) Type() ReferenceType { return r.t }
func (r *Reference) Name() ReferenceName { return r.n }
func (r *Reference) Hash() Hash          { return r.h }
func (r *Reference) Target() ReferenceName {
	return r.target
}

// Strings returns the (name, value) pair as it would be written to disk.
func (r *Reference) Strings() [2]string {
	var s [2]string
	s[0] = r.Name().String()
	if r.Type() == SymbolicReference {
		s[1] = "ref: " + r.Target().String()
		return s
	}
	s[1] = r.Hash().String()
	return s
}

func (r *Reference) String() string {
	s := r.Strings()
	return s[1] + " " + s[0]
}
