package config

import (
	"errors"
	"strings"

	"github.com/go-git/git-engine/plumbing"
)

const (
	refSpecWildcard  = "*"
	refSpecForce     = "+"
	refSpecSeparator = ":"
)

var ErrRefSpecMalformedSeparator = errors.New("config: refspec must have exactly one separator")

// RefSpec maps remote references onto local ones (or vice versa for
// push): an optional leading "+" (force, allow non-fast-
// forward), then "<src>:<dst>", where either both sides carry exactly one
// "*" wildcard, matched positionally against each other, or neither does.
type RefSpec string

func (s RefSpec) Validate() error {
	spec := string(s)
	if strings.Count(spec, refSpecSeparator) != 1 {
		return ErrRefSpecMalformedSeparator
	}

	sep := strings.Index(spec, refSpecSeparator)
	ws := strings.Count(spec[:sep], refSpecWildcard)
	wd := strings.Count(spec[sep+1:], refSpecWildcard)
	if ws != wd || ws > 1 {
		return ErrRefSpecMalformedSeparator
	}
	return nil
}

func (s RefSpec) IsForceUpdate() bool {
	return strings.HasPrefix(string(s), refSpecForce)
}

func (s RefSpec) IsDelete() bool {
	return s.Src() == ""
}

func (s RefSpec) Src() string {
	spec := strings.TrimPrefix(string(s), refSpecForce)
	sep := strings.Index(spec, refSpecSeparator)
	return spec[:sep]
}

func (s RefSpec) Dst(name plumbing.ReferenceName) plumbing.ReferenceName {
	spec := strings.TrimPrefix(string(s), refSpecForce)
	sep := strings.Index(spec, refSpecSeparator)
	src, dst := spec[:sep], spec[sep+1:]

	if !s.isGlob() {
		return plumbing.ReferenceName(dst)
	}

	n := name.String()
	ws := strings.Index(src, refSpecWildcard)
	wd := strings.Index(dst, refSpecWildcard)
	match := n[ws : len(n)-(len(src)-(ws+1))]
	return plumbing.ReferenceName(dst[:wd] + match + dst[wd+1:])
}

func (s RefSpec) isGlob() bool {
	return strings.Contains(string(s), refSpecWildcard)
}

func (s RefSpec) Match(name plumbing.ReferenceName) bool {
	if !s.isGlob() {
		return s.Src() == name.String()
	}

	src := s.Src()
	n := name.String()
	wildcard := strings.Index(src, refSpecWildcard)
	prefix, suffix := src[:wildcard], src[wildcard+1:]
	return len(n) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(n, prefix) &&
		strings.HasSuffix(n, suffix)
}

func (s RefSpec) String() string { return string(s) }

// MatchAny reports whether any of specs matches name.
func MatchAny(specs []RefSpec, name plumbing.ReferenceName) bool {
	for _, s := range specs {
		if s.Match(name) {
			return true
		}
	}
	return false
}
