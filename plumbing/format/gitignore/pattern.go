// Package gitignore implements layered .gitignore matching: patterns read
// from a repository's info/exclude, its .gitignore
// files (most specific last), and the user's global/system excludes,
// combined so that a later, more specific pattern overrides an earlier
// one -- including a leading "!" un-ignoring a previously-matched path.
package gitignore

import "path/filepath"

// MatchResult is the outcome of testing one pattern against one path.
type MatchResult int

const (
	NoMatch MatchResult = iota
	Exclude
	Include
)

// Pattern is a single parsed line of a .gitignore-family file.
type Pattern interface {
	Match(path []string, isDir bool) MatchResult
}

type pattern struct {
	domain  []string
	pattern []string
	inverse bool
	dirOnly bool
	rooted  bool
}

// ParsePattern parses one .gitignore line. domain anchors a "rooted"
// pattern (one containing a "/" other than a single trailing one) to the
// directory the pattern's file was read from, e.g. a pattern from
// "vendor/.gitignore" is anchored under ["vendor"].
func ParsePattern(p string, domain []string) Pattern {
	res := pattern{domain: domain}

	if len(p) > 0 && p[0] == '!' {
		res.inverse = true
		p = p[1:]
	}
	if len(p) > 0 && p[len(p)-1] == '/' {
		res.dirOnly = true
		p = p[:len(p)-1]
	}
	if len(p) > 0 && p[0] == '/' {
		res.rooted = true
		p = p[1:]
	}

	res.pattern = splitPath(p)
	res.rooted = res.rooted || len(res.pattern) > 1
	return &res
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	out = append(out, p[start:])
	return out
}

func (p *pattern) Match(path []string, isDir bool) MatchResult {
	if len(path) < len(p.domain) {
		return NoMatch
	}
	for i, e := range p.domain {
		if path[i] != e {
			return NoMatch
		}
	}
	rel := path[len(p.domain):]

	var matched bool
	if p.rooted {
		matched = p.matchRooted(rel, isDir)
	} else {
		matched = p.matchAnywhere(rel, isDir)
	}

	if !matched {
		return NoMatch
	}
	if p.inverse {
		return Include
	}
	return Exclude
}

// matchAnywhere handles a pattern with no internal "/": git matches it
// against any single path component at any depth under the domain.
func (p *pattern) matchAnywhere(path []string, isDir bool) bool {
	for i, e := range path {
		segIsDir := true
		if i == len(path)-1 {
			segIsDir = isDir
		}
		if p.dirOnly && !segIsDir {
			continue
		}
		if ok, err := filepath.Match(p.pattern[0], e); err == nil && ok {
			return true
		}
	}
	return false
}

// matchRooted handles a pattern with an internal "/": it anchors to the
// start of path (relative to domain) and matches as a PREFIX of path --
// any remainder beyond the matched prefix lies inside the matched
// directory and is covered too, per git's "ignore the whole subtree"
// semantics.
func (p *pattern) matchRooted(path []string, isDir bool) bool {
	if !globPrefixMatch(p.pattern, path) {
		return false
	}
	if !p.dirOnly {
		return true
	}
	if globExactMatch(p.pattern, path) {
		// The pattern consumed all of path with nothing left over; the
		// dir-only requirement applies to the final path element itself.
		return isDir
	}
	// Path continues past the matched prefix, so the matched element is
	// necessarily a directory.
	return true
}

// globPrefixMatch reports whether pattern matches some prefix of path,
// with "**" consuming zero or more path elements.
func globPrefixMatch(pattern, path []string) bool {
	if len(pattern) == 0 {
		return true
	}
	if pattern[0] == "**" {
		if len(pattern) == 1 {
			return true
		}
		for i := 0; i <= len(path); i++ {
			if globPrefixMatch(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if ok, err := filepath.Match(pattern[0], path[0]); err != nil || !ok {
		return false
	}
	return globPrefixMatch(pattern[1:], path[1:])
}

// globExactMatch is globPrefixMatch with no leftover path permitted.
func globExactMatch(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		if len(pattern) == 1 {
			return true
		}
		for i := 0; i <= len(path); i++ {
			if globExactMatch(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if ok, err := filepath.Match(pattern[0], path[0]); err != nil || !ok {
		return false
	}
	return globExactMatch(pattern[1:], path[1:])
}
