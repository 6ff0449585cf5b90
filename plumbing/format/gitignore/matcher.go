package gitignore

// Matcher decides, for a full set of layered patterns, whether a path is
// ignored: the LAST pattern that matches (Exclude or Include) wins, so a
// later "!un-ignore" line overrides an earlier ignore.
type Matcher interface {
	Match(path []string, isDir bool) bool
}

type matcher struct {
	patterns []Pattern
}

// NewMatcher builds a Matcher over patterns in read order: info/exclude,
// then .gitignore files from the repository root down to the path's own
// directory, then (by convention of the caller) global/system excludes
// prepended or appended per precedence.
func NewMatcher(patterns []Pattern) Matcher {
	return &matcher{patterns: patterns}
}

func (m *matcher) Match(path []string, isDir bool) bool {
	result := NoMatch
	for _, p := range m.patterns {
		if r := p.Match(path, isDir); r != NoMatch {
			result = r
		}
	}
	return result == Exclude
}
