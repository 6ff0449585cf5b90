package gitignore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatternSimpleName(t *testing.T) {
	p := ParsePattern("vendor", nil)
	require.Equal(t, Exclude, p.Match([]string{"vendor"}, true))
	require.Equal(t, Exclude, p.Match([]string{"sub", "vendor"}, true))
	require.Equal(t, NoMatch, p.Match([]string{"vendored"}, true))
}

func TestPatternRooted(t *testing.T) {
	p := ParsePattern("/build", nil)
	require.Equal(t, Exclude, p.Match([]string{"build"}, true))
	require.Equal(t, NoMatch, p.Match([]string{"sub", "build"}, true))
}

func TestPatternDirOnly(t *testing.T) {
	p := ParsePattern("logs/", nil)
	require.Equal(t, Exclude, p.Match([]string{"logs"}, true))
	require.Equal(t, NoMatch, p.Match([]string{"logs"}, false))
}

func TestPatternGlob(t *testing.T) {
	p := ParsePattern("*.o", nil)
	require.Equal(t, Exclude, p.Match([]string{"main.o"}, false))
	require.Equal(t, Exclude, p.Match([]string{"deep", "dir", "main.o"}, false))
	require.Equal(t, NoMatch, p.Match([]string{"main.c"}, false))
}

func TestPatternNegation(t *testing.T) {
	p := ParsePattern("!important.log", nil)
	require.Equal(t, Include, p.Match([]string{"important.log"}, false))
}

func TestPatternDomainScoping(t *testing.T) {
	// A pattern read from sub/.gitignore only applies under sub/.
	p := ParsePattern("*.tmp", []string{"sub"})
	require.Equal(t, Exclude, p.Match([]string{"sub", "x.tmp"}, false))
	require.Equal(t, NoMatch, p.Match([]string{"other", "x.tmp"}, false))
}

func TestMatcherLastMatchWins(t *testing.T) {
	m := NewMatcher([]Pattern{
		ParsePattern("*.log", nil),
		ParsePattern("!keep.log", nil),
	})
	require.True(t, m.Match([]string{"debug.log"}, false))
	require.False(t, m.Match([]string{"keep.log"}, false))
}

func TestMatcherDoubleStar(t *testing.T) {
	m := NewMatcher([]Pattern{ParsePattern("a/**/b", nil)})
	require.True(t, m.Match([]string{"a", "b"}, true))
	require.True(t, m.Match([]string{"a", "x", "y", "b"}, true))
	require.False(t, m.Match([]string{"b", "a"}, true))
}
