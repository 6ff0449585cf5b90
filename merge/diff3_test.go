package merge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const textBase = `celery
garlic
onions
salmon
tomatoes
wine
`

// ours moves salmon/tomatoes before garlic; theirs moves salmon/tomatoes
// before onions. Both rearrangements touch the same base region, so the
// merge conflicts.
const textOurs = `celery
salmon
tomatoes
garlic
onions
wine
`

const textTheirs = `celery
garlic
salmon
tomatoes
onions
wine
`

func TestMergeTextCleanDistinctRegions(t *testing.T) {
	base := "a\nb\nc\nd\ne\n"
	ours := "A\nb\nc\nd\ne\n"   // changed first line
	theirs := "a\nb\nc\nd\nE\n" // changed last line

	res := MergeText(base, ours, theirs, "ours", "theirs", StyleMerge)
	require.True(t, res.CleanMerge)
	require.Equal(t, "A\nb\nc\nd\nE\n", res.Merged)
}

func TestMergeTextBothSidesIdenticalEdit(t *testing.T) {
	base := "a\nb\nc\n"
	edit := "a\nX\nc\n"

	res := MergeText(base, edit, edit, "ours", "theirs", StyleMerge)
	require.True(t, res.CleanMerge)
	require.Equal(t, edit, res.Merged)
}

func TestMergeTextConflictMarkers(t *testing.T) {
	base := "a\nb\nc\n"
	ours := "a\nOURS\nc\n"
	theirs := "a\nTHEIRS\nc\n"

	res := MergeText(base, ours, theirs, "ours-branch", "theirs-branch", StyleMerge)
	require.False(t, res.CleanMerge)
	require.Equal(t,
		"a\n<<<<<<< ours-branch\nOURS\n=======\nTHEIRS\n>>>>>>> theirs-branch\nc\n",
		res.Merged)
}

func TestMergeTextDiff3StyleIncludesBase(t *testing.T) {
	base := "a\nb\nc\n"
	ours := "a\nOURS\nc\n"
	theirs := "a\nTHEIRS\nc\n"

	res := MergeText(base, ours, theirs, "ours", "theirs", StyleDiff3)
	require.False(t, res.CleanMerge)
	require.Contains(t, res.Merged, "|||||||\nb\n=======\n")
}

func TestMergeTextOnlyOneSideChanged(t *testing.T) {
	base := "x\ny\nz\n"
	ours := "x\ny2\nz\n"

	res := MergeText(base, ours, base, "ours", "theirs", StyleMerge)
	require.True(t, res.CleanMerge)
	require.Equal(t, ours, res.Merged)

	res = MergeText(base, base, ours, "ours", "theirs", StyleMerge)
	require.True(t, res.CleanMerge)
	require.Equal(t, ours, res.Merged)
}

func TestMergeTextRecipeRearrangement(t *testing.T) {
	res := MergeText(textBase, textOurs, textTheirs, "a", "b", StyleMerge)
	// The two rearrangements overlap on the salmon/tomatoes block, so this
	// cannot merge cleanly; the output must carry both variants.
	require.False(t, res.CleanMerge)
	require.Contains(t, res.Merged, "<<<<<<< a\n")
	require.Contains(t, res.Merged, ">>>>>>> b\n")

	// Every input line survives somewhere in the output.
	for _, line := range strings.Split(strings.TrimSuffix(textBase, "\n"), "\n") {
		require.Contains(t, res.Merged, line)
	}
}

func TestMergeTextAdditionsAtEOF(t *testing.T) {
	base := "one\n"
	ours := "one\ntwo\n"
	theirs := "one\ntwo\n"

	res := MergeText(base, ours, theirs, "ours", "theirs", StyleMerge)
	require.True(t, res.CleanMerge)
	require.Equal(t, "one\ntwo\n", res.Merged)
}

func TestMergeTextEmptyBase(t *testing.T) {
	res := MergeText("", "hello\n", "hello\n", "ours", "theirs", StyleMerge)
	require.True(t, res.CleanMerge)
	require.Equal(t, "hello\n", res.Merged)
}
