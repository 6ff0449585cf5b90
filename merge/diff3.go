// Package merge implements the three-way merge engine: tree
// merge over (base, ours, theirs) trees and, beneath it, a diff3-style
// three-way text merge for the blobs those trees disagree on.
package merge

import (
	"reflect"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// TextResult is the outcome of a three-way text merge.
type TextResult struct {
	CleanMerge bool
	Merged     string
}

// Style selects whether conflict blocks include the base content between
// the ours and theirs hunks ("diff3" style) or omit it (the default,
// two-way marker style).
type Style int

const (
	StyleMerge Style = iota
	StyleDiff3
)

// MergeText runs a three-way line merge of base/ours/theirs, splitting on
// "\n", and emits conflict markers labelled with oursLabel/theirsLabel on
// mismatch. The line terminator is fixed; other line endings cannot be
// selected.
func MergeText(base, ours, theirs, oursLabel, theirsLabel string, style Style) TextResult {
	const eol = "\n"
	baseLines := splitKeepingEmpty(base, eol)
	oursLines := splitKeepingEmpty(ours, eol)
	theirsLines := splitKeepingEmpty(theirs, eol)

	clean, merged := merge3Lines(baseLines, oursLines, theirsLines, oursLabel, theirsLabel, style)
	return TextResult{CleanMerge: clean, Merged: strings.Join(merged, "")}
}

func splitKeepingEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, sep)
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// hunk is a maximal run of either unchanged base lines ("equal") or a
// replaced base range, as produced by diffing base against one other side.
type hunk struct {
	baseStart, baseEnd int
	lines              []string
	equal              bool
}

var dmp = diffmatchpatch.New()

// computeHunks diffs base against other at line granularity (via
// diffmatchpatch's line-mode helpers, collapsing each distinct line to one
// rune so DiffMain operates over whole lines) and returns the base-ordered
// partition of equal/changed hunks that merge3Lines walks.
func computeHunks(base, other []string) []hunk {
	baseText := strings.Join(base, "")
	otherText := strings.Join(other, "")

	c1, c2, lineArray := dmp.DiffLinesToChars(baseText, otherText)
	diffs := dmp.DiffMain(c1, c2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var hunks []hunk
	baseIdx := 0
	var pending *hunk
	flush := func() {
		if pending != nil {
			hunks = append(hunks, *pending)
			pending = nil
		}
	}

	for _, d := range diffs {
		lines := splitKeepingEmpty(d.Text, "\n")
		// DiffLinesToChars strips the caller's own terminators into plain
		// "\n"-joined text; re-attach so output lines keep their endings.
		for i := range lines {
			if !strings.HasSuffix(lines[i], "\n") {
				lines[i] += "\n"
			}
		}

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			n := len(lines)
			hunks = append(hunks, hunk{baseStart: baseIdx, baseEnd: baseIdx + n, lines: lines, equal: true})
			baseIdx += n
		case diffmatchpatch.DiffDelete:
			if pending == nil {
				pending = &hunk{baseStart: baseIdx, baseEnd: baseIdx}
			}
			pending.baseEnd += len(lines)
			baseIdx += len(lines)
		case diffmatchpatch.DiffInsert:
			if pending == nil {
				pending = &hunk{baseStart: baseIdx, baseEnd: baseIdx}
			}
			pending.lines = append(pending.lines, lines...)
		}
	}
	flush()
	return hunks
}

func peek(hs []hunk, i int) *hunk {
	if i >= len(hs) {
		return nil
	}
	return &hs[i]
}

// merge3Lines performs the actual three-way reconciliation: it walks the
// hunk partitions of (base,ours) and (base,theirs) in lockstep over the
// shared base-line coordinate space, accumulating a conflict region
// whenever either side departs from "equal" and flushing it (as a clean
// take, if both sides made the identical edit, or as a marked-up conflict
// otherwise) once both sides return to "equal" in sync.
func merge3Lines(base, ours, theirs []string, oursLabel, theirsLabel string, style Style) (bool, []string) {
	h1 := computeHunks(base, ours)
	h2 := computeHunks(base, theirs)

	var out []string
	clean := true

	var inConflict bool
	var baseBuf, oursBuf, theirsBuf []string

	flushConflict := func() {
		if !inConflict {
			return
		}
		switch {
		case reflect.DeepEqual(oursBuf, theirsBuf):
			out = append(out, oursBuf...)
		case reflect.DeepEqual(theirsBuf, baseBuf):
			// theirs left the region untouched; take ours.
			out = append(out, oursBuf...)
		case reflect.DeepEqual(oursBuf, baseBuf):
			out = append(out, theirsBuf...)
		default:
			out = append(out, "<<<<<<< "+oursLabel+"\n")
			out = append(out, oursBuf...)
			if style == StyleDiff3 {
				out = append(out, "|||||||\n")
				out = append(out, baseBuf...)
			}
			out = append(out, "=======\n")
			out = append(out, theirsBuf...)
			out = append(out, ">>>>>>> "+theirsLabel+"\n")
			clean = false
		}
		inConflict = false
		baseBuf, oursBuf, theirsBuf = nil, nil, nil
	}

	i, j, pos := 0, 0, 0
	for i < len(h1) || j < len(h2) {
		a, b := peek(h1, i), peek(h2, j)

		aInsert := a != nil && a.baseStart == pos && a.baseEnd == pos
		bInsert := b != nil && b.baseStart == pos && b.baseEnd == pos

		if aInsert || bInsert {
			switch {
			case aInsert && bInsert:
				if reflect.DeepEqual(a.lines, b.lines) {
					if inConflict {
						oursBuf = append(oursBuf, a.lines...)
						theirsBuf = append(theirsBuf, a.lines...)
					} else {
						out = append(out, a.lines...)
					}
				} else {
					if !inConflict {
						inConflict = true
					}
					oursBuf = append(oursBuf, a.lines...)
					theirsBuf = append(theirsBuf, b.lines...)
				}
				i++
				j++
			case aInsert:
				if inConflict {
					oursBuf = append(oursBuf, a.lines...)
				} else {
					out = append(out, a.lines...)
				}
				i++
			case bInsert:
				if inConflict {
					theirsBuf = append(theirsBuf, b.lines...)
				} else {
					out = append(out, b.lines...)
				}
				j++
			}
			continue
		}

		if a == nil && b == nil {
			break
		}
		if a == nil || b == nil {
			// One side exhausted before the other; shouldn't occur since
			// both partitions cover the same base range, but guard against
			// a malformed diff rather than panic.
			break
		}

		end := a.baseEnd
		if b.baseEnd < end {
			end = b.baseEnd
		}

		switch {
		case a.equal && b.equal:
			flushConflict()
			out = append(out, base[pos:end]...)
		case a.equal && !b.equal:
			if !inConflict {
				inConflict = true
			}
			baseBuf = append(baseBuf, base[pos:end]...)
			oursBuf = append(oursBuf, base[pos:end]...)
			if end == b.baseEnd {
				theirsBuf = append(theirsBuf, b.lines...)
			}
		case !a.equal && b.equal:
			if !inConflict {
				inConflict = true
			}
			baseBuf = append(baseBuf, base[pos:end]...)
			theirsBuf = append(theirsBuf, base[pos:end]...)
			if end == a.baseEnd {
				oursBuf = append(oursBuf, a.lines...)
			}
		default:
			if !inConflict {
				inConflict = true
			}
			baseBuf = append(baseBuf, base[pos:end]...)
			if end == a.baseEnd {
				oursBuf = append(oursBuf, a.lines...)
			}
			if end == b.baseEnd {
				theirsBuf = append(theirsBuf, b.lines...)
			}
		}

		pos = end
		if pos == a.baseEnd {
			i++
		}
		if pos == b.baseEnd {
			j++
		}
	}
	flushConflict()

	return clean, out
}
