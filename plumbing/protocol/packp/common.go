package packp

import (
	"bytes"

	"github.com/go-git/git-engine/plumbing/format/pktline"
)

const hashSize = 40

var (
	sp  = []byte(" ")
	eol = []byte("\n")

	head   = []byte("HEAD")
	null   = []byte("\x00")
	peeled = []byte("^{}")

	noHeadMark = []byte(" capabilities^{}\x00")

	want            = []byte("want ")
	shallow         = []byte("shallow ")
	unshallow       = []byte("unshallow ")
	deepenCommits   = []byte("deepen ")
	deepenSince     = []byte("deepen-since ")
	deepenReference = []byte("deepen-not ")
	done            = []byte("done\n")
)

// isFlush reports whether a line read by a pktline.Scanner's Bytes() came
// from a flush-pkt (an empty payload, as opposed to an empty data line).
func isFlush(s *pktline.Scanner) bool {
	return s.IsFlush()
}

func trimEOL(b []byte) []byte {
	return bytes.TrimSuffix(b, eol)
}
