package packp

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
)

// ShallowUpdate is the server's response to a deepen request: the new
// shallow boundary, sent before negotiation's ACK/NAK lines.
type ShallowUpdate struct {
	Shallows   []plumbing.Hash
	Unshallows []plumbing.Hash
}

// Decode reads "shallow <oid>"/"unshallow <oid>" lines up to a flush.
func (s *ShallowUpdate) Decode(r io.Reader) error {
	sc := pktline.NewScanner(r)
	for sc.Scan() {
		if sc.IsFlush() {
			return nil
		}
		line := strings.TrimSuffix(string(sc.Bytes()), "\n")
		switch {
		case strings.HasPrefix(line, "shallow "):
			s.Shallows = append(s.Shallows, plumbing.NewHash(strings.TrimPrefix(line, "shallow ")))
		case strings.HasPrefix(line, "unshallow "):
			s.Unshallows = append(s.Unshallows, plumbing.NewHash(strings.TrimPrefix(line, "unshallow ")))
		default:
			return fmt.Errorf("packp: malformed shallow-update line %q", line)
		}
	}
	return sc.Err()
}

// Encode writes the shallow-update message.
func (s *ShallowUpdate) Encode(w io.Writer) error {
	for _, h := range s.Shallows {
		if _, err := pktline.WritePacketln(w, "shallow "+h.String()); err != nil {
			return err
		}
	}
	for _, h := range s.Unshallows {
		if _, err := pktline.WritePacketln(w, "unshallow "+h.String()); err != nil {
			return err
		}
	}
	return pktline.WriteFlush(w)
}
