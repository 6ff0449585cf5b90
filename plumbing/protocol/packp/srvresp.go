package packp

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
)

// ACKStatus is the acknowledgement a server gives for one "have" line
// during negotiation.
type ACKStatus string

const (
	ACKContinue ACKStatus = "continue"
	ACKCommon   ACKStatus = "common"
	ACKReady    ACKStatus = "ready"
)

// ServerResponse is the negotiation reply to an UploadHaves round: zero or
// more ACKs (under multi_ack/multi_ack_detailed) or a single NAK, then,
// once negotiation concludes, the packfile itself, which the caller reads
// separately through pktline.Demux.
type ServerResponse struct {
	ACKs []ACK
}

// ACK is one "ACK <oid>[ <status>]" line.
type ACK struct {
	Hash   plumbing.Hash
	Status ACKStatus
}

// Decode reads ACK/NAK lines until a flush, a "NAK" with no further lines,
// or the first byte of packfile data is reached. Because the packfile
// follows immediately without a flush in the non-multi_ack case, callers
// using plain ACK/NAK must stop calling Decode after the first ACK that
// carries no status (a bare "ACK <oid>" ends negotiation and the next
// bytes are the pack).
func (s *ServerResponse) Decode(r io.Reader, multiAck bool) error {
	sc := pktline.NewScanner(r)
	for sc.Scan() {
		if sc.IsFlush() {
			return nil
		}
		line := strings.TrimSuffix(string(sc.Bytes()), "\n")
		switch {
		case line == "NAK":
			return nil
		case strings.HasPrefix(line, "ACK "):
			fields := strings.Fields(strings.TrimPrefix(line, "ACK "))
			if len(fields) == 0 {
				return fmt.Errorf("packp: malformed ACK line %q", line)
			}
			ack := ACK{Hash: plumbing.NewHash(fields[0])}
			if len(fields) > 1 {
				ack.Status = ACKStatus(fields[1])
			}
			s.ACKs = append(s.ACKs, ack)
			if !multiAck || ack.Status == "" {
				return nil
			}
		default:
			return fmt.Errorf("packp: unexpected server response line %q", line)
		}
	}
	return sc.Err()
}

// FoundCommon reports whether any ACK in the response carries the
// "common"/"ready" status multi_ack_detailed uses to signal a shared
// ancestor, or is a plain ACK (non-multi_ack success).
func (s *ServerResponse) FoundCommon() bool {
	for _, a := range s.ACKs {
		if a.Status == ACKCommon || a.Status == ACKReady || a.Status == "" {
			return true
		}
	}
	return false
}
