package packp

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
)

var ErrEmptyCommand = errors.New("packp: empty ls-refs/fetch command")

// Depth selects how a fetch negotiation bounds the history it
// asks for: an exact commit count, a cutoff time, or "everything the
// remote ref doesn't have".
type Depth interface {
	fmt.Stringer
	IsZero() bool
}

// DepthCommits requests at most the given number of commits. Zero means
// unbounded.
type DepthCommits int

func (d DepthCommits) IsZero() bool    { return d == 0 }
func (d DepthCommits) String() string  { return strconv.Itoa(int(d)) }

// DepthSince requests only commits newer than the given time.
type DepthSince time.Time

func (d DepthSince) IsZero() bool   { return time.Time(d).IsZero() }
func (d DepthSince) String() string { return time.Time(d).Format(time.RFC3339) }

// DepthReference requests only commits not reachable from the named ref.
type DepthReference string

func (d DepthReference) IsZero() bool   { return string(d) == "" }
func (d DepthReference) String() string { return string(d) }

// UploadRequest is the client's opening message of a v1 fetch: the wanted
// OIDs, any shallow boundary the client already has, a depth bound and
// negotiated capabilities.
type UploadRequest struct {
	Capabilities *capability.List
	Wants        []plumbing.Hash
	Shallows     []plumbing.Hash
	Depth        Depth
}

// NewUploadRequest returns an empty, ready-to-use UploadRequest with an
// unbounded depth.
func NewUploadRequest() *UploadRequest {
	return &UploadRequest{
		Capabilities: capability.NewList(),
		Depth:        DepthCommits(0),
	}
}

// Encode writes the request as pkt-lines: the first "want" carries the
// negotiated capability string, subsequent wants/shallows/depth lines
// follow bare, terminated by a flush.
func (r *UploadRequest) Encode(w io.Writer) error {
	if len(r.Wants) == 0 {
		return fmt.Errorf("packp: upload-request needs at least one want")
	}

	first := fmt.Sprintf("want %s", r.Wants[0])
	if !r.Capabilities.IsEmpty() {
		first += " " + r.Capabilities.String()
	}
	if _, err := pktline.WritePacketln(w, first); err != nil {
		return err
	}

	for _, h := range r.Wants[1:] {
		if _, err := pktline.WritePacketln(w, "want "+h.String()); err != nil {
			return err
		}
	}
	for _, h := range r.Shallows {
		if _, err := pktline.WritePacketln(w, "shallow "+h.String()); err != nil {
			return err
		}
	}

	if r.Depth != nil && !r.Depth.IsZero() {
		var line string
		switch d := r.Depth.(type) {
		case DepthCommits:
			line = "deepen " + d.String()
		case DepthSince:
			line = "deepen-since " + d.String()
		case DepthReference:
			line = "deepen-not " + d.String()
		}
		if line != "" {
			if _, err := pktline.WritePacketln(w, line); err != nil {
				return err
			}
		}
	}

	return pktline.WriteFlush(w)
}

// Decode reads an UploadRequest back from its pkt-line encoding.
func (r *UploadRequest) Decode(rd io.Reader) error {
	s := pktline.NewScanner(rd)
	first := true

	for s.Scan() {
		if s.IsFlush() {
			return nil
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")

		switch {
		case strings.HasPrefix(line, "want "):
			rest := strings.TrimPrefix(line, "want ")
			if first {
				parts := strings.SplitN(rest, " ", 2)
				rest = parts[0]
				if len(parts) == 2 {
					if err := r.Capabilities.Decode([]byte(parts[1])); err != nil {
						return err
					}
				}
				first = false
			}
			r.Wants = append(r.Wants, plumbing.NewHash(rest))
		case strings.HasPrefix(line, "shallow "):
			r.Shallows = append(r.Shallows, plumbing.NewHash(strings.TrimPrefix(line, "shallow ")))
		case strings.HasPrefix(line, "deepen "):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "deepen "))
			if err != nil {
				return err
			}
			r.Depth = DepthCommits(n)
		case strings.HasPrefix(line, "deepen-since "):
			t, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "deepen-since "))
			if err != nil {
				return err
			}
			r.Depth = DepthSince(t)
		case strings.HasPrefix(line, "deepen-not "):
			r.Depth = DepthReference(strings.TrimPrefix(line, "deepen-not "))
		default:
			return fmt.Errorf("packp: unexpected upload-request line %q", line)
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if len(r.Wants) == 0 {
		return ErrEmptyCommand
	}
	return nil
}

// UploadHaves is the client's "have" batch sent during negotiation,
// terminated either by a flush (more rounds to come) or "done" (final
// round)
type UploadHaves struct {
	Haves []plumbing.Hash
	Done  bool
}

// Encode writes one negotiation round: a "have" line per entry, then
// "done" if Done, else a flush-pkt when flush is true so the server can
// ACK/NAK so far.
func (u *UploadHaves) Encode(w io.Writer, flush bool) error {
	for _, h := range u.Haves {
		if _, err := pktline.WritePacketln(w, "have "+h.String()); err != nil {
			return err
		}
	}
	if u.Done {
		_, err := pktline.WritePacketln(w, "done")
		return err
	}
	if flush {
		return pktline.WriteFlush(w)
	}
	return nil
}

// Decode reads one negotiation round of have-lines from r, stopping at a
// flush or a "done" line.
func (u *UploadHaves) Decode(r io.Reader) error {
	s := pktline.NewScanner(r)
	for s.Scan() {
		if s.IsFlush() {
			return nil
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")
		if line == "done" {
			u.Done = true
			return nil
		}
		if !strings.HasPrefix(line, "have ") {
			return fmt.Errorf("packp: unexpected have-line %q", line)
		}
		u.Haves = append(u.Haves, plumbing.NewHash(strings.TrimPrefix(line, "have ")))
	}
	return s.Err()
}
