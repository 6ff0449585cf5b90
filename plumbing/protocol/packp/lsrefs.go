package packp

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
)

// LsRefsRequest is the protocol-v2 "command=ls-refs" request, the v2
// replacement for the v1 ref advertisement.
type LsRefsRequest struct {
	Prefixes []string
	Symrefs  bool
	Peel     bool
	Agent    string
}

// Encode writes the command section, a delim-pkt, the argument lines and
// the closing flush-pkt.
func (r *LsRefsRequest) Encode(w io.Writer) error {
	if _, err := pktline.WritePacketln(w, "command=ls-refs"); err != nil {
		return err
	}
	if r.Agent != "" {
		if _, err := pktline.WritePacketln(w, "agent="+r.Agent); err != nil {
			return err
		}
	}
	if err := pktline.WriteDelim(w); err != nil {
		return err
	}
	if r.Symrefs {
		if _, err := pktline.WritePacketln(w, "symrefs"); err != nil {
			return err
		}
	}
	if r.Peel {
		if _, err := pktline.WritePacketln(w, "peel"); err != nil {
			return err
		}
	}
	for _, p := range r.Prefixes {
		if _, err := pktline.WritePacketln(w, "ref-prefix "+p); err != nil {
			return err
		}
	}
	return pktline.WriteFlush(w)
}

// DecodeLsRefsResponse parses the ls-refs reply into an AdvRefs so callers
// downstream of discovery see one ref-listing shape regardless of
// protocol version. Each line is "<oid> <refname>" optionally followed by
// "symref-target:<ref>" and "peeled:<oid>" attributes.
func DecodeLsRefsResponse(rd io.Reader) (*AdvRefs, error) {
	a := NewAdvRefs()
	s := pktline.NewScanner(rd)
	for s.Scan() {
		if s.IsFlush() {
			break
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")
		fields := strings.Split(line, " ")
		if len(fields) < 2 {
			return nil, fmt.Errorf("packp: malformed ls-refs line %q", line)
		}
		if !plumbing.IsHash(fields[0]) {
			return nil, fmt.Errorf("packp: malformed ls-refs oid %q", fields[0])
		}
		h := plumbing.NewHash(fields[0])
		name := fields[1]

		a.References[name] = h
		if name == "HEAD" {
			head := h
			a.Head = &head
		}
		for _, attr := range fields[2:] {
			switch {
			case strings.HasPrefix(attr, "symref-target:"):
				target := strings.TrimPrefix(attr, "symref-target:")
				if name == "HEAD" {
					_ = a.Capabilities.Add("symref", "HEAD:"+target)
				}
			case strings.HasPrefix(attr, "peeled:"):
				p := strings.TrimPrefix(attr, "peeled:")
				if plumbing.IsHash(p) {
					a.Peeled[name] = plumbing.NewHash(p)
				}
			}
		}
	}
	return a, s.Err()
}

// FetchResponseV2 is the structured (non-packfile) part of a v2
// "command=fetch" reply: the acknowledgments section and, when deepening,
// the shallow-info section. The packfile section follows on the wire and
// is consumed separately via the side-band demuxer.
type FetchResponseV2 struct {
	Acks       []plumbing.Hash
	Ready      bool
	Shallows   []plumbing.Hash
	Unshallows []plumbing.Hash
}

// DecodeFetchResponseV2 consumes section headers and their lines up to
// (and including) the "packfile" section header, leaving rd positioned at
// the first side-band packet of pack data. When the server answers with
// acknowledgments only (no common base found and no "done" sent), the
// reply ends at a flush with no packfile section; the boolean result
// reports which case occurred.
func DecodeFetchResponseV2(rd io.Reader) (*FetchResponseV2, bool, error) {
	r := &FetchResponseV2{}
	s := pktline.NewScanner(rd)

	section := ""
	for s.Scan() {
		if s.IsFlush() {
			return r, false, nil
		}
		if s.IsDelim() {
			continue
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")
		switch line {
		case "acknowledgments", "shallow-info":
			section = line
			continue
		case "packfile":
			return r, true, nil
		}

		switch section {
		case "acknowledgments":
			switch {
			case line == "NAK":
			case line == "ready":
				r.Ready = true
			case strings.HasPrefix(line, "ACK "):
				r.Acks = append(r.Acks, plumbing.NewHash(strings.TrimPrefix(line, "ACK ")))
			default:
				return nil, false, fmt.Errorf("packp: unexpected acknowledgment line %q", line)
			}
		case "shallow-info":
			switch {
			case strings.HasPrefix(line, "shallow "):
				r.Shallows = append(r.Shallows, plumbing.NewHash(strings.TrimPrefix(line, "shallow ")))
			case strings.HasPrefix(line, "unshallow "):
				r.Unshallows = append(r.Unshallows, plumbing.NewHash(strings.TrimPrefix(line, "unshallow ")))
			default:
				return nil, false, fmt.Errorf("packp: unexpected shallow-info line %q", line)
			}
		default:
			return nil, false, fmt.Errorf("packp: line %q outside any section", line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, false, err
	}
	return nil, false, io.ErrUnexpectedEOF
}

// FetchRequestV2 is the protocol-v2 "command=fetch" request.
type FetchRequestV2 struct {
	Wants      []plumbing.Hash
	Haves      []plumbing.Hash
	Done       bool
	OFSDelta   bool
	NoProgress bool
	IncludeTag bool
	Depth      int
	Agent      string
}

// Encode writes the command section, a delim-pkt, the argument lines and
// the closing flush-pkt.
func (r *FetchRequestV2) Encode(w io.Writer) error {
	if len(r.Wants) == 0 {
		return fmt.Errorf("packp: fetch command needs at least one want")
	}
	var buf bytes.Buffer
	if _, err := pktline.WritePacketln(&buf, "command=fetch"); err != nil {
		return err
	}
	if r.Agent != "" {
		if _, err := pktline.WritePacketln(&buf, "agent="+r.Agent); err != nil {
			return err
		}
	}
	if err := pktline.WriteDelim(&buf); err != nil {
		return err
	}
	for _, h := range r.Wants {
		if _, err := pktline.WritePacketln(&buf, "want "+h.String()); err != nil {
			return err
		}
	}
	for _, h := range r.Haves {
		if _, err := pktline.WritePacketln(&buf, "have "+h.String()); err != nil {
			return err
		}
	}
	if r.OFSDelta {
		if _, err := pktline.WritePacketln(&buf, "ofs-delta"); err != nil {
			return err
		}
	}
	if r.NoProgress {
		if _, err := pktline.WritePacketln(&buf, "no-progress"); err != nil {
			return err
		}
	}
	if r.IncludeTag {
		if _, err := pktline.WritePacketln(&buf, "include-tag"); err != nil {
			return err
		}
	}
	if r.Depth > 0 {
		if _, err := pktline.WritePacketf(&buf, "deepen %d\n", r.Depth); err != nil {
			return err
		}
	}
	if r.Done {
		if _, err := pktline.WritePacketln(&buf, "done"); err != nil {
			return err
		}
	}
	if err := pktline.WriteFlush(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
