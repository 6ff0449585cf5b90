package packp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
)

var (
	ErrEmptyAdvRefs = errors.New("packp: empty advertised-ref message")
	ErrEmptyInput   = errors.New("packp: empty input")
)

// AdvRefs is the first message a smart-HTTP upload-pack or receive-pack
// session sends: the set of refs the server has, its resolved HEAD, and
// the capabilities it supports.
type AdvRefs struct {
	Head         *plumbing.Hash
	Capabilities *capability.List
	References   map[string]plumbing.Hash
	Peeled       map[string]plumbing.Hash
	Shallows     []plumbing.Hash
}

// NewAdvRefs returns an empty, ready-to-use AdvRefs.
func NewAdvRefs() *AdvRefs {
	return &AdvRefs{
		Capabilities: capability.NewList(),
		References:   make(map[string]plumbing.Hash),
		Peeled:       make(map[string]plumbing.Hash),
	}
}

// IsEmpty reports whether the advertisement carries no refs at all (a
// brand new, unborn repository).
func (a *AdvRefs) IsEmpty() bool {
	return a.Head == nil && len(a.References) == 0 && len(a.Peeled) == 0 && len(a.Shallows) == 0
}

// AddReference records r, as either a resolved hash ref or (if supported)
// a symref capability.
func (a *AdvRefs) AddReference(r *plumbing.Reference) error {
	switch r.Type() {
	case plumbing.SymbolicReference:
		return a.Capabilities.Add(capability.SymRef, r.Name().String()+":"+r.Target().String())
	case plumbing.HashReference:
		a.References[r.Name().String()] = r.Hash()
		return nil
	default:
		return plumbing.ErrInvalidType
	}
}

// ResolvedReferences returns every advertised ref as a *plumbing.Reference,
// including a synthesised HEAD (symbolic if the symref capability or a
// matching hash pins it down, a direct hash reference otherwise), sorted
// by name.
func (a *AdvRefs) ResolvedReferences() []*plumbing.Reference {
	var out []*plumbing.Reference
	for name, h := range a.References {
		out = append(out, plumbing.NewHashReference(plumbing.ReferenceName(name), h))
	}

	for _, symref := range a.Capabilities.Get(capability.SymRef) {
		chunks := strings.SplitN(symref, ":", 2)
		if len(chunks) != 2 {
			continue
		}
		out = append(out, plumbing.NewSymbolicReference(plumbing.ReferenceName(chunks[0]), plumbing.ReferenceName(chunks[1])))
	}

	if a.Head != nil && !a.Capabilities.Supports(capability.SymRef) {
		if name, ok := a.guessHeadBranch(); ok {
			out = append(out, plumbing.NewSymbolicReference(plumbing.HEAD, name))
		} else {
			out = append(out, plumbing.NewHashReference(plumbing.HEAD, *a.Head))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// guessHeadBranch replicates git's pre-1.8.4.3 fallback for servers that
// don't advertise symref: prefer "master" if its hash matches HEAD,
// otherwise the first ref (by name) whose hash matches.
func (a *AdvRefs) guessHeadBranch() (plumbing.ReferenceName, bool) {
	master := plumbing.NewBranchReferenceName("master")
	if h, ok := a.References[master.String()]; ok && h == *a.Head {
		return master, true
	}

	names := make([]string, 0, len(a.References))
	for name := range a.References {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if a.References[name] == *a.Head {
			return plumbing.ReferenceName(name), true
		}
	}
	return "", false
}

// Encode writes the advertisement as a v1 pkt-line stream: the first ref
// (or a zero-id placeholder) with capabilities attached, one line per
// remaining ref, then shallow lines, then a flush.
func (a *AdvRefs) Encode(w io.Writer) error {
	first := true

	writeFirst := func(hash plumbing.Hash, name string) error {
		line := fmt.Sprintf("%s %s\x00%s", hash, name, a.Capabilities.String())
		_, err := pktline.WritePacketln(w, line)
		first = false
		return err
	}

	switch {
	case a.Head != nil:
		if err := writeFirst(*a.Head, string(head)); err != nil {
			return err
		}
	case len(a.References) == 0 && len(a.Peeled) == 0:
		if err := writeFirst(plumbing.ZeroHash, "capabilities^{}"); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(a.References))
	for name := range a.References {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h := a.References[name]
		line := fmt.Sprintf("%s %s", h, name)
		if first {
			line += "\x00" + a.Capabilities.String()
			first = false
		}
		if _, err := pktline.WritePacketln(w, line); err != nil {
			return err
		}
	}

	peeledNames := make([]string, 0, len(a.Peeled))
	for name := range a.Peeled {
		peeledNames = append(peeledNames, name)
	}
	sort.Strings(peeledNames)
	for _, name := range peeledNames {
		if _, err := pktline.WritePacketln(w, fmt.Sprintf("%s %s^{}", a.Peeled[name], name)); err != nil {
			return err
		}
	}

	for _, h := range a.Shallows {
		if _, err := pktline.WritePacketln(w, "shallow "+h.String()); err != nil {
			return err
		}
	}

	return pktline.WriteFlush(w)
}

// Decode reads one advertised-refs message from r.
func (a *AdvRefs) Decode(r io.Reader) error {
	s := pktline.NewScanner(r)

	if !s.Scan() {
		if s.Err() != nil {
			return s.Err()
		}
		return ErrEmptyInput
	}
	line := trimEOL(s.Bytes())
	if s.IsFlush() {
		return ErrEmptyAdvRefs
	}

	if len(line) < hashSize {
		return fmt.Errorf("packp: pkt-line too short for a hash")
	}
	h := plumbing.NewHash(string(line[:hashSize]))
	line = line[hashSize:]

	if h.IsZero() {
		if !bytes.HasPrefix(line, noHeadMark) {
			return fmt.Errorf("packp: malformed zero-id ref")
		}
		line = line[len(noHeadMark):]
	} else {
		if !bytes.HasPrefix(line, sp) {
			return fmt.Errorf("packp: no space after hash")
		}
		line = line[1:]

		chunks := bytes.SplitN(line, null, 2)
		if len(chunks) < 2 {
			return fmt.Errorf("packp: NUL not found after first ref name")
		}
		ref := chunks[0]
		line = chunks[1]

		if bytes.Equal(ref, head) {
			hh := h
			a.Head = &hh
		} else {
			a.References[string(ref)] = h
		}
	}

	if err := a.Capabilities.Decode(line); err != nil {
		return fmt.Errorf("packp: invalid capabilities: %w", err)
	}

	for s.Scan() {
		if s.IsFlush() {
			return nil
		}
		line := trimEOL(s.Bytes())
		if bytes.HasPrefix(line, shallow) {
			return a.decodeShallows(s, line)
		}
		if len(line) == 0 {
			return nil
		}

		saveTo := a.References
		if bytes.HasSuffix(line, peeled) {
			line = bytes.TrimSuffix(line, peeled)
			saveTo = a.Peeled
		}

		name, hash, err := readRef(line)
		if err != nil {
			return err
		}
		saveTo[name] = hash
	}
	return s.Err()
}

func (a *AdvRefs) decodeShallows(s *pktline.Scanner, line []byte) error {
	for {
		if !bytes.HasPrefix(line, shallow) {
			return fmt.Errorf("packp: malformed shallow line")
		}
		rest := bytes.TrimPrefix(line, shallow)
		if len(rest) != hashSize {
			return fmt.Errorf("packp: malformed shallow hash")
		}
		a.Shallows = append(a.Shallows, plumbing.NewHash(string(rest)))

		if !s.Scan() {
			return s.Err()
		}
		if s.IsFlush() {
			return nil
		}
		line = trimEOL(s.Bytes())
		if len(line) == 0 {
			return nil
		}
	}
}

func readRef(data []byte) (string, plumbing.Hash, error) {
	chunks := bytes.Split(data, sp)
	switch {
	case len(chunks) == 1:
		return "", plumbing.ZeroHash, fmt.Errorf("packp: malformed ref data: no space found")
	case len(chunks) > 2:
		return "", plumbing.ZeroHash, fmt.Errorf("packp: malformed ref data: more than one space found")
	default:
		return string(chunks[1]), plumbing.NewHash(string(chunks[0])), nil
	}
}
