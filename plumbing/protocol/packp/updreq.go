package packp

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
)

// Command is one ref update a push asks the remote to perform:
// "old SP new SP ref".
type Command struct {
	Name string
	Old  plumbing.Hash
	New  plumbing.Hash
}

// Action classifies a Command by its old/new pair.
type Action int

const (
	Invalid Action = iota
	Create
	Update
	Delete
)

func (c *Command) Action() Action {
	switch {
	case c.Old.IsZero() && c.New.IsZero():
		return Invalid
	case c.Old.IsZero():
		return Create
	case c.New.IsZero():
		return Delete
	default:
		return Update
	}
}

// ReferenceUpdateRequest is the client's opening message of a push: the
// set of ref updates, negotiated capabilities, optional push-options, and
// the packfile that follows (nil for delete-only pushes)
type ReferenceUpdateRequest struct {
	Capabilities *capability.List
	Commands     []*Command
	Options      map[string]string
	Packfile     io.Reader
}

// NewReferenceUpdateRequest returns an empty, ready-to-use request.
func NewReferenceUpdateRequest() *ReferenceUpdateRequest {
	return &ReferenceUpdateRequest{Capabilities: capability.NewList()}
}

// Encode writes the command list (capabilities attached to the first
// line), any push-options, a flush, then the packfile bytes if present.
func (r *ReferenceUpdateRequest) Encode(w io.Writer) error {
	if len(r.Commands) == 0 {
		return fmt.Errorf("packp: reference-update-request needs at least one command")
	}

	for i, c := range r.Commands {
		line := fmt.Sprintf("%s %s %s", c.Old, c.New, c.Name)
		if i == 0 {
			caps := r.Capabilities.String()
			if caps != "" {
				line += "\x00" + caps
			}
		}
		if _, err := pktline.WritePacketln(w, line); err != nil {
			return err
		}
	}

	if len(r.Options) > 0 && r.Capabilities.Supports(capability.PushOptions) {
		if err := pktline.WriteFlush(w); err != nil {
			return err
		}
		for k, v := range r.Options {
			line := k
			if v != "" {
				line += "=" + v
			}
			if _, err := pktline.WritePacketln(w, line); err != nil {
				return err
			}
		}
	}

	if err := pktline.WriteFlush(w); err != nil {
		return err
	}

	if r.Packfile != nil {
		_, err := io.Copy(w, r.Packfile)
		return err
	}
	return nil
}

// Decode reads the command list (and, if the first line carries a NUL,
// the capability string) followed by an optional push-options block and a
// flush. The remainder of r is left as the packfile stream.
func (r *ReferenceUpdateRequest) Decode(rd io.Reader) error {
	s := pktline.NewScanner(rd)
	first := true

	for s.Scan() {
		if s.IsFlush() {
			break
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")

		if first {
			if idx := strings.IndexByte(line, 0); idx >= 0 {
				if err := r.Capabilities.Decode([]byte(line[idx+1:])); err != nil {
					return err
				}
				line = line[:idx]
			}
			first = false
		}

		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return fmt.Errorf("packp: malformed update-request command %q", line)
		}
		r.Commands = append(r.Commands, &Command{
			Old:  plumbing.NewHash(fields[0]),
			New:  plumbing.NewHash(fields[1]),
			Name: fields[2],
		})
	}
	if err := s.Err(); err != nil {
		return err
	}
	if len(r.Commands) == 0 {
		return ErrEmptyCommand
	}

	if r.Capabilities.Supports(capability.PushOptions) {
		for s.Scan() {
			if s.IsFlush() {
				break
			}
			line := strings.TrimSuffix(string(s.Bytes()), "\n")
			if r.Options == nil {
				r.Options = make(map[string]string)
			}
			if idx := strings.IndexByte(line, '='); idx >= 0 {
				r.Options[line[:idx]] = line[idx+1:]
			} else {
				r.Options[line] = ""
			}
		}
		if err := s.Err(); err != nil {
			return err
		}
	}

	r.Packfile = rd
	return nil
}
