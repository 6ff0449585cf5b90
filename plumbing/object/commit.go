package object

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/git-engine/plumbing"
)

var ErrMalformedCommit = errors.New("object: malformed commit object")

// Commit is a point-in-time snapshot of a tree plus ancestry and identity.
type Commit struct {
	Hash      plumbing.Hash
	TreeHash  plumbing.Hash
	Parents   []plumbing.Hash
	Author    Signature
	Committer Signature
	PGPSignature string
	Message   string
}

// Encode serialises the commit to its canonical text form: headers,
// optional gpgsig block, a blank line, then the message.
func (c *Commit) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash.String())
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p.String())
	}

	buf.WriteString("author ")
	c.Author.Encode(&buf)
	buf.WriteByte('\n')

	buf.WriteString("committer ")
	c.Committer.Encode(&buf)
	buf.WriteByte('\n')

	if c.PGPSignature != "" {
		buf.WriteString("gpgsig ")
		lines := strings.Split(strings.TrimSuffix(c.PGPSignature, "\n"), "\n")
		buf.WriteString(lines[0])
		buf.WriteByte('\n')
		for _, l := range lines[1:] {
			buf.WriteByte(' ')
			buf.WriteString(l)
			buf.WriteByte('\n')
		}
	}

	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// DecodeCommit parses a commit object's text payload, preserving the order
// of parent headers and extracting an optional gpgsig block whose
// continuation lines begin with a single space.
func DecodeCommit(payload []byte) (*Commit, error) {
	c := &Commit{}
	r := bufio.NewReader(bytes.NewReader(payload))

	var inSig bool
	var sig bytes.Buffer

	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}

		if inSig {
			if strings.HasPrefix(line, " ") {
				sig.WriteString(strings.TrimPrefix(line, " "))
				if err == io.EOF {
					break
				}
				continue
			}
			inSig = false
			c.PGPSignature = sig.String()
		}

		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			// Blank line: remainder of payload (after this read) is message.
			rest, _ := io.ReadAll(r)
			c.Message = string(rest)
			return c, nil
		}

		switch {
		case strings.HasPrefix(trimmed, "tree "):
			c.TreeHash = plumbing.NewHash(strings.TrimPrefix(trimmed, "tree "))
		case strings.HasPrefix(trimmed, "parent "):
			c.Parents = append(c.Parents, plumbing.NewHash(strings.TrimPrefix(trimmed, "parent ")))
		case strings.HasPrefix(trimmed, "author "):
			c.Author.Decode([]byte(strings.TrimPrefix(trimmed, "author ")))
		case strings.HasPrefix(trimmed, "committer "):
			c.Committer.Decode([]byte(strings.TrimPrefix(trimmed, "committer ")))
		case strings.HasPrefix(trimmed, "gpgsig "):
			inSig = true
			sig.Reset()
			sig.WriteString(strings.TrimPrefix(trimmed, "gpgsig "))
			sig.WriteByte('\n')
		}

		if err == io.EOF {
			break
		}
	}

	return c, nil
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int { return len(c.Parents) }

var ErrParentNotFound = errors.New("object: parent not found")
