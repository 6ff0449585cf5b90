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

var ErrMalformedTag = errors.New("object: malformed tag object")

// pgpSignatureMarker opens the armored signature block a signed tag
// carries after its message.
const pgpSignatureMarker = "-----BEGIN PGP SIGNATURE-----"

// Tag is an annotated tag object. PGPSignature, when present, is the
// armored signature block that follows the message in the serialised
// form.
type Tag struct {
	Hash         plumbing.Hash
	Object       plumbing.Hash
	ObjectType   plumbing.ObjectType
	Name         string
	Tagger       Signature
	Message      string
	PGPSignature string
}

// Encode serialises the tag to its canonical text form.
func (t *Tag) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object.String())
	fmt.Fprintf(&buf, "type %s\n", t.ObjectType.String())
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	buf.WriteString("tagger ")
	t.Tagger.Encode(&buf)
	buf.WriteByte('\n')
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	buf.WriteString(t.PGPSignature)
	return buf.Bytes()
}

// DecodeTag parses a tag object's text payload.
func DecodeTag(payload []byte) (*Tag, error) {
	t := &Tag{}
	r := bufio.NewReader(bytes.NewReader(payload))

	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}

		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			rest, _ := io.ReadAll(r)
			t.Message = string(rest)
			if idx := strings.Index(t.Message, pgpSignatureMarker); idx >= 0 {
				t.PGPSignature = t.Message[idx:]
				t.Message = t.Message[:idx]
			}
			return t, nil
		}

		switch {
		case strings.HasPrefix(trimmed, "object "):
			t.Object = plumbing.NewHash(strings.TrimPrefix(trimmed, "object "))
		case strings.HasPrefix(trimmed, "type "):
			ot, perr := plumbing.ParseObjectType(strings.TrimPrefix(trimmed, "type "))
			if perr != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedTag, perr)
			}
			t.ObjectType = ot
		case strings.HasPrefix(trimmed, "tag "):
			t.Name = strings.TrimPrefix(trimmed, "tag ")
		case strings.HasPrefix(trimmed, "tagger "):
			t.Tagger.Decode([]byte(strings.TrimPrefix(trimmed, "tagger ")))
		}

		if err == io.EOF {
			break
		}
	}

	return t, nil
}
