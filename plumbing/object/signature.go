package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is the author/committer/tagger identity line: name, email,
// timestamp and signed minute offset.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Decode parses a signature line of the form "Name <email> unixts +hhmm".
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open < 0 || close < 0 || close < open {
		s.Name = string(bytes.TrimSpace(b))
		return
	}

	s.Name = string(bytes.TrimSpace(b[:open]))
	s.Email = string(b[open+1 : close])

	hasTime := close+2 < len(b)
	if !hasTime {
		return
	}

	fields := strings.Fields(string(b[close+2:]))
	if len(fields) != 2 {
		return
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return
	}

	offset, err := parseTZOffset(fields[1])
	if err != nil {
		return
	}

	s.When = time.Unix(ts, 0).In(time.FixedZone("", offset))
}

// Encode writes the signature line in canonical form.
func (s *Signature) Encode(w *bytes.Buffer) {
	fmt.Fprintf(w, "%s <%s> ", s.Name, s.Email)
	if s.When.IsZero() {
		w.WriteString("0 +0000")
		return
	}
	_, offset := s.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	fmt.Fprintf(w, "%d %s%02d%02d", s.When.Unix(), sign, offset/3600, (offset%3600)/60)
}

func parseTZOffset(s string) (int, error) {
	if len(s) != 5 {
		return 0, fmt.Errorf("invalid tz offset %q", s)
	}
	sign := 1
	switch s[0] {
	case '-':
		sign = -1
	case '+':
	default:
		return 0, fmt.Errorf("invalid tz offset %q", s)
	}
	h, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, err
	}
	return sign * (h*3600 + m*60), nil
}
