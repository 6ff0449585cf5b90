package pktline

import "io"

// Scanner iterates over a stream of pkt-line packets, in the style of
// bufio.Scanner: call Scan until it returns false, then Bytes/IsFlush to
// inspect the current packet.
type Scanner struct {
	r      io.Reader
	buf    []byte
	length int
	err    error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r}
}

// Scan advances to the next packet. It returns false at end of stream or on
// error; call Err to distinguish the two.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	length, payload, err := ReadPacket(s.r)
	if err != nil {
		if err == io.EOF {
			s.err = io.EOF
			return false
		}
		if _, ok := err.(*ErrorLine); ok {
			s.length = length
			s.buf = payload
			s.err = err
			return true
		}
		s.err = err
		return false
	}

	s.length = length
	s.buf = payload
	return true
}

// Bytes returns the payload of the current packet (nil for control
// packets).
func (s *Scanner) Bytes() []byte { return s.buf }

// IsFlush reports whether the current packet is a flush-pkt.
func (s *Scanner) IsFlush() bool { return s.length == Flush }

// IsDelim reports whether the current packet is a delim-pkt.
func (s *Scanner) IsDelim() bool { return s.length == Delim }

// Err returns the first non-EOF error encountered, or the *ErrorLine if the
// remote sent one.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
