package pktline

import (
	"io"
)

// Side-band channel tags.
const (
	SidebandData     byte = 0x01
	SidebandProgress byte = 0x02
	SidebandError    byte = 0x03
)

// ErrFatal wraps the text carried by an 0x03 side-band frame.
type ErrFatal struct {
	Text string
}

func (e *ErrFatal) Error() string { return e.Text }

// Demux splits a side-band-multiplexed pkt-line stream (as used by the
// upload-pack/receive-pack response) into its packfile
// bytes and progress bytes. It returns io.Readers that a caller pulls
// incrementally; reading from pack or progress drives the underlying
// scanner. Progress lines are collected internally as they're seen while
// draining pack, and are only authoritative once pack hits EOF, mirroring
// a lazy-sequence demultiplexer.
type Demux struct {
	sc       *Scanner
	progress []byte
	fatal    error
}

// NewDemux constructs a Demux over a pkt-line stream.
func NewDemux(r io.Reader) *Demux {
	return &Demux{sc: NewScanner(r)}
}

// Pack returns an io.Reader yielding only the 0x01-tagged (packfile) bytes.
// Progress (0x02) bytes are buffered and made available via Progress once
// the pack reader reaches EOF; a 0x03 frame ends the pack reader and makes
// Err return the fatal error. Packets whose first byte is not one of the
// three channel tags (plain pkt-lines) are skipped; their payloads are not
// exposed.
func (d *Demux) Pack() io.Reader {
	return &packReader{d: d}
}

// Progress returns the progress-channel bytes seen so far. Safe to call
// after Pack has been fully drained.
func (d *Demux) Progress() []byte { return d.progress }

// Err returns the error carried by a 0x03 frame, if one was seen.
func (d *Demux) Err() error { return d.fatal }

type packReader struct {
	d   *Demux
	rem []byte
}

func (p *packReader) Read(buf []byte) (int, error) {
	for len(p.rem) == 0 {
		if p.d.fatal != nil {
			return 0, io.EOF
		}
		if !p.d.sc.Scan() {
			if err := p.d.sc.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		if p.d.sc.IsFlush() {
			return 0, io.EOF
		}
		payload := p.d.sc.Bytes()
		if len(payload) == 0 {
			continue
		}
		switch payload[0] {
		case SidebandData:
			p.rem = payload[1:]
		case SidebandProgress:
			p.d.progress = append(p.d.progress, payload[1:]...)
		case SidebandError:
			p.d.fatal = &ErrFatal{Text: string(payload[1:])}
			return 0, io.EOF
		default:
			continue
		}
	}

	n := copy(buf, p.rem)
	p.rem = p.rem[n:]
	return n, nil
}
