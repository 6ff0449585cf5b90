// Package packp implements the smart protocol's message-level framing on
// top of pkt-line packets: ref advertisements, upload-pack (fetch) requests
// and their ACK/NAK responses, and receive-pack (push) update requests
// and their report-status responses.
package packp

import "io"

// Encoder is implemented by a message that can write itself to w as a
// sequence of pkt-line packets.
type Encoder interface {
	Encode(w io.Writer) error
}

// Decoder is implemented by a message that can read itself back from a
// sequence of pkt-line packets.
type Decoder interface {
	Decode(r io.Reader) error
}
