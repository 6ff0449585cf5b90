package packfile

import (
	"errors"
)

var (
	ErrInvalidDelta      = errors.New("packfile: invalid delta")
	ErrDeltaSizeMismatch = errors.New("packfile: delta result size mismatch")
)

// PatchDelta applies a git delta (the copy/insert opcode stream) to base,
// returning the reconstructed object bytes. Never mutates
// base.
func PatchDelta(base, delta []byte) ([]byte, error) {
	if len(delta) < 2 {
		return nil, ErrInvalidDelta
	}

	baseSize, delta, err := readDeltaVarint(delta)
	if err != nil {
		return nil, err
	}
	if int(baseSize) != len(base) {
		return nil, ErrDeltaSizeMismatch
	}

	resultSize, delta, err := readDeltaVarint(delta)
	if err != nil {
		return nil, err
	}

	dest := make([]byte, 0, resultSize)

	for len(delta) > 0 {
		cmd := delta[0]
		delta = delta[1:]

		if cmd&0x80 != 0 {
			// Copy instruction: up to 4 offset bytes then up to 3 size
			// bytes, each present only if its corresponding bit is set.
			var offset, size uint32
			if cmd&0x01 != 0 {
				offset = uint32(delta[0])
				delta = delta[1:]
			}
			if cmd&0x02 != 0 {
				offset |= uint32(delta[0]) << 8
				delta = delta[1:]
			}
			if cmd&0x04 != 0 {
				offset |= uint32(delta[0]) << 16
				delta = delta[1:]
			}
			if cmd&0x08 != 0 {
				offset |= uint32(delta[0]) << 24
				delta = delta[1:]
			}
			if cmd&0x10 != 0 {
				size = uint32(delta[0])
				delta = delta[1:]
			}
			if cmd&0x20 != 0 {
				size |= uint32(delta[0]) << 8
				delta = delta[1:]
			}
			if cmd&0x40 != 0 {
				size |= uint32(delta[0]) << 16
				delta = delta[1:]
			}
			if size == 0 {
				size = 0x10000
			}

			if int(offset)+int(size) > len(base) {
				return nil, ErrInvalidDelta
			}
			dest = append(dest, base[offset:offset+size]...)
		} else if cmd != 0 {
			// Insert instruction: cmd is the literal byte count.
			n := int(cmd)
			if n > len(delta) {
				return nil, ErrInvalidDelta
			}
			dest = append(dest, delta[:n]...)
			delta = delta[n:]
		} else {
			return nil, ErrInvalidDelta
		}
	}

	if uint32(len(dest)) != resultSize {
		return nil, ErrDeltaSizeMismatch
	}

	return dest, nil
}

// readDeltaVarint reads the little-endian, 7-bits-per-byte varint used for
// the base/result sizes at the head of a delta stream.
func readDeltaVarint(b []byte) (uint32, []byte, error) {
	var size uint32
	var shift uint
	for i, c := range b {
		size |= uint32(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			return size, b[i+1:], nil
		}
	}
	return 0, nil, ErrInvalidDelta
}
