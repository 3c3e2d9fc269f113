package io

import (
	"io"
)

// Tape assembles a bit-serial line into bytes, LSB first, and writes each
// completed character to Output.
type Tape struct {
	Output io.Writer
	Bits   int // Data bits per character, 1 to 8; 0 means 8.

	nextOutput byte
	writeIndex int
}

// Rewind drops a partially assembled character.
func (tc *Tape) Rewind() {
	tc.nextOutput = 0
	tc.writeIndex = 0
}

// Send shifts one data bit in, writing the character once it is complete.
func (tc *Tape) Send(value bool) (err error) {
	if value {
		tc.nextOutput |= 1 << tc.writeIndex
	}

	tc.writeIndex++

	bits := tc.Bits
	if bits <= 0 || bits > 8 {
		bits = 8
	}

	if tc.writeIndex >= bits {
		out := tc.nextOutput
		tc.Rewind()
		if tc.Output != nil {
			_, err = tc.Output.Write([]byte{out})
		}
	}

	return
}
