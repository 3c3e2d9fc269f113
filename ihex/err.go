package ihex

import (
	"errors"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	ErrFormat     = errors.New(f("malformed record"))
	ErrChecksum   = errors.New(f("record checksum mismatch"))
	ErrRecordType = errors.New(f("unknown record type"))
	ErrRange      = errors.New(f("data beyond program memory"))
	ErrNoEOF      = errors.New(f("missing end of file record"))
)

// ErrLine locates an error in a HEX file.
type ErrLine struct {
	Line int
	Err  error
}

func (el *ErrLine) Error() string {
	return f("line %d: %v", el.Line, el.Err)
}

func (el *ErrLine) Unwrap() error {
	return el.Err
}
