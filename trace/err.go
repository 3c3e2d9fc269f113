package trace

import (
	"errors"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	ErrRegister = errors.New(f("no such register"))
	ErrBit      = errors.New(f("bit number not 0 to 7"))
)

// ErrProbe is an unusable probe name.
type ErrProbe struct {
	Name string
	Err  error
}

func (ep *ErrProbe) Error() string {
	return f("probe %q: %v", ep.Name, ep.Err)
}

func (ep *ErrProbe) Unwrap() error {
	return ep.Err
}
