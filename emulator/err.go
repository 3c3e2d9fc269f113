package emulator

import (
	"errors"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	ErrSleepForever = errors.New(f("sleep with interrupts disabled"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pc  uint32
	Err error
}

func (err *ErrRuntime) Error() string {
	return f("pc 0x%05x %v", err.Pc, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrTestFail is a run that ended in the test-fail state.
type ErrTestFail struct {
	Message string
}

func (err *ErrTestFail) Error() string {
	return f("test failed: %v", err.Message)
}
