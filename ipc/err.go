package ipc

import (
	"errors"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	ErrClosed = errors.New(f("publisher closed"))
)

// ErrConnect is a failure to reach the status socket.
type ErrConnect struct {
	Path string
	Err  error
}

func (ec *ErrConnect) Error() string {
	return f("ipc socket %v: %v", ec.Path, ec.Err)
}

func (ec *ErrConnect) Unwrap() error {
	return ec.Err
}
