package avr

import (
	"errors"
	"fmt"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	ErrDecode      = errors.New(f("invalid opcode"))
	ErrBounds      = errors.New(f("address out of bounds"))
	ErrStack       = errors.New(f("stack pointer outside data memory"))
	ErrCapacity    = errors.New(f("memory buffer too small"))
	ErrFuse        = errors.New(f("fuse not supported"))
	ErrUnsupported = errors.New(f("instruction not supported by device"))
	ErrModel       = errors.New(f("model invalid"))
	ErrTrap        = errors.New(f("interrupt trapped"))
)

// ErrOpcode is a decode failure at a program address.
type ErrOpcode struct {
	Word uint16
	Pc   uint32
}

func (eo ErrOpcode) Error() string {
	return f("invalid opcode 0x%04x at 0x%05x", eo.Word, eo.Pc)
}

func (eo ErrOpcode) Unwrap() error {
	return ErrDecode
}

// ErrMemory is an access outside a memory region.
type ErrMemory struct {
	Region string
	Addr   uint32
}

func (em ErrMemory) Error() string {
	return f("%v address 0x%x out of bounds", em.Region, em.Addr)
}

func (em ErrMemory) Unwrap() error {
	return ErrBounds
}

// ErrCapacityShort reports a short buffer handed to New.
type ErrCapacityShort struct {
	Region string
	Have   int
	Need   uint32
}

func (ec ErrCapacityShort) Error() string {
	return f("%v buffer %d bytes, need %d", ec.Region, ec.Have, ec.Need)
}

func (ec ErrCapacityShort) Unwrap() error {
	return ErrCapacity
}

// errorf wraps a sentinel with formatted context.
func errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %v", sentinel, f(format, args...))
}
