package io

import (
	"github.com/ezrec/avrsim/avr"
)

// External interrupt sense control.
const (
	SENSE_LOW     = 0
	SENSE_ANY     = 1
	SENSE_FALLING = 2
	SENSE_RISING  = 3
)

// ExtInt is an external interrupt pin, INTn.
type ExtInt struct {
	Name  string
	Pin   avr.RegBit // PIN register bit sampled.
	Sense avr.RegBit // ISCn0; ISCn1 is the next bit up.
	Flag  avr.RegBit // INTFn.

	prev bool
}

var _ Peripheral = (*ExtInt)(nil)

// Reset snapshots the pin level.
func (ei *ExtInt) Reset(bus Bus) {
	ei.prev = bus.IoBit(ei.Pin)
}

// Clocked is true: low level sensing works with the I/O clock stopped.
func (ei *ExtInt) Clocked(mode avr.SleepMode) bool {
	return true
}

// Tick senses the pin.
func (ei *ExtInt) Tick(bus Bus) {
	level := bus.IoBit(ei.Pin)
	prev := ei.prev
	ei.prev = level

	sense := SENSE_LOW
	if ei.Sense.Present() {
		sense = int(bus.IoGet(ei.Sense.Offset)>>ei.Sense.Bit) & 0x03
	}

	if sense == SENSE_LOW {
		bus.IoSetBit(ei.Flag, !level)
		return
	}

	// Edge detection needs the I/O clock.
	if bus.SleepMode().ClockStopped() {
		return
	}

	var edge bool
	switch sense {
	case SENSE_ANY:
		edge = level != prev
	case SENSE_FALLING:
		edge = prev && !level
	case SENSE_RISING:
		edge = !prev && level
	}

	if edge {
		bus.IoSetBit(ei.Flag, true)
	}
}
