package io

import (
	"github.com/ezrec/avrsim/avr"
)

// PortChange is a snapshot of a GPIO port after one of its registers changed.
type PortChange struct {
	Name  string
	Port  byte
	Ddr   byte
	Pin   byte
	Cycle uint64
}

// Port is a GPIO port.
//
// The PIN register reads back the PORT value of output pins, and the
// external level of input pins. Undriven input pins follow their pull-up,
// the PORT bit.
type Port struct {
	Name string
	PIN  avr.Offset
	DDR  avr.Offset
	PORT avr.Offset

	Input  byte // External levels.
	Driven byte // Pins with an external driver.

	// OnChange, if set, receives every change of the port's registers.
	OnChange func(change PortChange)

	last    PortChange
	started bool
}

var _ Peripheral = (*Port)(nil)

// SetInput drives the pins in 'mask' externally to 'levels'.
func (pt *Port) SetInput(mask, levels byte) {
	pt.Driven |= mask
	pt.Input = (pt.Input &^ mask) | (levels & mask)
}

// Release stops driving the pins in 'mask'.
func (pt *Port) Release(mask byte) {
	pt.Driven &^= mask
}

// Reset installs the PIN toggle hook.
func (pt *Port) Reset(bus Bus) {
	pt.started = false
	bus.SetHook(pt.PIN, avr.IoHook{
		Write: func(stored, value byte) byte {
			bus.IoSet(pt.PORT, bus.IoGet(pt.PORT)^value)
			return pt.pin(bus)
		},
	})
	bus.IoSet(pt.PIN, pt.pin(bus))
}

// Clocked is true: pin sampling is asynchronous.
func (pt *Port) Clocked(mode avr.SleepMode) bool {
	return true
}

func (pt *Port) pin(bus Bus) byte {
	port := bus.IoGet(pt.PORT)
	ddr := bus.IoGet(pt.DDR)
	input := (pt.Input & pt.Driven) | (port &^ pt.Driven)
	return (port & ddr) | (input &^ ddr)
}

// Tick samples the pins and reports a change.
func (pt *Port) Tick(bus Bus) {
	pin := pt.pin(bus)
	bus.IoSet(pt.PIN, pin)

	now := PortChange{
		Name: pt.Name,
		Port: bus.IoGet(pt.PORT),
		Ddr:  bus.IoGet(pt.DDR),
		Pin:  pin,
	}

	if pt.started && now == pt.last {
		return
	}

	report := pt.started
	pt.started = true
	pt.last = now

	if report && pt.OnChange != nil {
		now.Cycle = bus.Cycles()
		pt.OnChange(now)
	}
}
