package io

import (
	"github.com/sirupsen/logrus"

	"github.com/ezrec/avrsim/avr"
)

// Bus is the view of the microcontroller a peripheral works against.
type Bus interface {
	IoGet(off avr.Offset) byte
	IoSet(off avr.Offset, value byte)
	IoBit(rb avr.RegBit) bool
	IoSetBit(rb avr.RegBit, set bool)
	SetHook(off avr.Offset, hook avr.IoHook)
	RaiseIRQ(v int)
	Cycles() uint64
	Freq() avr.Freq
	SleepMode() avr.SleepMode
	ResetSystem(cause byte)
	Logger() logrus.FieldLogger
}

var _ Bus = (*avr.Mcu)(nil)

// Peripheral is an on-chip device advanced once per clock cycle.
type Peripheral interface {
	// Reset returns the peripheral to its reset state and installs its
	// register hooks.
	Reset(bus Bus)
	// Tick advances the peripheral by one clock cycle.
	Tick(bus Bus)
	// Clocked is true if the peripheral runs in the given sleep mode.
	Clocked(mode avr.SleepMode) bool
}

// Pin is an I/O pin: its PORT, DDR and PIN register bits.
type Pin struct {
	Port avr.RegBit
	Ddr  avr.RegBit
	Pin  avr.RegBit
}

// NO_PIN is a Pin that does not exist.
var NO_PIN = Pin{Port: avr.NO_BIT, Ddr: avr.NO_BIT, Pin: avr.NO_BIT}

// Output is true if the pin is configured as an output.
func (p Pin) Output(bus Bus) bool {
	return p.Ddr.Present() && bus.IoBit(p.Ddr)
}

// Drive sets the PORT bit of an output pin. Input pins are left alone.
func (p Pin) Drive(bus Bus, level bool) {
	if !p.Output(bus) {
		return
	}
	bus.IoSetBit(p.Port, level)
}

// Toggle inverts the PORT bit of an output pin.
func (p Pin) Toggle(bus Bus) {
	if !p.Output(bus) {
		return
	}
	bus.IoSetBit(p.Port, !bus.IoBit(p.Port))
}

// Level returns the sampled level of the pin.
func (p Pin) Level(bus Bus) bool {
	return bus.IoBit(p.Pin)
}

// warnOnce logs a degraded configuration warning once per key.
type warnOnce map[int]bool

func (wo *warnOnce) warn(log logrus.FieldLogger, key int, format string, args ...any) {
	if *wo == nil {
		*wo = warnOnce{}
	}
	if (*wo)[key] {
		return
	}
	(*wo)[key] = true
	log.Warn(f(format, args...))
}
