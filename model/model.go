// Package model holds the static tables of the supported AVR devices, and
// the per-device peripheral set that implements avr.Model.
package model

import (
	"maps"
	"slices"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/io"
)

// FuseBit names one bit of a fuse byte.
type FuseBit struct {
	Index int // Fuse byte, -1 if the device lacks the fuse.
	Bit   uint8
}

// NO_FUSE is a FuseBit the device does not have.
var NO_FUSE = FuseBit{Index: -1}

// Present is true if the device has the fuse.
func (fb FuseBit) Present() bool {
	return fb.Index >= 0
}

// Programmed is true if the fuse bit is programmed, that is, zero.
func (fb FuseBit) Programmed(fuses []byte) bool {
	if !fb.Present() || fb.Index >= len(fuses) {
		return false
	}
	return fuses[fb.Index]&(1<<fb.Bit) == 0
}

// ClockFunc decodes the clock selection fuse bits.
type ClockFunc func(cksel byte, crystal avr.Freq) (source avr.ClockSource, freq avr.Freq)

// Fuses describes how a device's fuses map onto its state.
type Fuses struct {
	Clock     FuseBit // CKSEL field, low bit.
	ClockBits uint8   // CKSEL field width.
	Decode    ClockFunc
	Ckdiv8    FuseBit
	Bootsz    FuseBit    // BOOTSZ field, low bit.
	BootSizes [4]uint32  // Boot section size in bytes, by BOOTSZ value.
	Bootrst   FuseBit    // Reset into the boot section.
	Wdton     FuseBit    // Watchdog always on.
	Ivsel     avr.RegBit // Interrupt vectors in the boot section.
}

// PortTable names the registers of a GPIO port.
type PortTable struct {
	Name string
	PIN  avr.Offset
	DDR  avr.Offset
	PORT avr.Offset
}

// TimerTable describes a timer/counter.
type TimerTable struct {
	io.TimerConfig
	Wide bool
}

// Table is the static description of a device.
type Table struct {
	Config   avr.Config
	Fuses    Fuses
	Ports    []PortTable
	Timers   []TimerTable
	Usarts   []io.UsartConfig
	ExtInts  []io.ExtInt
	Watchdog avr.Offset
}

var _tables = map[string]func() *Table{}

func register(name string, table func() *Table) {
	_tables[name] = table
}

// Names returns the supported device names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(_tables))
}

// Lookup returns the static table of a device.
func Lookup(name string) (table *Table, err error) {
	build, ok := _tables[name]
	if !ok {
		err = ErrUnknownModel{Name: name}
		return
	}
	table = build()
	return
}

// regs is a read/write register.
func regs(offset avr.Offset, names ...string) (list []avr.IoReg) {
	for n, name := range names {
		list = append(list, avr.IoReg{
			Name:      name,
			Offset:    offset + avr.Offset(n),
			ReadMask:  0xff,
			WriteMask: 0xff,
		})
	}
	return
}

// reg is a register with explicit masks.
func reg(name string, offset avr.Offset, reset, read, write, clear byte) avr.IoReg {
	return avr.IoReg{
		Name:      name,
		Offset:    offset,
		Reset:     reset,
		ReadMask:  read,
		WriteMask: write,
		ClearMask: clear,
	}
}

// port returns the PIN, DDR and PORT registers of a port. PIN writes are
// strobes: every written one toggles the PORT bit.
func port(name string, pin avr.Offset) (list []avr.IoReg) {
	return []avr.IoReg{
		reg("PIN"+name, pin, 0x00, 0xff, 0x00, 0xff),
		reg("DDR"+name, pin+1, 0x00, 0xff, 0xff, 0x00),
		reg("PORT"+name, pin+2, 0x00, 0xff, 0xff, 0x00),
	}
}

// bit is shorthand for a register bit.
func bit(offset avr.Offset, n uint8) avr.RegBit {
	return avr.RegBit{Offset: offset, Bit: n}
}

// pin is shorthand for a GPIO pin.
func pin(pinx avr.Offset, n uint8) io.Pin {
	return io.Pin{
		Pin:  bit(pinx, n),
		Ddr:  bit(pinx+1, n),
		Port: bit(pinx+2, n),
	}
}

// vector is shorthand for an interrupt vector.
func vector(name string, enable avr.RegBit, flag avr.RegBit) avr.Vector {
	return avr.Vector{Name: name, Enable: enable, Flag: flag}
}

// level is an interrupt vector whose flag is cleared by firmware.
func level(name string, enable avr.RegBit, flag avr.RegBit) avr.Vector {
	return avr.Vector{Name: name, Enable: enable, Flag: flag, KeepFlag: true}
}

// soft is an interrupt vector raised only by RaiseIRQ.
func soft(name string) avr.Vector {
	return avr.Vector{Name: name, Enable: avr.NO_BIT, Flag: avr.NO_BIT}
}

// megaClock decodes the CKSEL field of the ATmega48/88/168/328 and
// ATmega640/1280/2560 families.
func megaClock(cksel byte, crystal avr.Freq) (source avr.ClockSource, freq avr.Freq) {
	switch {
	case cksel == 0x0:
		return avr.CLOCK_EXTERNAL, crystal
	case cksel == 0x2:
		return avr.CLOCK_INTERNAL_RC, 8 * avr.MHZ
	case cksel == 0x3:
		return avr.CLOCK_INTERNAL_128K, 128 * avr.KHZ
	case cksel == 0x4 || cksel == 0x5:
		return avr.CLOCK_LOW_FREQ_XTAL, 32768
	case cksel >= 0x6:
		return avr.CLOCK_XTAL, crystal
	}
	// CKSEL 0001 is reserved.
	return avr.CLOCK_EXTERNAL, avr.FREQ_UNKNOWN
}
