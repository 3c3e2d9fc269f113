package avr

import (
	"fmt"
)

// Offset is a data-space address of a special function register.
type Offset uint16

// OFFSET_ABSENT marks a register the device does not have.
const OFFSET_ABSENT = Offset(0xffff)

// Present is true if the register exists on the device.
func (off Offset) Present() bool {
	return off != OFFSET_ABSENT
}

func (off Offset) String() string {
	if !off.Present() {
		return "-"
	}
	return fmt.Sprintf("0x%02x", uint16(off))
}

// RegBit names a single bit of a register.
type RegBit struct {
	Offset Offset
	Bit    uint8
}

// NO_BIT is a RegBit for an absent register.
var NO_BIT = RegBit{Offset: OFFSET_ABSENT}

// Present is true if the bit's register exists.
func (rb RegBit) Present() bool {
	return rb.Offset.Present()
}

// Mask returns the bit as a mask.
func (rb RegBit) Mask() byte {
	return 1 << rb.Bit
}

// Regs holds the offsets of the registers the core itself uses.
type Regs struct {
	SPL    Offset
	SPH    Offset
	SREG   Offset
	RAMPZ  Offset
	EIND   Offset
	SPMCSR Offset
	MCUSR  Offset
	WDTCSR Offset
	SE     RegBit // Sleep enable.
	SM     RegBit // Low bit of the sleep mode field.
	SMBits uint8  // Width of the sleep mode field, 0 for 3.
}

// IoReg describes a memory-mapped I/O register.
//
// ReadMask bits are visible to the CPU, WriteMask bits are writable by the
// CPU, and ClearMask bits are interrupt flags cleared by writing a one.
type IoReg struct {
	Name      string
	Offset    Offset
	Reset     byte
	ReadMask  byte
	WriteMask byte
	ClearMask byte
}

// write returns the stored value after the CPU writes 'value' over 'old'.
func (reg *IoReg) write(old, value byte) (next byte) {
	next = (old &^ reg.WriteMask) | (value & reg.WriteMask)
	next &^= value & reg.ClearMask
	return
}

// IoHook gives a peripheral side effects for CPU accesses to a register.
//
// Read receives the stored value and returns the value the CPU sees, before
// the register's ReadMask is applied. Write receives the stored value and the
// value the CPU wrote, and returns the value to store; the register's
// WriteMask and ClearMask are not applied when a Write hook is installed.
type IoHook struct {
	Read  func(stored byte) byte
	Write func(stored, value byte) byte
}

// Vector describes an interrupt source.
type Vector struct {
	Name     string
	Enable   RegBit // Interrupt enable bit, NO_BIT if always enabled.
	Flag     RegBit // Interrupt flag bit, NO_BIT if raised by RaiseIRQ only.
	KeepFlag bool   // Flag is not cleared by hardware on vector entry.
}
