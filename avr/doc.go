// Package avr implements the instruction-accurate core of an 8-bit AVR
// microcontroller.
//
// An Mcu holds program memory, a single flat data memory (general purpose
// registers, I/O registers and SRAM share one address space), the status
// register, stack pointer and interrupt controller. Step services a pending
// interrupt or fetches, decodes and executes one instruction, then ticks the
// model's peripherals once per elapsed cycle.
//
// Per-device behavior (fuses, lock bits, peripherals, interrupt sources) is
// supplied by a Model, see package model.
package avr
