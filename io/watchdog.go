package io

import (
	"github.com/ezrec/avrsim/avr"
)

// WDTCSR bits.
const (
	WDTCSR_WDIF = 1 << 7
	WDTCSR_WDIE = 1 << 6
	WDTCSR_WDP3 = 1 << 5
	WDTCSR_WDCE = 1 << 4
	WDTCSR_WDE  = 1 << 3
	WDTCSR_WDP  = 0x07
)

// MCUSR reset cause bits.
const (
	MCUSR_PORF  = 1 << 0
	MCUSR_EXTRF = 1 << 1
	MCUSR_BORF  = 1 << 2
	MCUSR_WDRF  = 1 << 3
)

const (
	WDT_OSC_HZ     = 128000 // Watchdog oscillator.
	WDT_BASE_TICKS = 2048   // Oscillator ticks at WDP 0.
	WDT_WDP_MAX    = 9
	WDT_WDCE_TICKS = 4 // Cycles the WDCE change window stays open.
	warn_wdt_freq  = 1
	warn_wdt_wdp   = 2
)

// Watchdog is the watchdog timer, clocked by its own 128kHz oscillator.
type Watchdog struct {
	Name   string
	WDTCSR avr.Offset

	accum   uint64 // Oscillator phase, in units of CPU Hz.
	osc     uint32 // Oscillator ticks since the last restart.
	wdceAt  uint64
	wdceSet bool

	warned warnOnce
}

var _ Peripheral = (*Watchdog)(nil)

// Restart clears the timeout count, as done by WDR.
func (wd *Watchdog) Restart() {
	wd.accum = 0
	wd.osc = 0
}

// Reset restarts the timer and installs the timed sequence hook.
func (wd *Watchdog) Reset(bus Bus) {
	wd.Restart()
	wd.wdceSet = false

	bus.SetHook(wd.WDTCSR, avr.IoHook{
		Write: func(stored, value byte) byte {
			return wd.write(bus, stored, value)
		},
	})
}

// write applies a CPU write of WDTCSR. WDIE may change at any time and WDE
// may be set at any time. Clearing WDE and changing the prescaler need WDCE
// and WDE written first, then the change within four cycles.
func (wd *Watchdog) write(bus Bus, stored, value byte) byte {
	next := stored & (WDTCSR_WDIF | WDTCSR_WDE | WDTCSR_WDP3 | WDTCSR_WDP)

	if value&WDTCSR_WDIF != 0 {
		next &^= WDTCSR_WDIF
	}

	next = (next &^ WDTCSR_WDIE) | (value & WDTCSR_WDIE)

	prescale := byte(WDTCSR_WDE | WDTCSR_WDP3 | WDTCSR_WDP)
	switch {
	case wd.changeEnabled(bus):
		next = (next &^ prescale) | (value & prescale)
		wd.wdceSet = false
	case value&(WDTCSR_WDCE|WDTCSR_WDE) == WDTCSR_WDCE|WDTCSR_WDE:
		next |= WDTCSR_WDCE | WDTCSR_WDE
		wd.wdceSet = true
		wd.wdceAt = bus.Cycles()
	default:
		next |= value & WDTCSR_WDE
	}

	return next
}

func (wd *Watchdog) changeEnabled(bus Bus) bool {
	return wd.wdceSet && bus.Cycles()-wd.wdceAt <= WDT_WDCE_TICKS
}

// Clocked is true: the watchdog oscillator runs in every sleep mode.
func (wd *Watchdog) Clocked(mode avr.SleepMode) bool {
	return true
}

// Timeout returns the oscillator ticks before the watchdog fires.
func (wd *Watchdog) Timeout(bus Bus) uint32 {
	wdtcsr := bus.IoGet(wd.WDTCSR)
	wdp := int(wdtcsr & WDTCSR_WDP)
	if wdtcsr&WDTCSR_WDP3 != 0 {
		wdp |= 0x08
	}
	if wdp > WDT_WDP_MAX {
		wd.warned.warn(bus.Logger().WithField("watchdog", wd.Name), warn_wdt_wdp,
			"reserved watchdog prescaler %d, using %d", wdp, WDT_WDP_MAX)
		wdp = WDT_WDP_MAX
	}
	return WDT_BASE_TICKS << wdp
}

// Tick advances the watchdog oscillator by one CPU cycle.
func (wd *Watchdog) Tick(bus Bus) {
	wdtcsr := bus.IoGet(wd.WDTCSR)

	if wd.wdceSet && !wd.changeEnabled(bus) {
		wd.wdceSet = false
		wdtcsr &^= WDTCSR_WDCE
		bus.IoSet(wd.WDTCSR, wdtcsr)
	}

	if wdtcsr&(WDTCSR_WDE|WDTCSR_WDIE) == 0 {
		wd.Restart()
		return
	}

	freq := bus.Freq()
	if !freq.Known() {
		wd.warned.warn(bus.Logger().WithField("watchdog", wd.Name), warn_wdt_freq,
			"CPU frequency unknown, watchdog disabled")
		return
	}

	wd.accum += WDT_OSC_HZ
	for wd.accum >= uint64(freq) {
		wd.accum -= uint64(freq)
		wd.osc++
	}

	if wd.osc < wd.Timeout(bus) {
		return
	}
	wd.osc = 0

	wd.expire(bus, wdtcsr)
}

// expire handles a timeout. In interrupt and reset mode, the first timeout
// interrupts and drops WDIE, so the next one resets the system.
func (wd *Watchdog) expire(bus Bus, wdtcsr byte) {
	if wdtcsr&WDTCSR_WDIE != 0 {
		wdtcsr |= WDTCSR_WDIF
		if wdtcsr&WDTCSR_WDE != 0 {
			wdtcsr &^= WDTCSR_WDIE
		}
		bus.IoSet(wd.WDTCSR, wdtcsr)
		return
	}

	bus.ResetSystem(MCUSR_WDRF)
}
