package io

import (
	"github.com/ezrec/avrsim/avr"
)

// Clock select values of TCCRnB.
const (
	CS_STOP         = 0
	CS_EXT_FALLING  = 6
	CS_EXT_RISING   = 7
	CS_MASK         = 0x07
	COM_DISCONNECT  = 0
	COM_TOGGLE      = 1
	COM_CLEAR       = 2
	COM_SET         = 3
	TIMER8_MAX      = 0xff
	TIMER16_MAX     = 0xffff
	WGM_UNSUPPORTED = -1
)

// Prescaler divisors, indexed by clock select.
var (
	_prescale_sync  = [8]uint32{0, 1, 8, 64, 256, 1024, 0, 0}
	_prescale_async = [8]uint32{0, 1, 8, 32, 64, 128, 256, 1024}
)

// waveKind is the counting behavior of a waveform generation mode.
type waveKind int

const (
	wave_normal = waveKind(iota)
	wave_ctc
	wave_fast
	wave_phase
)

// topSource selects where a mode's TOP comes from.
type topSource int

const (
	top_fixed = topSource(iota)
	top_ocra
	top_icr
)

type waveform struct {
	kind   waveKind
	source topSource
	top    uint16
}

var _wgm_timer8 = [8]waveform{
	0: {wave_normal, top_fixed, TIMER8_MAX},
	1: {wave_phase, top_fixed, TIMER8_MAX},
	2: {wave_ctc, top_ocra, 0},
	3: {wave_fast, top_fixed, TIMER8_MAX},
	4: {kind: WGM_UNSUPPORTED},
	5: {wave_phase, top_ocra, 0},
	6: {kind: WGM_UNSUPPORTED},
	7: {wave_fast, top_ocra, 0},
}

var _wgm_timer16 = [16]waveform{
	0:  {wave_normal, top_fixed, TIMER16_MAX},
	1:  {wave_phase, top_fixed, 0x00ff},
	2:  {wave_phase, top_fixed, 0x01ff},
	3:  {wave_phase, top_fixed, 0x03ff},
	4:  {wave_ctc, top_ocra, 0},
	5:  {wave_fast, top_fixed, 0x00ff},
	6:  {wave_fast, top_fixed, 0x01ff},
	7:  {wave_fast, top_fixed, 0x03ff},
	8:  {kind: WGM_UNSUPPORTED},
	9:  {kind: WGM_UNSUPPORTED},
	10: {wave_phase, top_icr, 0},
	11: {wave_phase, top_ocra, 0},
	12: {wave_ctc, top_icr, 0},
	13: {kind: WGM_UNSUPPORTED},
	14: {wave_fast, top_icr, 0},
	15: {wave_fast, top_ocra, 0},
}

// TimerConfig names the registers, flags and pins of a timer/counter.
// 16-bit registers are named by their low byte; the high byte follows it.
type TimerConfig struct {
	Name  string
	TCCRA avr.Offset
	TCCRB avr.Offset
	TCNT  avr.Offset
	OCRA  avr.Offset
	OCRB  avr.Offset
	ICR   avr.Offset // OFFSET_ABSENT on 8-bit timers.

	TOV  avr.RegBit
	OCFA avr.RegBit
	OCFB avr.RegBit
	ICF  avr.RegBit

	OCA Pin
	OCB Pin
	T   avr.RegBit // External clock input PIN bit, NO_BIT if none.

	Async bool // Asynchronous timer: extended prescaler, runs in power-save.
}

// Timer is an 8-bit or 16-bit timer/counter.
type Timer struct {
	TimerConfig

	wide    bool
	max     uint16
	divisor uint32
	subtick uint32
	down    bool
	prevT   bool
	warned  warnOnce
}

var _ Peripheral = (*Timer)(nil)

// NewTimer8 creates an 8-bit timer/counter.
func NewTimer8(cfg TimerConfig) *Timer {
	return &Timer{TimerConfig: cfg, max: TIMER8_MAX}
}

// NewTimer16 creates a 16-bit timer/counter.
func NewTimer16(cfg TimerConfig) *Timer {
	return &Timer{TimerConfig: cfg, wide: true, max: TIMER16_MAX}
}

// Reset clears the prescaler and counting state.
func (tm *Timer) Reset(bus Bus) {
	tm.divisor = 0
	tm.subtick = 0
	tm.down = false
	tm.prevT = bus.IoBit(tm.T)
}

// Clocked is true for synchronous timers while the CPU clock runs, and for
// asynchronous timers in power-save and extended standby as well.
func (tm *Timer) Clocked(mode avr.SleepMode) bool {
	if !mode.ClockStopped() {
		return true
	}
	return tm.Async && (mode == avr.SLEEP_POWER_SAVE || mode == avr.SLEEP_EXT_STANDBY)
}

// Tick derives the clock source from TCCRnB and counts when a prescaled
// or external clock event occurs.
func (tm *Timer) Tick(bus Bus) {
	cs := bus.IoGet(tm.TCCRB) & CS_MASK

	level := bus.IoBit(tm.T)
	prev := tm.prevT
	tm.prevT = level

	if cs == CS_STOP {
		tm.divisor = 0
		return
	}

	if !tm.Async && (cs == CS_EXT_FALLING || cs == CS_EXT_RISING) {
		tm.divisor = 0
		if cs == CS_EXT_FALLING && prev && !level {
			tm.count(bus)
		} else if cs == CS_EXT_RISING && !prev && level {
			tm.count(bus)
		}
		return
	}

	divisor := _prescale_sync[cs]
	if tm.Async {
		divisor = _prescale_async[cs]
	}
	if divisor != tm.divisor {
		tm.divisor = divisor
		tm.subtick = 0
	}

	tm.subtick++
	if tm.subtick < tm.divisor {
		return
	}
	tm.subtick = 0

	tm.count(bus)
}

// Mode returns the waveform generation mode bits.
func (tm *Timer) Mode(bus Bus) int {
	tccra := bus.IoGet(tm.TCCRA)
	tccrb := bus.IoGet(tm.TCCRB)

	if tm.wide {
		return int(tccra&0x03) | int((tccrb>>3)&0x03)<<2
	}
	return int(tccra&0x03) | int((tccrb>>3)&0x01)<<2
}

func (tm *Timer) waveform(bus Bus) (wf waveform) {
	wgm := tm.Mode(bus)
	if tm.wide {
		wf = _wgm_timer16[wgm]
	} else {
		wf = _wgm_timer8[wgm]
	}

	if wf.kind == WGM_UNSUPPORTED {
		tm.warned.warn(bus.Logger().WithField("timer", tm.Name), wgm,
			"waveform generation mode %d not supported, counting as normal", wgm)
		wf = waveform{wave_normal, top_fixed, tm.max}
	}

	switch wf.source {
	case top_ocra:
		wf.top = tm.get(bus, tm.OCRA)
	case top_icr:
		wf.top = tm.get(bus, tm.ICR)
	}

	return
}

// get reads a timer register.
func (tm *Timer) get(bus Bus, off avr.Offset) uint16 {
	value := uint16(bus.IoGet(off))
	if tm.wide && off.Present() {
		value |= uint16(bus.IoGet(off+1)) << 8
	}
	return value
}

// set writes a timer register.
func (tm *Timer) set(bus Bus, off avr.Offset, value uint16) {
	bus.IoSet(off, byte(value))
	if tm.wide && off.Present() {
		bus.IoSet(off+1, byte(value>>8))
	}
}

// count is one counter clock event.
func (tm *Timer) count(bus Bus) {
	wf := tm.waveform(bus)
	cnt := tm.get(bus, tm.TCNT)
	bottom := false

	switch wf.kind {
	case wave_normal:
		if cnt == tm.max {
			cnt = 0
			bottom = true
			bus.IoSetBit(tm.TOV, true)
		} else {
			cnt++
		}
	case wave_ctc, wave_fast:
		if cnt == wf.top || cnt == tm.max {
			if cnt == tm.max && wf.kind == wave_ctc {
				bus.IoSetBit(tm.TOV, true)
			}
			cnt = 0
			bottom = true
		} else {
			cnt++
		}
		if cnt == wf.top {
			if wf.kind == wave_fast {
				bus.IoSetBit(tm.TOV, true)
			}
			if wf.source == top_icr {
				bus.IoSetBit(tm.ICF, true)
			}
		}
	case wave_phase:
		switch {
		case wf.top == 0:
			cnt = 0
			bottom = true
			bus.IoSetBit(tm.TOV, true)
		case !tm.down:
			cnt++
			if cnt >= wf.top {
				cnt = wf.top
				tm.down = true
				if wf.source == top_icr {
					bus.IoSetBit(tm.ICF, true)
				}
			}
		default:
			cnt--
			if cnt == 0 {
				tm.down = false
				bottom = true
				bus.IoSetBit(tm.TOV, true)
			}
		}
	}

	tm.set(bus, tm.TCNT, cnt)

	tccra := bus.IoGet(tm.TCCRA)
	tm.compare(bus, wf, cnt, bottom, tm.OCRA, tm.OCFA, tm.OCA, (tccra>>6)&0x03, true)
	tm.compare(bus, wf, cnt, bottom, tm.OCRB, tm.OCFB, tm.OCB, (tccra>>4)&0x03, false)
}

// compare handles one output compare unit after a count.
func (tm *Timer) compare(bus Bus, wf waveform, cnt uint16, bottom bool,
	ocr avr.Offset, flag avr.RegBit, pin Pin, com byte, unitA bool) {
	if !ocr.Present() {
		return
	}

	match := cnt == tm.get(bus, ocr)
	if match {
		bus.IoSetBit(flag, true)
	}

	if com == COM_DISCONNECT {
		return
	}

	switch wf.kind {
	case wave_normal, wave_ctc:
		if !match {
			return
		}
		switch com {
		case COM_TOGGLE:
			pin.Toggle(bus)
		case COM_CLEAR:
			pin.Drive(bus, false)
		case COM_SET:
			pin.Drive(bus, true)
		}
	case wave_fast:
		if com == COM_TOGGLE {
			if unitA && match && wf.source == top_ocra {
				pin.Toggle(bus)
			}
			return
		}
		inverted := com == COM_SET
		if match {
			pin.Drive(bus, inverted)
		} else if bottom {
			pin.Drive(bus, !inverted)
		}
	case wave_phase:
		if com == COM_TOGGLE {
			if unitA && match && wf.source == top_ocra {
				pin.Toggle(bus)
			}
			return
		}
		if !match {
			return
		}
		// Cleared on the up count match, set on the down count match,
		// for the non-inverting mode.
		level := tm.down
		if com == COM_SET {
			level = !level
		}
		pin.Drive(bus, level)
	}
}
