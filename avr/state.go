package avr

import (
	"fmt"
	"time"
)

// State is the execution state of an Mcu.
type State int

const (
	STATE_RUNNING   = State(0) // running
	STATE_STOPPED   = State(1) // stopped
	STATE_SLEEPING  = State(2) // sleeping
	STATE_STEP      = State(3) // step
	STATE_STEP_OVER = State(4) // step-over
	STATE_HALT      = State(5) // halt
	STATE_TEST_FAIL = State(6) // test-fail
)

var _state_names = [...]string{
	STATE_RUNNING:   "running",
	STATE_STOPPED:   "stopped",
	STATE_SLEEPING:  "sleeping",
	STATE_STEP:      "step",
	STATE_STEP_OVER: "step-over",
	STATE_HALT:      "halt",
	STATE_TEST_FAIL: "test-fail",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(_state_names) {
		return _state_names[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal is true for states the driver loop exits on.
func (s State) Terminal() bool {
	return s == STATE_STOPPED || s == STATE_HALT || s == STATE_TEST_FAIL
}

// Freq is a clock frequency in Hz.
type Freq uint64

// FREQ_UNKNOWN is the frequency of an external or uncalibrated clock.
const FREQ_UNKNOWN = Freq(0)

const (
	KHZ = Freq(1000)
	MHZ = Freq(1000 * 1000)
)

// Known is true if the frequency is a concrete value.
func (fr Freq) Known() bool {
	return fr != FREQ_UNKNOWN
}

// Period returns the duration of one clock cycle.
func (fr Freq) Period() (period time.Duration, ok bool) {
	if !fr.Known() {
		return
	}
	period = time.Second / time.Duration(fr)
	ok = true
	return
}

func (fr Freq) String() string {
	switch {
	case !fr.Known():
		return "unknown"
	case fr%MHZ == 0:
		return fmt.Sprintf("%dMHz", fr/MHZ)
	case fr%KHZ == 0:
		return fmt.Sprintf("%dkHz", fr/KHZ)
	}
	return fmt.Sprintf("%dHz", uint64(fr))
}

// ClockSource is the fuse-selected system clock source.
type ClockSource int

const (
	CLOCK_EXTERNAL      = ClockSource(0) // external clock
	CLOCK_INTERNAL_RC   = ClockSource(1) // calibrated internal RC
	CLOCK_INTERNAL_128K = ClockSource(2) // internal 128kHz
	CLOCK_LOW_FREQ_XTAL = ClockSource(3) // low frequency crystal
	CLOCK_XTAL          = ClockSource(4) // crystal oscillator
)

var _clock_names = [...]string{
	CLOCK_EXTERNAL:      "external clock",
	CLOCK_INTERNAL_RC:   "calibrated internal RC",
	CLOCK_INTERNAL_128K: "internal 128kHz",
	CLOCK_LOW_FREQ_XTAL: "low frequency crystal",
	CLOCK_XTAL:          "crystal oscillator",
}

func (cs ClockSource) String() string {
	if cs >= 0 && int(cs) < len(_clock_names) {
		return _clock_names[cs]
	}
	return fmt.Sprintf("ClockSource(%d)", int(cs))
}

// Bootloader is the boot section of program memory, in bytes.
type Bootloader struct {
	Start uint32
	End   uint32
	Size  uint32
}

// Contains is true if the byte address is inside the boot section.
func (bl Bootloader) Contains(addr uint32) bool {
	return bl.Size != 0 && addr >= bl.Start && addr <= bl.End
}

// Features are the optional parts of the instruction set a device has.
type Features uint32

const (
	FEATURE_MUL   = Features(1 << 0) // MUL, MULS, MULSU, FMUL*
	FEATURE_JMP   = Features(1 << 1) // JMP, CALL
	FEATURE_MOVW  = Features(1 << 2) // MOVW
	FEATURE_LPMX  = Features(1 << 3) // LPM Rd,Z and LPM Rd,Z+
	FEATURE_ELPM  = Features(1 << 4) // ELPM
	FEATURE_EIJMP = Features(1 << 5) // EIJMP, EICALL
	FEATURE_SPM   = Features(1 << 6) // SPM
	FEATURE_BREAK = Features(1 << 7) // BREAK

	FEATURES_TINY   = FEATURE_MOVW | FEATURE_LPMX | FEATURE_SPM | FEATURE_BREAK
	FEATURES_MEGA   = FEATURES_TINY | FEATURE_MUL | FEATURE_JMP
	FEATURES_MEGA_X = FEATURES_MEGA | FEATURE_ELPM | FEATURE_EIJMP
)

// Has is true if all of the features in 'want' are present.
func (fe Features) Has(want Features) bool {
	return fe&want == want
}
