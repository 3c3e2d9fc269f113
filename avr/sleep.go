package avr

import (
	"fmt"
)

// SleepMode is the sleep mode selected by the SM bits.
type SleepMode int

const (
	SLEEP_IDLE        = SleepMode(0)  // idle
	SLEEP_ADC_NR      = SleepMode(1)  // ADC noise reduction
	SLEEP_POWER_DOWN  = SleepMode(2)  // power-down
	SLEEP_POWER_SAVE  = SleepMode(3)  // power-save
	SLEEP_STANDBY     = SleepMode(6)  // standby
	SLEEP_EXT_STANDBY = SleepMode(7)  // extended standby
	SLEEP_NONE        = SleepMode(-1) // awake
)

func (sm SleepMode) String() string {
	switch sm {
	case SLEEP_NONE:
		return "awake"
	case SLEEP_IDLE:
		return "idle"
	case SLEEP_ADC_NR:
		return "adc-noise-reduction"
	case SLEEP_POWER_DOWN:
		return "power-down"
	case SLEEP_POWER_SAVE:
		return "power-save"
	case SLEEP_STANDBY:
		return "standby"
	case SLEEP_EXT_STANDBY:
		return "extended-standby"
	}
	return fmt.Sprintf("SleepMode(%d)", int(sm))
}

// ClockStopped is true if the synchronous peripheral clocks are halted.
func (sm SleepMode) ClockStopped() bool {
	return sm != SLEEP_NONE && sm != SLEEP_IDLE && sm != SLEEP_ADC_NR
}

// SleepMode returns the current sleep mode, SLEEP_NONE while awake.
func (mcu *Mcu) SleepMode() SleepMode {
	return mcu.sleep
}

// selectedSleepMode decodes the SM bits.
func (mcu *Mcu) selectedSleepMode() SleepMode {
	if !mcu.Regs.SM.Present() {
		return SLEEP_IDLE
	}
	width := mcu.Regs.SMBits
	if width == 0 {
		width = 3
	}
	sm := (mcu.IoGet(mcu.Regs.SM.Offset) >> mcu.Regs.SM.Bit) & (1<<width - 1)
	return SleepMode(sm)
}

// Wake leaves sleep mode.
func (mcu *Mcu) Wake() {
	if mcu.sleep == SLEEP_NONE {
		return
	}

	if mcu.Verbose {
		mcu.Log.Debugf("wake from %v", mcu.sleep)
	}

	mcu.sleep = SLEEP_NONE
	mcu.mu.Lock()
	if mcu.state == STATE_SLEEPING {
		mcu.state = STATE_RUNNING
	}
	mcu.mu.Unlock()
}

// OnWdr registers a function called by the WDR instruction.
func (mcu *Mcu) OnWdr(fn func()) {
	mcu.wdr = append(mcu.wdr, fn)
}
