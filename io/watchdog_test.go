package io

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/avrsim/avr"
)

const test_WDTCSR = avr.Offset(0x60)

func testWatchdog(bus *testBus) *Watchdog {
	wd := &Watchdog{Name: "WDT", WDTCSR: test_WDTCSR}
	wd.Reset(bus)
	return wd
}

func TestWatchdog_Interrupt(t *testing.T) {
	assert := assert.New(t)

	bus := newTestBus()
	wd := testWatchdog(bus)

	// 2048 oscillator ticks at 128kHz is 16ms, 16000 cycles at 1MHz.
	bus.cpuWrite(test_WDTCSR, WDTCSR_WDIE)
	bus.run(wd, 15999)
	assert.Zero(bus.IoGet(test_WDTCSR) & WDTCSR_WDIF)
	bus.run(wd, 1)
	assert.NotZero(bus.IoGet(test_WDTCSR) & WDTCSR_WDIF)
	assert.Empty(bus.resets)

	// WDIF is write-one-to-clear.
	bus.cpuWrite(test_WDTCSR, WDTCSR_WDIF|WDTCSR_WDIE)
	assert.Equal(byte(WDTCSR_WDIE), bus.IoGet(test_WDTCSR))
}

func TestWatchdog_Reset(t *testing.T) {
	assert := assert.New(t)

	bus := newTestBus()
	wd := testWatchdog(bus)

	bus.cpuWrite(test_WDTCSR, WDTCSR_WDE)
	bus.run(wd, 10000)
	wd.Restart()
	bus.run(wd, 10000)
	assert.Empty(bus.resets)

	bus.run(wd, 6000)
	assert.Equal([]byte{MCUSR_WDRF}, bus.resets)
}

func TestWatchdog_InterruptAndReset(t *testing.T) {
	assert := assert.New(t)

	bus := newTestBus()
	wd := testWatchdog(bus)

	bus.cpuWrite(test_WDTCSR, WDTCSR_WDE|WDTCSR_WDIE)
	bus.run(wd, 16000)
	wdtcsr := bus.IoGet(test_WDTCSR)
	assert.NotZero(wdtcsr & WDTCSR_WDIF)
	assert.Zero(wdtcsr & WDTCSR_WDIE)
	assert.Empty(bus.resets)

	bus.run(wd, 16000)
	assert.Equal([]byte{MCUSR_WDRF}, bus.resets)
}

func TestWatchdog_TimedSequence(t *testing.T) {
	assert := assert.New(t)

	bus := newTestBus()
	wd := testWatchdog(bus)

	bus.cpuWrite(test_WDTCSR, WDTCSR_WDE)

	// WDE cannot be cleared without the change enable.
	bus.cpuWrite(test_WDTCSR, 0x00)
	assert.Equal(byte(WDTCSR_WDE), bus.IoGet(test_WDTCSR))

	bus.cpuWrite(test_WDTCSR, WDTCSR_WDCE|WDTCSR_WDE)
	bus.run(wd, 2)
	bus.cpuWrite(test_WDTCSR, 0x07)
	assert.Equal(byte(0x07), bus.IoGet(test_WDTCSR))

	// A late change is ignored, and WDCE times out.
	bus.cpuWrite(test_WDTCSR, WDTCSR_WDCE|WDTCSR_WDE)
	bus.run(wd, 5)
	assert.Equal(byte(WDTCSR_WDE|0x07), bus.IoGet(test_WDTCSR))
	bus.cpuWrite(test_WDTCSR, 0x00)
	assert.Equal(byte(WDTCSR_WDE|0x07), bus.IoGet(test_WDTCSR))
}

func TestWatchdog_Timeout(t *testing.T) {
	assert := assert.New(t)

	bus := newTestBus()
	wd := testWatchdog(bus)

	assert.Equal(uint32(2048), wd.Timeout(bus))
	bus.IoSet(test_WDTCSR, WDTCSR_WDP3|0x01)
	assert.Equal(uint32(2048<<9), wd.Timeout(bus))

	bus.IoSet(test_WDTCSR, WDTCSR_WDP3|0x03)
	assert.Equal(uint32(2048<<9), wd.Timeout(bus))
	assert.Equal(1, bus.warnings())

	assert.True(wd.Clocked(avr.SLEEP_POWER_DOWN))
}

func TestWatchdog_UnknownFrequency(t *testing.T) {
	assert := assert.New(t)

	bus := newTestBus()
	bus.freq = avr.FREQ_UNKNOWN
	wd := testWatchdog(bus)

	bus.cpuWrite(test_WDTCSR, WDTCSR_WDE)
	bus.run(wd, 100000)
	assert.Empty(bus.resets)
	assert.Equal(1, bus.warnings())
}
