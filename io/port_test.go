package io

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/avrsim/avr"
)

const (
	test_PINB  = avr.Offset(0x23)
	test_DDRB  = avr.Offset(0x24)
	test_PORTB = avr.Offset(0x25)
)

func testPortB(changes *[]PortChange) *Port {
	return &Port{
		Name: "B",
		PIN:  test_PINB,
		DDR:  test_DDRB,
		PORT: test_PORTB,
		OnChange: func(change PortChange) {
			*changes = append(*changes, change)
		},
	}
}

func TestPort_Pin(t *testing.T) {
	assert := assert.New(t)

	var changes []PortChange
	bus := newTestBus()
	pt := testPortB(&changes)
	pt.Reset(bus)

	// Outputs read back PORT; inputs with pull-ups read high.
	bus.IoSet(test_DDRB, 0x0f)
	bus.IoSet(test_PORTB, 0x35)
	bus.run(pt, 1)
	assert.Equal(byte(0x35), bus.IoGet(test_PINB))

	// External drivers override the pull-ups of input pins only.
	pt.SetInput(0x11, 0x00)
	bus.run(pt, 1)
	assert.Equal(byte(0x25), bus.IoGet(test_PINB))

	pt.SetInput(0x40, 0x40)
	bus.run(pt, 1)
	assert.Equal(byte(0x65), bus.IoGet(test_PINB))

	pt.Release(0x50)
	bus.run(pt, 1)
	assert.Equal(byte(0x35), bus.IoGet(test_PINB))
}

func TestPort_PinToggle(t *testing.T) {
	assert := assert.New(t)

	var changes []PortChange
	bus := newTestBus()
	pt := testPortB(&changes)
	pt.Reset(bus)

	bus.IoSet(test_DDRB, 0xff)
	bus.IoSet(test_PORTB, 0x01)

	bus.cpuWrite(test_PINB, 0x21)
	assert.Equal(byte(0x20), bus.IoGet(test_PORTB))
	assert.Equal(byte(0x20), bus.IoGet(test_PINB))
}

func TestPort_Changes(t *testing.T) {
	assert := assert.New(t)

	var changes []PortChange
	bus := newTestBus()
	pt := testPortB(&changes)
	pt.Reset(bus)

	bus.run(pt, 10)
	assert.Empty(changes)

	bus.IoSet(test_DDRB, 0x20)
	bus.run(pt, 5)
	bus.IoSet(test_PORTB, 0x20)
	bus.run(pt, 5)
	bus.IoSet(test_PORTB, 0x20)
	bus.run(pt, 5)

	assert.Equal([]PortChange{
		{Name: "B", Port: 0x00, Ddr: 0x20, Pin: 0x00, Cycle: 11},
		{Name: "B", Port: 0x20, Ddr: 0x20, Pin: 0x20, Cycle: 16},
	}, changes)

	assert.True(pt.Clocked(avr.SLEEP_POWER_DOWN))
}
