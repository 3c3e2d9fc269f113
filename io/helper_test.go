package io

import (
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ezrec/avrsim/avr"
)

// testBus is a register file with just enough behavior for peripherals.
type testBus struct {
	data   [0x100]byte
	hooks  map[avr.Offset]avr.IoHook
	irqs   []int
	resets []byte
	cycles uint64
	freq   avr.Freq
	sleep  avr.SleepMode
	log    *logrus.Logger
	logged *test.Hook
}

var _ Bus = (*testBus)(nil)

func newTestBus() *testBus {
	log, hook := test.NewNullLogger()
	return &testBus{
		hooks:  map[avr.Offset]avr.IoHook{},
		freq:   avr.MHZ,
		sleep:  avr.SLEEP_NONE,
		log:    log,
		logged: hook,
	}
}

func (tb *testBus) IoGet(off avr.Offset) byte {
	if !off.Present() {
		return 0
	}
	return tb.data[off]
}

func (tb *testBus) IoSet(off avr.Offset, value byte) {
	if !off.Present() {
		return
	}
	tb.data[off] = value
}

func (tb *testBus) IoBit(rb avr.RegBit) bool {
	return rb.Present() && tb.IoGet(rb.Offset)&rb.Mask() != 0
}

func (tb *testBus) IoSetBit(rb avr.RegBit, set bool) {
	value := tb.IoGet(rb.Offset)
	if set {
		value |= rb.Mask()
	} else {
		value &^= rb.Mask()
	}
	tb.IoSet(rb.Offset, value)
}

func (tb *testBus) SetHook(off avr.Offset, hook avr.IoHook) {
	tb.hooks[off] = hook
}

func (tb *testBus) RaiseIRQ(v int) {
	tb.irqs = append(tb.irqs, v)
}

func (tb *testBus) Cycles() uint64 {
	return tb.cycles
}

func (tb *testBus) Freq() avr.Freq {
	return tb.freq
}

func (tb *testBus) SleepMode() avr.SleepMode {
	return tb.sleep
}

func (tb *testBus) ResetSystem(cause byte) {
	tb.resets = append(tb.resets, cause)
}

func (tb *testBus) Logger() logrus.FieldLogger {
	return tb.log
}

// cpuRead reads a register as the CPU does, through its hook.
func (tb *testBus) cpuRead(off avr.Offset) byte {
	value := tb.IoGet(off)
	if hook, ok := tb.hooks[off]; ok && hook.Read != nil {
		value = hook.Read(value)
	}
	return value
}

// cpuWrite writes a register as the CPU does, through its hook.
func (tb *testBus) cpuWrite(off avr.Offset, value byte) {
	if hook, ok := tb.hooks[off]; ok && hook.Write != nil {
		value = hook.Write(tb.IoGet(off), value)
	}
	tb.IoSet(off, value)
}

// run ticks a peripheral 'n' cycles.
func (tb *testBus) run(p Peripheral, n int) {
	for range n {
		tb.cycles++
		p.Tick(tb)
	}
}

// warnings counts logged warnings.
func (tb *testBus) warnings() (count int) {
	for _, entry := range tb.logged.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			count++
		}
	}
	return
}
