// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator drives a simulated device: it runs the instruction loop,
// honors the execution state requested by other goroutines, and publishes
// status events.
package emulator

import (
	"io"
	"sync"
	"time"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/ihex"
	"github.com/ezrec/avrsim/internal"
	"github.com/ezrec/avrsim/ipc"
	"github.com/ezrec/avrsim/model"
	"github.com/ezrec/avrsim/queue"
)

const (
	SPEED_SAMPLE_CYCLES = 1 << 16 // Cycles between simulated speed samples.
	SPEED_SAMPLES       = 16      // Speed samples kept for the median.
	EVENT_SLOTS         = 64      // Queued status events.

	// Largest encoded status event: a diagnostic of MESSAGE_MAX bytes, each
	// escaped to at most six, and the fixed fields.
	EVENT_SIZE = 6*avr.MESSAGE_MAX + 512
)

// Option configures an emulator.
type Option func(emu *Emulator)

// WithPublisher publishes status events to 'pub'.
func WithPublisher(pub ipc.Publisher) Option {
	return func(emu *Emulator) {
		emu.publisher = pub
	}
}

// WithMaxCycles halts the run after 'cycles' cycles. 0 means no limit.
func WithMaxCycles(cycles uint64) Option {
	return func(emu *Emulator) {
		emu.MaxCycles = cycles
	}
}

// WithVerbose logs every executed instruction.
func WithVerbose(verbose bool) Option {
	return func(emu *Emulator) {
		emu.Verbose = verbose
	}
}

// Emulator state: a device and its driver.
type Emulator struct {
	Verbose       bool   // If set, enables verbose logging.
	MaxCycles     uint64 // Halt after this many cycles, 0 for no limit.
	*model.Device        // Reference to the simulated device.

	publisher ipc.Publisher
	events    *queue.Queue
	pumpDone  chan struct{}

	speedMu     sync.Mutex
	speed       []uint64
	speedCycles uint64
	speedTime   time.Time
}

// New creates an emulator of the named device, with erased program memory.
func New(name string, opts ...Option) (emu *Emulator, err error) {
	table, err := model.Lookup(name)
	if err != nil {
		return
	}

	flash := make([]byte, table.Config.FlashSize)
	ihex.Erase(flash)
	data := make([]byte, table.Config.DataSize)

	dev, err := model.NewFromTable(table, flash, data)
	if err != nil {
		return
	}

	emu = &Emulator{
		Device: dev,
	}
	for _, opt := range opts {
		opt(emu)
	}

	emu.Mcu.Verbose = emu.Verbose

	if emu.publisher != nil {
		err = emu.startPump()
		if err != nil {
			emu = nil
			return
		}
	}

	return
}

// Close stops the event pump and closes the publisher.
func (emu *Emulator) Close() (err error) {
	if emu.publisher == nil {
		return
	}

	emu.stopPump()
	err = emu.publisher.Close()
	emu.publisher = nil

	return
}

// LoadHex erases program memory and loads an Intel HEX image.
func (emu *Emulator) LoadHex(input io.Reader) (image ihex.Image, err error) {
	ihex.Erase(emu.Mcu.Flash)
	image, err = ihex.Read(input, emu.Mcu.Flash)
	return
}

// AddTicker adds a per-cycle tick hook.
func (emu *Emulator) AddTicker(ticker avr.Ticker) {
	emu.Mcu.AddTicker(ticker)
}

// Reset resets the device and leaves it running.
func (emu *Emulator) Reset() {
	emu.Mcu.Reset()
	emu.Mcu.SetState(avr.STATE_RUNNING)
}

// Cycles returns the total cycles since the device was created.
func (emu *Emulator) Cycles() uint64 {
	return emu.Mcu.Cycles()
}

// Pc returns the current program counter, as a byte address.
func (emu *Emulator) Pc() uint32 {
	return emu.Mcu.Pc
}

// Run ticks the emulator until it stops, halts or fails. It returns the
// error that stopped it, if any.
func (emu *Emulator) Run() (err error) {
	emu.publish(ipc.Message{Kind: ipc.KIND_START})
	defer func() {
		emu.publish(ipc.Message{
			Kind:    ipc.KIND_END,
			State:   emu.Mcu.State().String(),
			Message: emu.Mcu.Message(),
		})
	}()

	emu.speedTime = time.Now()
	emu.speedCycles = emu.Mcu.Cycles()

	for {
		var done bool
		done, err = emu.Tick()
		if done || err != nil {
			return
		}
	}
}

// Tick performs one step of the driver in the current execution state.
func (emu *Emulator) Tick() (done bool, err error) {
	mcu := emu.Mcu
	mcu.Verbose = emu.Verbose

	state := mcu.State()
	switch state {
	case avr.STATE_RUNNING:
		_, err = mcu.Step()
	case avr.STATE_STEP:
		_, err = mcu.Step()
		emu.stopAfter(avr.STATE_STEP)
	case avr.STATE_STEP_OVER:
		err = emu.stepOver()
		emu.stopAfter(avr.STATE_STEP_OVER)
	case avr.STATE_SLEEPING:
		emu.sleep()
	default:
		done = true
		if state == avr.STATE_TEST_FAIL {
			err = &ErrTestFail{Message: mcu.Message()}
		}
		return
	}

	if err != nil {
		mcu.Fault(avr.STATE_STOPPED, err)
		err = &ErrRuntime{Pc: mcu.Pc, Err: err}
		done = true
		return
	}

	emu.sampleSpeed()

	if emu.limited() {
		// A stop, halt or failure from the last step wins.
		now := mcu.State()
		if !now.Terminal() && mcu.CompareAndSwapState(now, avr.STATE_HALT) {
			done = true
		}
	}

	return
}

// limited is true once MaxCycles have run.
func (emu *Emulator) limited() bool {
	return emu.MaxCycles > 0 && emu.Mcu.Cycles() >= emu.MaxCycles
}

// stopAfter moves to STOPPED, unless the step itself changed the state or
// the cycle limit was reached.
func (emu *Emulator) stopAfter(state avr.State) {
	if emu.limited() {
		return
	}
	emu.Mcu.CompareAndSwapState(state, avr.STATE_STOPPED)
}

// isCall is true for instructions that push a return address.
func isCall(op avr.Op) bool {
	switch op {
	case avr.OP_CALL, avr.OP_RCALL, avr.OP_ICALL, avr.OP_EICALL:
		return true
	}
	return false
}

// stepOver executes one instruction; a call runs until the stack pointer
// is back where it was before the call.
func (emu *Emulator) stepOver() (err error) {
	mcu := emu.Mcu

	inst, err := mcu.Fetch()
	if err != nil {
		return
	}

	sp := mcu.Sp()
	_, err = mcu.Step()
	if err != nil || !isCall(inst.Op) {
		return
	}

	for mcu.Sp() != sp {
		if mcu.State() != avr.STATE_STEP_OVER {
			return
		}
		if emu.limited() {
			return
		}
		_, err = mcu.Step()
		if err != nil {
			return
		}
	}

	return
}

// sleep idles one cycle. Sleeping with interrupts disabled and no armed
// reset source can never wake.
func (emu *Emulator) sleep() {
	mcu := emu.Mcu

	if mcu.SleepMode() == avr.SLEEP_NONE {
		mcu.SetState(avr.STATE_RUNNING)
		return
	}

	if !mcu.InterruptsEnabled() && !emu.ResetArmed() {
		mcu.Fault(avr.STATE_HALT, ErrSleepForever)
		return
	}

	mcu.Idle()
}

// sampleSpeed records the simulated frequency every SPEED_SAMPLE_CYCLES.
func (emu *Emulator) sampleSpeed() {
	cycles := emu.Mcu.Cycles()
	if cycles-emu.speedCycles < SPEED_SAMPLE_CYCLES {
		return
	}

	now := time.Now()
	elapsed := now.Sub(emu.speedTime)
	if elapsed > 0 {
		hz := uint64(time.Duration(cycles-emu.speedCycles) * time.Second / elapsed)

		emu.speedMu.Lock()
		emu.speed = append(emu.speed, hz)
		if len(emu.speed) > SPEED_SAMPLES {
			emu.speed = emu.speed[1:]
		}
		emu.speedMu.Unlock()
	}

	emu.speedCycles = cycles
	emu.speedTime = now
}

// Speed returns the median simulated frequency of recent samples, or
// FREQ_UNKNOWN before the first sample.
func (emu *Emulator) Speed() avr.Freq {
	emu.speedMu.Lock()
	median := internal.Median(emu.speed)
	emu.speedMu.Unlock()

	if median == internal.MEDIAN_INVALID {
		return avr.FREQ_UNKNOWN
	}
	return avr.Freq(median)
}
