// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package avr

import (
	"iter"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	REGISTER_COUNT = 32   // General purpose registers r0-r31.
	IO_START       = 0x20 // Data address of I/O register 0.
	MESSAGE_MAX    = 256  // Diagnostic message limit, in bytes.
)

// Model is the per-device capability an Mcu delegates to.
type Model interface {
	// SetFuse programs fuse byte 'index' and re-derives dependent state.
	SetFuse(mcu *Mcu, index int, value byte) error
	// SetLock programs the lock bits.
	SetLock(mcu *Mcu, value byte) error
	// Reset returns the device peripherals to their reset state.
	Reset(mcu *Mcu)
	// Tick advances the device peripherals by one clock cycle.
	Tick(mcu *Mcu)
	// ProvideIRQs refreshes the interrupt controller from the register file.
	ProvideIRQs(mcu *Mcu)
}

// Ticker is called once per elapsed cycle, after the model's peripherals.
type Ticker interface {
	Tick(mcu *Mcu)
}

// TickFunc adapts a function to a Ticker.
type TickFunc func(mcu *Mcu)

func (tf TickFunc) Tick(mcu *Mcu) {
	tf(mcu)
}

// Config is the static description of a device, produced by package model.
type Config struct {
	Name       string
	Signature  [3]byte
	FlashSize  uint32 // Program memory, in bytes.
	DataSize   uint32 // Data memory including registers and I/O, in bytes.
	RamStart   uint32 // First SRAM address.
	PageSize   uint32 // SPM page size, in bytes.
	PcBits     int    // 16 or 22.
	SpWidth    int    // 8 or 16.
	VectorSize uint32 // Bytes per interrupt vector slot.
	Features   Features
	Regs       Regs
	IoRegs     []IoReg
	Vectors    []Vector // Vector 0 is reset.
	Fuses      []byte   // Factory fuse values.
	Lock       byte     // Factory lock bits.
}

// Mcu is a simulated AVR microcontroller.
type Mcu struct {
	Verbose bool               // Log every instruction at debug level.
	Log     logrus.FieldLogger // Logging collaborator.

	Name      string
	Signature [3]byte
	Model     Model

	Flash      []byte // Program memory.
	FlashStart uint32
	FlashEnd   uint32
	PageSize   uint32

	Data     []byte // Data memory: registers, I/O, SRAM.
	RamStart uint32
	RamEnd   uint32

	Regs     Regs
	PcBits   int
	SpWidth  int
	Features Features

	Pc uint32 // Program counter, as a byte address.

	Fuse     []byte
	LockBits byte
	Boot     Bootloader
	Clock    ClockSource

	Irq Interrupts

	ioregs  []IoReg
	ioindex []int16 // Data address to ioregs index, -1 if none.
	hooks   []IoHook
	tickers []Ticker
	spmBuf  []byte
	wdr     []func()
	sleep   SleepMode

	mu      sync.Mutex
	state   State
	freq    Freq
	cycles  uint64
	message string
	err     error
}

// New creates an Mcu backed by the caller's flash and data buffers.
// The buffers must be at least as large as the device's memories, and must
// not be modified by the caller while the Mcu is in use.
func New(cfg Config, model Model, flash []byte, data []byte) (mcu *Mcu, err error) {
	if len(flash) < int(cfg.FlashSize) {
		err = ErrCapacityShort{Region: "flash", Have: len(flash), Need: cfg.FlashSize}
		return
	}
	if len(data) < int(cfg.DataSize) {
		err = ErrCapacityShort{Region: "data", Have: len(data), Need: cfg.DataSize}
		return
	}
	if cfg.FlashSize == 0 || cfg.DataSize <= cfg.RamStart || cfg.RamStart < IO_START {
		err = errorf(ErrModel, "%v memory layout", cfg.Name)
		return
	}
	if cfg.SpWidth == 16 && !cfg.Regs.SPH.Present() {
		err = errorf(ErrModel, "%v 16-bit stack pointer without SPH", cfg.Name)
		return
	}
	if len(cfg.Vectors) > IRQ_MAX {
		err = errorf(ErrModel, "%v has %d vectors", cfg.Name, len(cfg.Vectors))
		return
	}

	mcu = &Mcu{
		Log:        logrus.WithField("mcu", cfg.Name),
		Name:       cfg.Name,
		Signature:  cfg.Signature,
		Model:      model,
		Flash:      flash[:cfg.FlashSize],
		FlashStart: 0,
		FlashEnd:   cfg.FlashSize - 1,
		PageSize:   cfg.PageSize,
		Data:       data[:cfg.DataSize],
		RamStart:   cfg.RamStart,
		RamEnd:     cfg.DataSize - 1,
		Regs:       cfg.Regs,
		PcBits:     cfg.PcBits,
		SpWidth:    cfg.SpWidth,
		Features:   cfg.Features,
		Fuse:       make([]byte, len(cfg.Fuses)),
		LockBits:   cfg.Lock,
		ioregs:     cfg.IoRegs,
		ioindex:    make([]int16, cfg.RamStart),
		hooks:      make([]IoHook, cfg.RamStart),
		spmBuf:     make([]byte, cfg.PageSize),
		state:      STATE_STOPPED,
	}

	for n := range mcu.ioindex {
		mcu.ioindex[n] = -1
	}
	for n, reg := range cfg.IoRegs {
		if uint32(reg.Offset) < IO_START || uint32(reg.Offset) >= cfg.RamStart {
			err = errorf(ErrModel, "%v register %v at %v", cfg.Name, reg.Name, reg.Offset)
			mcu = nil
			return
		}
		mcu.ioindex[reg.Offset] = int16(n)
	}
	for n := range mcu.spmBuf {
		mcu.spmBuf[n] = 0xff
	}

	mcu.Irq.init(cfg.Vectors, cfg.VectorSize)
	copy(mcu.Fuse, cfg.Fuses)

	if model != nil {
		for n, value := range cfg.Fuses {
			err = model.SetFuse(mcu, n, value)
			if err != nil {
				mcu = nil
				return
			}
		}
		err = model.SetLock(mcu, cfg.Lock)
		if err != nil {
			mcu = nil
			return
		}
	}

	mcu.Reset()

	return
}

// Reset performs a power-on style reset of the core and peripherals.
// SRAM and the register file keep their contents.
func (mcu *Mcu) Reset() {
	for _, reg := range mcu.ioregs {
		mcu.Data[reg.Offset] = reg.Reset
	}
	for n := range mcu.spmBuf {
		mcu.spmBuf[n] = 0xff
	}

	mcu.setSp(mcu.RamEnd)
	mcu.Data[mcu.Regs.SREG] = 0
	mcu.Irq.reset()
	mcu.Pc = mcu.Irq.Reset
	mcu.sleep = SLEEP_NONE

	if mcu.Model != nil {
		mcu.Model.Reset(mcu)
		mcu.Model.ProvideIRQs(mcu)
	}

	if mcu.Verbose {
		mcu.Log.Debugf("reset, pc 0x%05x", mcu.Pc)
	}
}

// ResetSystem resets the device as a reset source would, recording 'cause'
// in MCUSR.
func (mcu *Mcu) ResetSystem(cause byte) {
	mcu.Log.WithField("cause", cause).Info(f("system reset"))

	mcusr := mcu.IoGet(mcu.Regs.MCUSR)
	mcu.Reset()
	mcu.IoSet(mcu.Regs.MCUSR, mcusr|cause)
}

// Logger returns the device's logger.
func (mcu *Mcu) Logger() logrus.FieldLogger {
	return mcu.Log
}

// SetFuse programs a fuse byte through the model.
func (mcu *Mcu) SetFuse(index int, value byte) (err error) {
	if mcu.Model == nil || index < 0 || index >= len(mcu.Fuse) {
		err = errorf(ErrFuse, "fuse %d", index)
		return
	}

	err = mcu.Model.SetFuse(mcu, index, value)
	if err != nil {
		return
	}
	mcu.Fuse[index] = value

	return
}

// SetLock programs the lock bits through the model.
func (mcu *Mcu) SetLock(value byte) (err error) {
	if mcu.Model == nil {
		err = ErrFuse
		return
	}
	return mcu.Model.SetLock(mcu, value)
}

// AddTicker registers a per-cycle tick hook.
func (mcu *Mcu) AddTicker(ticker Ticker) {
	mcu.tickers = append(mcu.tickers, ticker)
}

// SetHook installs CPU access side effects on an I/O register.
func (mcu *Mcu) SetHook(off Offset, hook IoHook) {
	if !off.Present() || uint32(off) >= mcu.RamStart {
		return
	}
	mcu.hooks[off] = hook
}

// IoRegs iterates over the device's I/O register descriptors.
func (mcu *Mcu) IoRegs() iter.Seq[IoReg] {
	return func(yield func(IoReg) bool) {
		for _, reg := range mcu.ioregs {
			if !yield(reg) {
				return
			}
		}
	}
}

// LookupIoReg finds an I/O register descriptor by name.
func (mcu *Mcu) LookupIoReg(name string) (reg IoReg, ok bool) {
	for _, reg = range mcu.ioregs {
		if reg.Name == name {
			ok = true
			return
		}
	}
	reg = IoReg{}
	return
}

// ioreg returns the descriptor at a data address, if any.
func (mcu *Mcu) ioreg(addr uint32) *IoReg {
	if addr >= uint32(len(mcu.ioindex)) {
		return nil
	}
	index := mcu.ioindex[addr]
	if index < 0 {
		return nil
	}
	return &mcu.ioregs[index]
}

// State returns the execution state.
func (mcu *Mcu) State() (state State) {
	mcu.mu.Lock()
	state = mcu.state
	mcu.mu.Unlock()
	return
}

// SetState requests a new execution state. The driver observes it at the
// next instruction boundary.
func (mcu *Mcu) SetState(state State) {
	mcu.mu.Lock()
	mcu.state = state
	mcu.mu.Unlock()
}

// CompareAndSwapState moves to 'next' only if the state is still 'old'.
func (mcu *Mcu) CompareAndSwapState(old, next State) (swapped bool) {
	mcu.mu.Lock()
	if mcu.state == old {
		mcu.state = next
		swapped = true
	}
	mcu.mu.Unlock()
	return
}

// Freq returns the system clock frequency.
func (mcu *Mcu) Freq() (freq Freq) {
	mcu.mu.Lock()
	freq = mcu.freq
	mcu.mu.Unlock()
	return
}

// SetFreq sets the system clock frequency. Use FREQ_UNKNOWN for an
// external clock of unknown rate.
func (mcu *Mcu) SetFreq(freq Freq) {
	mcu.mu.Lock()
	mcu.freq = freq
	mcu.mu.Unlock()
}

// Cycles returns the number of elapsed clock cycles.
func (mcu *Mcu) Cycles() (cycles uint64) {
	mcu.mu.Lock()
	cycles = mcu.cycles
	mcu.mu.Unlock()
	return
}

// Message returns the diagnostic recorded by the last fault.
func (mcu *Mcu) Message() (message string) {
	mcu.mu.Lock()
	message = mcu.message
	mcu.mu.Unlock()
	return
}

// Err returns the error recorded by the last fault.
func (mcu *Mcu) Err() (err error) {
	mcu.mu.Lock()
	err = mcu.err
	mcu.mu.Unlock()
	return
}

// Fault records a fatal error and moves to 'state'.
func (mcu *Mcu) Fault(state State, err error) {
	message := err.Error()
	if len(message) > MESSAGE_MAX {
		message = message[:MESSAGE_MAX]
	}

	mcu.mu.Lock()
	mcu.state = state
	mcu.err = err
	mcu.message = message
	mcu.mu.Unlock()

	mcu.Log.WithField("pc", mcu.Pc).Error(message)
}

// Tick advances the clock by one cycle: the model's peripherals, then the
// registered tick hooks, then the interrupt controller.
func (mcu *Mcu) Tick() {
	mcu.mu.Lock()
	mcu.cycles++
	mcu.mu.Unlock()

	if mcu.Model != nil {
		mcu.Model.Tick(mcu)
	}
	for _, ticker := range mcu.tickers {
		ticker.Tick(mcu)
	}
	mcu.provideIRQs()
}

// now returns the cycle counter. Only the simulation goroutine writes it.
func (mcu *Mcu) now() uint64 {
	return mcu.cycles
}
