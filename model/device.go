package model

import (
	stdio "io"
	"iter"
	"slices"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/internal"
	"github.com/ezrec/avrsim/io"
)

// Device is a simulated device: its core and its peripherals.
type Device struct {
	Mcu   *avr.Mcu
	Table *Table

	Ports    []*io.Port
	ExtInts  []*io.ExtInt
	Timers   []*io.Timer
	Usarts   []*io.Usart
	Watchdog *io.Watchdog

	crystal     avr.Freq
	peripherals []io.Peripheral
}

var _ avr.Model = (*Device)(nil)

// New creates a device by name, backed by the caller's flash and data
// buffers.
func New(name string, flash []byte, data []byte) (dev *Device, err error) {
	table, err := Lookup(name)
	if err != nil {
		return
	}
	return NewFromTable(table, flash, data)
}

// NewFromTable creates a device from a static table.
func NewFromTable(table *Table, flash []byte, data []byte) (dev *Device, err error) {
	dev = &Device{Table: table}

	for _, pt := range table.Ports {
		dev.Ports = append(dev.Ports, &io.Port{
			Name: pt.Name,
			PIN:  pt.PIN,
			DDR:  pt.DDR,
			PORT: pt.PORT,
		})
	}
	for _, ei := range table.ExtInts {
		dev.ExtInts = append(dev.ExtInts, &ei)
	}
	for _, tt := range table.Timers {
		if tt.Wide {
			dev.Timers = append(dev.Timers, io.NewTimer16(tt.TimerConfig))
		} else {
			dev.Timers = append(dev.Timers, io.NewTimer8(tt.TimerConfig))
		}
	}
	for _, uc := range table.Usarts {
		dev.Usarts = append(dev.Usarts, io.NewUsart(uc, nil))
	}
	if table.Watchdog.Present() {
		dev.Watchdog = &io.Watchdog{Name: "WDT", WDTCSR: table.Watchdog}
	}

	dev.peripherals = slices.Collect(dev.Peripherals())

	mcu, err := avr.New(table.Config, dev, flash, data)
	if err != nil {
		dev = nil
		return
	}
	dev.Mcu = mcu

	if dev.Watchdog != nil {
		mcu.OnWdr(dev.Watchdog.Restart)
	}

	return
}

// Peripherals iterates over the device's peripherals in tick order: pins
// are sampled before the units that watch them.
func (dev *Device) Peripherals() iter.Seq[io.Peripheral] {
	seqs := []iter.Seq[io.Peripheral]{
		peripherals(dev.Ports),
		peripherals(dev.ExtInts),
		peripherals(dev.Timers),
		peripherals(dev.Usarts),
	}
	if dev.Watchdog != nil {
		seqs = append(seqs, slices.Values([]io.Peripheral{dev.Watchdog}))
	}
	return internal.IterSeqConcat(seqs...)
}

func peripherals[T io.Peripheral](list []T) iter.Seq[io.Peripheral] {
	return func(yield func(io.Peripheral) bool) {
		for _, p := range list {
			if !yield(p) {
				return
			}
		}
	}
}

// Port returns a GPIO port by name, "B" for PORTB.
func (dev *Device) Port(name string) (port *io.Port, ok bool) {
	for _, port = range dev.Ports {
		if port.Name == name {
			ok = true
			return
		}
	}
	port = nil
	return
}

// OnPortChange sets the receiver of every port's changes.
func (dev *Device) OnPortChange(fn func(change io.PortChange)) {
	for _, port := range dev.Ports {
		port.OnChange = fn
	}
}

// SetConsole directs the transmit output of USART 'n'.
func (dev *Device) SetConsole(n int, output stdio.Writer) (ok bool) {
	if n < 0 || n >= len(dev.Usarts) {
		return
	}
	dev.Usarts[n].SetOutput(output)
	ok = true
	return
}

// SetCrystal sets the frequency of the external clock or crystal, and
// re-derives the CPU clock.
func (dev *Device) SetCrystal(freq avr.Freq) {
	dev.crystal = freq
	dev.updateClock(dev.Mcu)
}

// SetFuse re-derives the clock, boot section and reset vector.
func (dev *Device) SetFuse(mcu *avr.Mcu, index int, value byte) (err error) {
	if index < 0 || index >= len(mcu.Fuse) {
		err = avr.ErrFuse
		return
	}

	mcu.Fuse[index] = value

	dev.updateClock(mcu)
	dev.updateBoot(mcu)

	return
}

// SetLock records the lock bits.
func (dev *Device) SetLock(mcu *avr.Mcu, value byte) (err error) {
	mcu.LockBits = value
	return
}

func (dev *Device) updateClock(mcu *avr.Mcu) {
	fuses := dev.Table.Fuses
	if !fuses.Clock.Present() || fuses.Decode == nil {
		return
	}

	cksel := (mcu.Fuse[fuses.Clock.Index] >> fuses.Clock.Bit) & (1<<fuses.ClockBits - 1)
	source, freq := fuses.Decode(cksel, dev.crystal)
	if fuses.Ckdiv8.Programmed(mcu.Fuse) {
		freq /= 8
	}

	mcu.Clock = source
	mcu.SetFreq(freq)
}

func (dev *Device) updateBoot(mcu *avr.Mcu) {
	fuses := dev.Table.Fuses
	if !fuses.Bootsz.Present() {
		mcu.Boot = avr.Bootloader{}
		mcu.Irq.Reset = 0
		return
	}

	bootsz := (mcu.Fuse[fuses.Bootsz.Index] >> fuses.Bootsz.Bit) & 0x03
	size := fuses.BootSizes[bootsz]
	flashSize := uint32(len(mcu.Flash))
	mcu.Boot = avr.Bootloader{
		Start: flashSize - size,
		End:   flashSize - 1,
		Size:  size,
	}

	mcu.Irq.Reset = 0
	if fuses.Bootrst.Programmed(mcu.Fuse) {
		mcu.Irq.Reset = mcu.Boot.Start
	}
}

// ResetArmed is true if a reset can restart the device without the CPU: the
// watchdog in system reset mode, or forced on by WDTON.
func (dev *Device) ResetArmed() bool {
	mcu := dev.Mcu
	if dev.Watchdog == nil || !mcu.Freq().Known() {
		return false
	}
	if dev.Table.Fuses.Wdton.Programmed(mcu.Fuse) {
		return true
	}
	return mcu.IoGet(dev.Watchdog.WDTCSR)&io.WDTCSR_WDE != 0
}

// Reset returns every peripheral to its reset state.
func (dev *Device) Reset(mcu *avr.Mcu) {
	for _, p := range dev.peripherals {
		p.Reset(mcu)
	}
	dev.updateBase(mcu)
}

// Tick advances the peripherals whose clock runs in the current sleep mode.
func (dev *Device) Tick(mcu *avr.Mcu) {
	if dev.Watchdog != nil && dev.Table.Fuses.Wdton.Programmed(mcu.Fuse) {
		mcu.IoSet(dev.Watchdog.WDTCSR, mcu.IoGet(dev.Watchdog.WDTCSR)|io.WDTCSR_WDE)
	}

	mode := mcu.SleepMode()
	for _, p := range dev.peripherals {
		if p.Clocked(mode) {
			p.Tick(mcu)
		}
	}
}

// ProvideIRQs refreshes the interrupt controller from the register file.
func (dev *Device) ProvideIRQs(mcu *avr.Mcu) {
	dev.updateBase(mcu)
	mcu.UpdateIrqs()
}

// updateBase moves the vector table into the boot section while IVSEL is
// set.
func (dev *Device) updateBase(mcu *avr.Mcu) {
	mcu.Irq.Base = 0
	if mcu.IoBit(dev.Table.Fuses.Ivsel) {
		mcu.Irq.Base = mcu.Boot.Start
	}
}
