package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/avrsim/avr"
)

// newTestDevice creates a device with zeroed flash, which runs as NOPs.
func newTestDevice(t *testing.T, name string) *Device {
	table, err := Lookup(name)
	require.NoError(t, err)

	dev, err := NewFromTable(table,
		make([]byte, table.Config.FlashSize),
		make([]byte, table.Config.DataSize))
	require.NoError(t, err)

	dev.Mcu.SetState(avr.STATE_RUNNING)
	return dev
}

func TestNames(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"atmega2560", "atmega328p", "attiny13a"}, Names())

	_, err := Lookup("z80")
	assert.True(errors.Is(err, avr.ErrModel))
	assert.Equal(ErrUnknownModel{Name: "z80"}, err)

	_, err = New("z80", nil, nil)
	assert.Error(err)
}

func TestTables(t *testing.T) {
	table := []struct {
		name    string
		vectors int
		ports   int
		timers  int
		usarts  int
		extints int
	}{
		{"atmega328p", 26, 3, 3, 1, 2},
		{"atmega2560", 57, 11, 6, 4, 8},
		{"attiny13a", 10, 1, 1, 0, 1},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			dev := newTestDevice(t, entry.name)
			assert.Equal(entry.vectors, dev.Mcu.Irq.Count())
			assert.Len(dev.Ports, entry.ports)
			assert.Len(dev.Timers, entry.timers)
			assert.Len(dev.Usarts, entry.usarts)
			assert.Len(dev.ExtInts, entry.extints)
			assert.NotNil(dev.Watchdog)

			v, ok := dev.Mcu.Irq.Lookup("RESET")
			assert.True(ok)
			assert.Equal(0, v)

			// Every vector name is unique.
			seen := map[string]bool{}
			for _, vec := range dev.Mcu.Irq.Vectors {
				assert.False(seen[vec.Name], vec.Name)
				seen[vec.Name] = true
			}
		})
	}
}

func TestFuses_BootSection(t *testing.T) {
	table := []struct {
		name   string
		high   byte
		bootsz [4]uint32
	}{
		{"atmega328p", 0xd9, [4]uint32{4096, 2048, 1024, 512}},
		{"atmega2560", 0x99, [4]uint32{8192, 4096, 2048, 1024}},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			dev := newTestDevice(t, entry.name)
			mcu := dev.Mcu
			flashSize := uint32(len(mcu.Flash))

			for bootsz := range byte(4) {
				high := (entry.high &^ 0x06) | bootsz<<1
				require.NoError(t, mcu.SetFuse(1, high))

				boot := mcu.Boot
				assert.Equal(entry.bootsz[bootsz], boot.Size)
				assert.Equal(flashSize-1, boot.End)
				assert.Equal(boot.Size, boot.End-boot.Start+1)
				assert.Equal(uint32(0), mcu.Irq.Reset)

				// BOOTRST programmed moves the reset vector.
				require.NoError(t, mcu.SetFuse(1, high&^0x01))
				assert.Equal(boot.Start, mcu.Irq.Reset)

				mcu.Reset()
				assert.Equal(boot.Start, mcu.Pc)
			}
		})
	}
}

func TestFuses_NoBootSection(t *testing.T) {
	assert := assert.New(t)

	dev := newTestDevice(t, "attiny13a")
	assert.Equal(avr.Bootloader{}, dev.Mcu.Boot)
	assert.Equal(uint32(0), dev.Mcu.Irq.Reset)
}

func TestFuses_Clock(t *testing.T) {
	assert := assert.New(t)

	dev := newTestDevice(t, "atmega328p")
	mcu := dev.Mcu

	// Factory default: internal 8MHz RC, divided by 8.
	assert.Equal(avr.CLOCK_INTERNAL_RC, mcu.Clock)
	assert.Equal(avr.MHZ, mcu.Freq())

	require.NoError(t, mcu.SetFuse(0, 0xe2))
	assert.Equal(8*avr.MHZ, mcu.Freq())

	require.NoError(t, mcu.SetFuse(0, 0xe3))
	assert.Equal(avr.CLOCK_INTERNAL_128K, mcu.Clock)
	assert.Equal(128*avr.KHZ, mcu.Freq())

	require.NoError(t, mcu.SetFuse(0, 0xe4))
	assert.Equal(avr.CLOCK_LOW_FREQ_XTAL, mcu.Clock)
	assert.Equal(avr.Freq(32768), mcu.Freq())

	// A crystal runs at whatever it was given.
	require.NoError(t, mcu.SetFuse(0, 0xff))
	assert.Equal(avr.CLOCK_XTAL, mcu.Clock)
	assert.Equal(avr.FREQ_UNKNOWN, mcu.Freq())

	dev.SetCrystal(16 * avr.MHZ)
	assert.Equal(16*avr.MHZ, mcu.Freq())

	require.NoError(t, mcu.SetFuse(0, 0x7f))
	assert.Equal(2*avr.MHZ, mcu.Freq())

	require.NoError(t, mcu.SetFuse(0, 0xe0))
	assert.Equal(avr.CLOCK_EXTERNAL, mcu.Clock)
	assert.Equal(16*avr.MHZ, mcu.Freq())
}

func TestFuses_TinyClock(t *testing.T) {
	assert := assert.New(t)

	dev := newTestDevice(t, "attiny13a")
	mcu := dev.Mcu

	assert.Equal(1200*avr.KHZ, mcu.Freq())

	require.NoError(t, mcu.SetFuse(0, 0x79))
	assert.Equal(4800*avr.KHZ, mcu.Freq())

	require.NoError(t, mcu.SetFuse(0, 0x7b))
	assert.Equal(avr.CLOCK_INTERNAL_128K, mcu.Clock)
	assert.Equal(128*avr.KHZ, mcu.Freq())
}

func TestFuses_Invalid(t *testing.T) {
	assert := assert.New(t)

	dev := newTestDevice(t, "atmega328p")

	err := dev.Mcu.SetFuse(3, 0xff)
	assert.True(errors.Is(err, avr.ErrFuse))

	err = dev.SetFuse(dev.Mcu, -1, 0xff)
	assert.True(errors.Is(err, avr.ErrFuse))

	assert.NoError(dev.Mcu.SetLock(0xfc))
	assert.Equal(byte(0xfc), dev.Mcu.LockBits)
}

func TestFuseBit(t *testing.T) {
	assert := assert.New(t)

	fuses := []byte{0xfe, 0x7f}

	assert.True(FuseBit{Index: 0, Bit: 0}.Programmed(fuses))
	assert.False(FuseBit{Index: 0, Bit: 1}.Programmed(fuses))
	assert.True(FuseBit{Index: 1, Bit: 7}.Programmed(fuses))
	assert.False(FuseBit{Index: 2, Bit: 0}.Programmed(fuses))
	assert.False(NO_FUSE.Programmed(fuses))
	assert.False(NO_FUSE.Present())
}
