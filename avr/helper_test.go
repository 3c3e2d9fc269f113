package avr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	test_SPL    = Offset(0x5d)
	test_SPH    = Offset(0x5e)
	test_SREG   = Offset(0x5f)
	test_TIFR   = Offset(0x35)
	test_TIMSK  = Offset(0x6e)
	test_PORTB  = Offset(0x25)
	test_PINB   = Offset(0x23)
	test_MASKED = Offset(0x4c)
	test_SMCR   = Offset(0x53)
	test_SPMCSR = Offset(0x57)
)

// testConfig is a small ATmega-like device.
func testConfig() Config {
	return Config{
		Name:       "test",
		Signature:  [3]byte{0x1e, 0x00, 0x00},
		FlashSize:  0x1000,
		DataSize:   0x300,
		RamStart:   0x100,
		PageSize:   64,
		PcBits:     16,
		SpWidth:    16,
		VectorSize: 4,
		Features:   FEATURES_MEGA,
		Regs: Regs{
			SPL:    test_SPL,
			SPH:    test_SPH,
			SREG:   test_SREG,
			RAMPZ:  OFFSET_ABSENT,
			EIND:   OFFSET_ABSENT,
			SPMCSR: test_SPMCSR,
			MCUSR:  OFFSET_ABSENT,
			WDTCSR: OFFSET_ABSENT,
			SE:     RegBit{test_SMCR, 0},
			SM:     RegBit{test_SMCR, 1},
		},
		IoRegs: []IoReg{
			{Name: "PINB", Offset: test_PINB, ReadMask: 0xff, ClearMask: 0xff},
			{Name: "PORTB", Offset: test_PORTB, ReadMask: 0xff, WriteMask: 0xff},
			{Name: "TIFR", Offset: test_TIFR, ReadMask: 0x07, ClearMask: 0x07},
			{Name: "MASKED", Offset: test_MASKED, Reset: 0xa0, ReadMask: 0x3f, WriteMask: 0x0f},
			{Name: "SMCR", Offset: test_SMCR, ReadMask: 0x0f, WriteMask: 0x0f},
			{Name: "SPMCSR", Offset: test_SPMCSR, ReadMask: 0xff, WriteMask: 0xbf},
			{Name: "SPL", Offset: test_SPL, Reset: 0xff, ReadMask: 0xff, WriteMask: 0xff},
			{Name: "SPH", Offset: test_SPH, Reset: 0x02, ReadMask: 0xff, WriteMask: 0xff},
			{Name: "SREG", Offset: test_SREG, ReadMask: 0xff, WriteMask: 0xff},
			{Name: "TIMSK", Offset: test_TIMSK, ReadMask: 0x07, WriteMask: 0x07},
		},
		Vectors: []Vector{
			{Name: "RESET", Enable: NO_BIT, Flag: NO_BIT},
			{Name: "OVF", Enable: RegBit{test_TIMSK, 0}, Flag: RegBit{test_TIFR, 0}},
			{Name: "COMPA", Enable: RegBit{test_TIMSK, 1}, Flag: RegBit{test_TIFR, 1}},
			{Name: "LEVEL", Enable: RegBit{test_TIMSK, 2}, Flag: RegBit{test_TIFR, 2}, KeepFlag: true},
			{Name: "SOFT", Enable: NO_BIT, Flag: NO_BIT},
		},
	}
}

// testModel refreshes interrupts and counts ticks.
type testModel struct {
	ticks int
}

func (tm *testModel) SetFuse(mcu *Mcu, index int, value byte) error {
	if index != 0 {
		return ErrFuse
	}
	return nil
}

func (tm *testModel) SetLock(mcu *Mcu, value byte) error { return nil }
func (tm *testModel) Reset(mcu *Mcu)                     { tm.ticks = 0 }
func (tm *testModel) Tick(mcu *Mcu)                      { tm.ticks++ }
func (tm *testModel) ProvideIRQs(mcu *Mcu)               { mcu.UpdateIrqs() }

var _ Model = (*testModel)(nil)

// newTestMcu creates a test device loaded with a program at address 0.
func newTestMcu(t *testing.T, program ...Instruction) (mcu *Mcu, model *testModel) {
	cfg := testConfig()
	cfg.Fuses = []byte{0xff}
	model = &testModel{}

	mcu, err := New(cfg, model, make([]byte, cfg.FlashSize), make([]byte, cfg.DataSize))
	require.NoError(t, err)

	load(mcu, 0, program...)
	mcu.SetState(STATE_RUNNING)

	return
}

// load encodes instructions into program memory at a byte address.
func load(mcu *Mcu, addr uint32, program ...Instruction) uint32 {
	for _, inst := range program {
		for _, word := range MustEncode(inst) {
			mcu.Flash[addr] = byte(word)
			mcu.Flash[addr+1] = byte(word >> 8)
			addr += 2
		}
	}
	return addr
}

// step executes instructions, failing the test on error.
func step(t *testing.T, mcu *Mcu, count int) (cycles int) {
	for range count {
		n, err := mcu.Step()
		require.NoError(t, err)
		cycles += n
	}
	return
}
