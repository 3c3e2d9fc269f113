package emulator_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/emulator"
	"github.com/ezrec/avrsim/io"
	"github.com/ezrec/avrsim/ipc"
	"github.com/ezrec/avrsim/plugin"
)

// load encodes a program at byte address 'addr'.
func load(emu *emulator.Emulator, addr uint32, program ...avr.Instruction) {
	for _, inst := range program {
		for _, word := range avr.MustEncode(inst) {
			emu.Mcu.Flash[addr] = byte(word)
			emu.Mcu.Flash[addr+1] = byte(word >> 8)
			addr += 2
		}
	}
}

// ioreg returns the data address of a named register.
func ioreg(emu *emulator.Emulator, name string) avr.Offset {
	reg, ok := emu.Mcu.LookupIoReg(name)
	Expect(ok).To(BeTrue(), name)
	return reg.Offset
}

// ioAddr is the I/O space address of a named register.
func ioAddr(emu *emulator.Emulator, name string) uint8 {
	return uint8(ioreg(emu, name) - avr.IO_START)
}

var (
	nop   = avr.Instruction{Op: avr.OP_NOP}
	brk   = avr.Instruction{Op: avr.OP_BREAK}
	sei   = avr.Instruction{Op: avr.OP_BSET, B: 7}
	reti  = avr.Instruction{Op: avr.OP_RETI}
	ret   = avr.Instruction{Op: avr.OP_RET}
	sleep = avr.Instruction{Op: avr.OP_SLEEP}
	loop  = avr.Instruction{Op: avr.OP_RJMP, Off: -1}
)

var _ = Describe("Emulator", func() {
	var emu *emulator.Emulator

	BeforeEach(func() {
		var err error
		emu, err = emulator.New("atmega328p")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(emu.Close()).To(Succeed())
	})

	It("rejects unknown devices", func() {
		_, err := emulator.New("z80")
		Expect(err).To(HaveOccurred())
	})

	It("loads Intel HEX firmware", func() {
		image, err := emu.LoadHex(strings.NewReader(":02000000FFCF30\n:00000001FF\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(image.High).To(BeEquivalentTo(2))

		inst, err := emu.Mcu.Fetch()
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Op).To(Equal(avr.OP_RJMP))
		Expect(inst.Off).To(BeEquivalentTo(-1))
	})

	Describe("Run", func() {
		It("stops at BREAK", func() {
			load(emu, 0, nop, nop, brk)

			Expect(emu.Run()).To(Succeed())
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
			Expect(emu.Mcu.Message()).To(ContainSubstring("0x00004"))
			Expect(emu.Cycles()).To(BeEquivalentTo(3))
		})

		It("stops with a diagnostic on a fault", func() {
			err := emu.Run()

			var er *emulator.ErrRuntime
			Expect(errors.As(err, &er)).To(BeTrue())
			Expect(er.Pc).To(BeEquivalentTo(0))
			Expect(err).To(MatchError(avr.ErrDecode))
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
			Expect(emu.Mcu.Err()).To(MatchError(avr.ErrDecode))
			Expect(emu.Mcu.Message()).NotTo(BeEmpty())
		})

		It("halts after MaxCycles", func() {
			emu.MaxCycles = 100
			load(emu, 0, loop)

			Expect(emu.Run()).To(Succeed())
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_HALT))
			Expect(emu.Cycles()).To(BeEquivalentTo(100))
		})

		It("keeps a stop from the last step at MaxCycles", func() {
			emu.MaxCycles = 10
			load(emu, 0, nop, nop, nop, nop, nop, nop, nop, nop, nop, brk)

			Expect(emu.Run()).To(Succeed())
			Expect(emu.Cycles()).To(BeEquivalentTo(10))
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
			Expect(emu.Mcu.Message()).To(ContainSubstring("break"))
		})

		It("keeps a test failure from the last step at MaxCycles", func() {
			emu.MaxCycles = 10
			load(emu, 0, loop)

			p := plugin.New("check", emu.Device)
			defer p.Close()
			Expect(p.Run(`
function tick(cycle)
	if cycle >= 10 then
		avr.fail("boom")
	end
end
`)).To(Succeed())
			emu.AddTicker(p)

			err := emu.Run()
			var ef *emulator.ErrTestFail
			Expect(errors.As(err, &ef)).To(BeTrue())
			Expect(ef.Message).To(ContainSubstring("boom"))
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_TEST_FAIL))
		})

		It("stops when asked by another goroutine", func() {
			load(emu, 0, loop)

			done := make(chan error)
			go func() {
				done <- emu.Run()
			}()

			Eventually(emu.Cycles).Should(BeNumerically(">", 1000))
			emu.Mcu.SetState(avr.STATE_STOPPED)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("reports a test failure", func() {
			load(emu, 0, loop)
			emu.Mcu.Fault(avr.STATE_TEST_FAIL, errors.New("expected 0x55"))

			err := emu.Run()
			var ef *emulator.ErrTestFail
			Expect(errors.As(err, &ef)).To(BeTrue())
			Expect(ef.Message).To(Equal("expected 0x55"))
		})
	})

	Describe("Stepping", func() {
		It("executes one instruction per STEP", func() {
			load(emu, 0, nop, nop)
			emu.Mcu.SetState(avr.STATE_STEP)

			done, err := emu.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeFalse())
			Expect(emu.Pc()).To(BeEquivalentTo(2))
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))

			done, err = emu.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(done).To(BeTrue())
			Expect(emu.Pc()).To(BeEquivalentTo(2))
		})

		It("runs a whole call on STEP_OVER", func() {
			load(emu, 0,
				avr.Instruction{Op: avr.OP_RCALL, Off: 2},
				brk,
				nop,
				nop,
				nop,
				ret,
			)
			sp := emu.Mcu.Sp()
			emu.Mcu.SetState(avr.STATE_STEP_OVER)

			_, err := emu.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(emu.Pc()).To(BeEquivalentTo(2))
			Expect(emu.Mcu.Sp()).To(Equal(sp))
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
		})

		It("steps over plain instructions one at a time", func() {
			load(emu, 0, nop, nop)
			emu.Mcu.SetState(avr.STATE_STEP_OVER)

			_, err := emu.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(emu.Pc()).To(BeEquivalentTo(2))
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
		})
	})

	Describe("Interrupts", func() {
		var vector uint32

		BeforeEach(func() {
			v, ok := emu.Mcu.Irq.Lookup("TIMER0_OVF")
			Expect(ok).To(BeTrue())
			vector = emu.Mcu.Irq.Address(v)
			load(emu, vector, reti)

			// Overflow interrupt enabled, timer clocked at clk/1.
			emu.Mcu.IoSet(ioreg(emu, "TIMSK0"), 0x01)
			emu.Mcu.IoSet(ioreg(emu, "TCCR0B"), 0x01)
		})

		It("enters the handler and returns with RETI", func() {
			load(emu, 0, sei, loop)
			sp := emu.Mcu.Sp()

			for emu.Pc() != vector {
				_, err := emu.Tick()
				Expect(err).NotTo(HaveOccurred())
				Expect(emu.Cycles()).To(BeNumerically("<", 1000))
			}
			Expect(emu.Mcu.Sp()).To(Equal(sp - 2))
			Expect(emu.Mcu.InterruptsEnabled()).To(BeFalse())

			_, err := emu.Tick()
			Expect(err).NotTo(HaveOccurred())
			Expect(emu.Pc()).To(BeEquivalentTo(2))
			Expect(emu.Mcu.Sp()).To(Equal(sp))
			Expect(emu.Mcu.InterruptsEnabled()).To(BeTrue())
		})

		It("traps instead of entering the handler", func() {
			load(emu, 0, sei, loop)
			emu.Mcu.Irq.TrapAtIsr = true

			err := emu.Run()
			Expect(err).To(MatchError(avr.ErrTrap))
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
			Expect(emu.Mcu.Message()).To(ContainSubstring("TIMER0_OVF"))
		})

		It("wakes from sleep", func() {
			load(emu, 0,
				sei,
				avr.Instruction{Op: avr.OP_LDI, Rd: 16, K: 0x01},
				avr.Instruction{Op: avr.OP_OUT, A: ioAddr(emu, "SMCR"), Rr: 16},
				sleep,
				brk,
			)

			Expect(emu.Run()).To(Succeed())
			Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
			Expect(emu.Mcu.Message()).To(ContainSubstring("break"))
			Expect(emu.Cycles()).To(BeNumerically(">", 256))
		})
	})

	It("halts when sleeping with interrupts disabled", func() {
		load(emu, 0,
			avr.Instruction{Op: avr.OP_LDI, Rd: 16, K: 0x01},
			avr.Instruction{Op: avr.OP_OUT, A: ioAddr(emu, "SMCR"), Rr: 16},
			sleep,
			brk,
		)

		Expect(emu.Run()).To(Succeed())
		Expect(emu.Mcu.State()).To(Equal(avr.STATE_HALT))
		Expect(emu.Mcu.Err()).To(MatchError(emulator.ErrSleepForever))
		Expect(emu.Pc()).To(BeEquivalentTo(6))
	})

	It("wakes from power-down with interrupts disabled on a watchdog reset", func() {
		emu.MaxCycles = 100000
		load(emu, 0,
			avr.Instruction{Op: avr.OP_IN, Rd: 17, A: ioAddr(emu, "MCUSR")},
			avr.Instruction{Op: avr.OP_SBRC, Rr: 17, B: 3},
			brk,
			avr.Instruction{Op: avr.OP_LDI, Rd: 16, K: io.WDTCSR_WDE},
			avr.Instruction{Op: avr.OP_STS, Addr: uint32(ioreg(emu, "WDTCSR")), Rr: 16},
			avr.Instruction{Op: avr.OP_LDI, Rd: 16, K: 0x05},
			avr.Instruction{Op: avr.OP_OUT, A: ioAddr(emu, "SMCR"), Rr: 16},
			sleep,
		)

		Expect(emu.Run()).To(Succeed())
		Expect(emu.Mcu.State()).To(Equal(avr.STATE_STOPPED))
		Expect(emu.Mcu.Message()).To(ContainSubstring("break"))
		Expect(emu.Mcu.IoGet(ioreg(emu, "MCUSR")) & io.MCUSR_WDRF).NotTo(BeZero())
		// 16ms of watchdog timeout at 1MHz.
		Expect(emu.Cycles()).To(BeNumerically(">", 16000))
	})

	It("reports the median simulated speed", func() {
		Expect(emu.Speed()).To(Equal(avr.FREQ_UNKNOWN))

		emu.MaxCycles = 4 * emulator.SPEED_SAMPLE_CYCLES
		load(emu, 0, loop)

		Expect(emu.Run()).To(Succeed())
		Expect(emu.Speed()).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Status events", func() {
	It("publishes start, port changes and end", func() {
		rec := &ipc.Recorder{}
		emu, err := emulator.New("atmega328p", emulator.WithPublisher(rec))
		Expect(err).NotTo(HaveOccurred())

		load(emu, 0,
			avr.Instruction{Op: avr.OP_LDI, Rd: 16, K: 0x20},
			avr.Instruction{Op: avr.OP_OUT, A: ioAddr(emu, "DDRB"), Rr: 16},
			avr.Instruction{Op: avr.OP_OUT, A: ioAddr(emu, "PORTB"), Rr: 16},
			brk,
		)
		Expect(emu.Run()).To(Succeed())
		Expect(emu.Close()).To(Succeed())

		messages := rec.Messages()
		Expect(len(messages)).To(BeNumerically(">=", 3))

		first := messages[0]
		Expect(first.Kind).To(Equal(ipc.KIND_START))
		Expect(first.Mcu).To(Equal("atmega328p"))

		last := messages[len(messages)-1]
		Expect(last.Kind).To(Equal(ipc.KIND_END))
		Expect(last.State).To(Equal("stopped"))
		Expect(last.Cycle).To(BeEquivalentTo(4))

		Expect(messages).To(ContainElement(SatisfyAll(
			HaveField("Kind", ipc.KIND_PORT),
			HaveField("Port", "B"),
			HaveField("Out", byte(0x20)),
			HaveField("Ddr", byte(0x20)),
			HaveField("Pin", byte(0x20)),
		)))

		Expect(rec.Publish(ipc.Message{})).To(MatchError(ipc.ErrClosed))
	})

	It("publishes the end of a run with a long diagnostic", func() {
		rec := &ipc.Recorder{}
		emu, err := emulator.New("atmega328p", emulator.WithPublisher(rec))
		Expect(err).NotTo(HaveOccurred())

		message := strings.Repeat("<", avr.MESSAGE_MAX)
		emu.Mcu.Fault(avr.STATE_TEST_FAIL, errors.New(message))
		Expect(emu.Run()).To(HaveOccurred())
		Expect(emu.Close()).To(Succeed())

		messages := rec.Messages()
		Expect(messages).NotTo(BeEmpty())
		last := messages[len(messages)-1]
		Expect(last.Kind).To(Equal(ipc.KIND_END))
		Expect(last.State).To(Equal("test-fail"))
		Expect(last.Message).To(Equal(message))
	})

	It("closes twice without error", func() {
		rec := &ipc.Recorder{}
		emu, err := emulator.New("attiny13a", emulator.WithPublisher(rec), emulator.WithMaxCycles(10))
		Expect(err).NotTo(HaveOccurred())
		Expect(emu.MaxCycles).To(BeEquivalentTo(10))

		Expect(emu.Close()).To(Succeed())
		Expect(emu.Close()).To(Succeed())
	})
})

var _ = Describe("Options", func() {
	It("enables verbose logging", func() {
		emu, err := emulator.New("attiny13a", emulator.WithVerbose(true))
		Expect(err).NotTo(HaveOccurred())
		Expect(emu.Verbose).To(BeTrue())
		Expect(emu.Mcu.Verbose).To(BeTrue())
	})
})
