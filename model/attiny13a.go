package model

import (
	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/io"
)

// ATtiny13A data space register addresses.
const (
	t13_ADCSRB = avr.Offset(0x23)
	t13_ADCL   = avr.Offset(0x24)
	t13_ADCSRA = avr.Offset(0x26)
	t13_ACSR   = avr.Offset(0x28)
	t13_DIDR0  = avr.Offset(0x34)
	t13_PCMSK  = avr.Offset(0x35)
	t13_PINB   = avr.Offset(0x36)
	t13_EECR   = avr.Offset(0x3c)
	t13_WDTCR  = avr.Offset(0x41)
	t13_PRR    = avr.Offset(0x45)
	t13_CLKPR  = avr.Offset(0x46)
	t13_GTCCR  = avr.Offset(0x48)
	t13_OCR0B  = avr.Offset(0x49)
	t13_DWDR   = avr.Offset(0x4e)
	t13_TCCR0A = avr.Offset(0x4f)
	t13_BODCR  = avr.Offset(0x50)
	t13_OSCCAL = avr.Offset(0x51)
	t13_TCNT0  = avr.Offset(0x52)
	t13_TCCR0B = avr.Offset(0x53)
	t13_MCUSR  = avr.Offset(0x54)
	t13_MCUCR  = avr.Offset(0x55)
	t13_OCR0A  = avr.Offset(0x56)
	t13_SPMCSR = avr.Offset(0x57)
	t13_TIFR0  = avr.Offset(0x58)
	t13_TIMSK0 = avr.Offset(0x59)
	t13_GIFR   = avr.Offset(0x5a)
	t13_GIMSK  = avr.Offset(0x5b)
	t13_SPL    = avr.Offset(0x5d)
	t13_SREG   = avr.Offset(0x5f)
)

func init() {
	register("attiny13a", attiny13a)
}

// tinyClock decodes the CKSEL field of the ATtiny13A.
func tinyClock(cksel byte, crystal avr.Freq) (source avr.ClockSource, freq avr.Freq) {
	switch cksel {
	case 0x0:
		return avr.CLOCK_EXTERNAL, crystal
	case 0x1:
		return avr.CLOCK_INTERNAL_RC, 4800 * avr.KHZ
	case 0x2:
		return avr.CLOCK_INTERNAL_RC, 9600 * avr.KHZ
	}
	return avr.CLOCK_INTERNAL_128K, 128 * avr.KHZ
}

func attiny13a() *Table {
	ioregs := []avr.IoReg{
		reg("ADCSRB", t13_ADCSRB, 0x00, 0xff, 0x47, 0x00),
		reg("ADCL", t13_ADCL, 0x00, 0xff, 0x00, 0x00),
		reg("ADCH", t13_ADCL+1, 0x00, 0xff, 0x00, 0x00),
		reg("ADCSRA", t13_ADCSRA, 0x00, 0xff, 0xef, 0x10),
		reg("ADMUX", t13_ADCSRA+1, 0x00, 0xff, 0xff, 0x00),
		reg("ACSR", t13_ACSR, 0x00, 0xff, 0xcf, 0x10),
		reg("DIDR0", t13_DIDR0, 0x00, 0x3f, 0x3f, 0x00),
		reg("PCMSK", t13_PCMSK, 0x00, 0x3f, 0x3f, 0x00),
	}
	ioregs = append(ioregs, port("B", t13_PINB)...)
	ioregs = append(ioregs, regs(t13_EECR, "EECR", "EEDR", "EEARL")...)
	ioregs = append(ioregs,
		reg("WDTCR", t13_WDTCR, 0x00, 0xff, 0x7f, 0x80),
		reg("PRR", t13_PRR, 0x00, 0x03, 0x03, 0x00),
		reg("CLKPR", t13_CLKPR, 0x00, 0x8f, 0x8f, 0x00),
		reg("GTCCR", t13_GTCCR, 0x00, 0x81, 0x81, 0x00),
		reg("OCR0B", t13_OCR0B, 0x00, 0xff, 0xff, 0x00),
		reg("DWDR", t13_DWDR, 0x00, 0xff, 0xff, 0x00),
		reg("TCCR0A", t13_TCCR0A, 0x00, 0xf3, 0xf3, 0x00),
		reg("BODCR", t13_BODCR, 0x00, 0x03, 0x03, 0x00),
		reg("OSCCAL", t13_OSCCAL, 0x80, 0x7f, 0x7f, 0x00),
		reg("TCNT0", t13_TCNT0, 0x00, 0xff, 0xff, 0x00),
		reg("TCCR0B", t13_TCCR0B, 0x00, 0xcf, 0xcf, 0x00),
		reg("MCUSR", t13_MCUSR, 0x00, 0x0f, 0x0f, 0x00),
		reg("MCUCR", t13_MCUCR, 0x00, 0x7b, 0x7b, 0x00),
		reg("OCR0A", t13_OCR0A, 0x00, 0xff, 0xff, 0x00),
		reg("SPMCSR", t13_SPMCSR, 0x00, 0x1f, 0x1f, 0x00),
		reg("TIFR0", t13_TIFR0, 0x00, 0x0e, 0x00, 0x0e),
		reg("TIMSK0", t13_TIMSK0, 0x00, 0x0e, 0x0e, 0x00),
		reg("GIFR", t13_GIFR, 0x00, 0x60, 0x00, 0x60),
		reg("GIMSK", t13_GIMSK, 0x00, 0x60, 0x60, 0x00),
		reg("SPL", t13_SPL, 0x9f, 0xff, 0xff, 0x00),
		reg("SREG", t13_SREG, 0x00, 0xff, 0xff, 0x00),
	)

	vectors := []avr.Vector{
		soft("RESET"),
		vector("INT0", bit(t13_GIMSK, 6), bit(t13_GIFR, 6)),
		vector("PCINT0", bit(t13_GIMSK, 5), bit(t13_GIFR, 5)),
		vector("TIM0_OVF", bit(t13_TIMSK0, 1), bit(t13_TIFR0, 1)),
		soft("EE_RDY"),
		vector("ANA_COMP", bit(t13_ACSR, 3), bit(t13_ACSR, 4)),
		vector("TIM0_COMPA", bit(t13_TIMSK0, 2), bit(t13_TIFR0, 2)),
		vector("TIM0_COMPB", bit(t13_TIMSK0, 3), bit(t13_TIFR0, 3)),
		vector("WDT", bit(t13_WDTCR, 6), bit(t13_WDTCR, 7)),
		vector("ADC", bit(t13_ADCSRA, 3), bit(t13_ADCSRA, 4)),
	}

	return &Table{
		Config: avr.Config{
			Name:       "attiny13a",
			Signature:  [3]byte{0x1e, 0x90, 0x07},
			FlashSize:  1024,
			DataSize:   0xa0,
			RamStart:   0x60,
			PageSize:   32,
			PcBits:     16,
			SpWidth:    8,
			VectorSize: 2,
			Features:   avr.FEATURES_TINY,
			Regs: avr.Regs{
				SPL:    t13_SPL,
				SPH:    avr.OFFSET_ABSENT,
				SREG:   t13_SREG,
				RAMPZ:  avr.OFFSET_ABSENT,
				EIND:   avr.OFFSET_ABSENT,
				SPMCSR: t13_SPMCSR,
				MCUSR:  t13_MCUSR,
				WDTCSR: t13_WDTCR,
				SE:     bit(t13_MCUCR, 5),
				SM:     bit(t13_MCUCR, 3),
				SMBits: 2,
			},
			IoRegs:  ioregs,
			Vectors: vectors,
			Fuses:   []byte{0x6a, 0xff},
			Lock:    0xff,
		},
		Fuses: Fuses{
			Clock:     FuseBit{Index: 0, Bit: 0},
			ClockBits: 2,
			Decode:    tinyClock,
			Ckdiv8:    FuseBit{Index: 0, Bit: 4},
			Bootsz:    NO_FUSE,
			Bootrst:   NO_FUSE,
			Wdton:     FuseBit{Index: 0, Bit: 5},
			Ivsel:     avr.NO_BIT,
		},
		Ports: []PortTable{
			{"B", t13_PINB, t13_PINB + 1, t13_PINB + 2},
		},
		Timers: []TimerTable{
			{TimerConfig: io.TimerConfig{
				Name:  "TIMER0",
				TCCRA: t13_TCCR0A,
				TCCRB: t13_TCCR0B,
				TCNT:  t13_TCNT0,
				OCRA:  t13_OCR0A,
				OCRB:  t13_OCR0B,
				ICR:   avr.OFFSET_ABSENT,
				TOV:   bit(t13_TIFR0, 1),
				OCFA:  bit(t13_TIFR0, 2),
				OCFB:  bit(t13_TIFR0, 3),
				ICF:   avr.NO_BIT,
				OCA:   pin(t13_PINB, 0),
				OCB:   pin(t13_PINB, 1),
				T:     bit(t13_PINB, 2),
			}},
		},
		ExtInts: []io.ExtInt{
			{Name: "INT0", Pin: bit(t13_PINB, 1), Sense: bit(t13_MCUCR, 0), Flag: bit(t13_GIFR, 6)},
		},
		Watchdog: t13_WDTCR,
	}
}
