package model

import (
	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/io"
)

// ATmega328P data space register addresses.
const (
	m328p_PINB   = avr.Offset(0x23)
	m328p_PINC   = avr.Offset(0x26)
	m328p_PIND   = avr.Offset(0x29)
	m328p_TIFR0  = avr.Offset(0x35)
	m328p_TIFR1  = avr.Offset(0x36)
	m328p_TIFR2  = avr.Offset(0x37)
	m328p_PCIFR  = avr.Offset(0x3b)
	m328p_EIFR   = avr.Offset(0x3c)
	m328p_EIMSK  = avr.Offset(0x3d)
	m328p_GPIOR0 = avr.Offset(0x3e)
	m328p_EECR   = avr.Offset(0x3f)
	m328p_EEDR   = avr.Offset(0x40)
	m328p_GTCCR  = avr.Offset(0x43)
	m328p_TCCR0A = avr.Offset(0x44)
	m328p_GPIOR1 = avr.Offset(0x4a)
	m328p_SPCR   = avr.Offset(0x4c)
	m328p_SPSR   = avr.Offset(0x4d)
	m328p_SPDR   = avr.Offset(0x4e)
	m328p_ACSR   = avr.Offset(0x50)
	m328p_SMCR   = avr.Offset(0x53)
	m328p_MCUSR  = avr.Offset(0x54)
	m328p_MCUCR  = avr.Offset(0x55)
	m328p_SPMCSR = avr.Offset(0x57)
	m328p_SPL    = avr.Offset(0x5d)
	m328p_SPH    = avr.Offset(0x5e)
	m328p_SREG   = avr.Offset(0x5f)
	m328p_WDTCSR = avr.Offset(0x60)
	m328p_CLKPR  = avr.Offset(0x61)
	m328p_PRR    = avr.Offset(0x64)
	m328p_OSCCAL = avr.Offset(0x66)
	m328p_PCICR  = avr.Offset(0x68)
	m328p_EICRA  = avr.Offset(0x69)
	m328p_PCMSK0 = avr.Offset(0x6b)
	m328p_TIMSK0 = avr.Offset(0x6e)
	m328p_TIMSK1 = avr.Offset(0x6f)
	m328p_TIMSK2 = avr.Offset(0x70)
	m328p_ADCL   = avr.Offset(0x78)
	m328p_ADCSRA = avr.Offset(0x7a)
	m328p_TCCR1A = avr.Offset(0x80)
	m328p_TCCR2A = avr.Offset(0xb0)
	m328p_ASSR   = avr.Offset(0xb6)
	m328p_TWBR   = avr.Offset(0xb8)
	m328p_TWCR   = avr.Offset(0xbc)
	m328p_UCSR0A = avr.Offset(0xc0)
)

func init() {
	register("atmega328p", atmega328p)
}

// megaIoRegs returns the registers shared by the ATmega48/88/168/328 family
// and the ATmega640/1280/2560 family, at the same addresses.
func megaIoRegs() (list []avr.IoReg) {
	list = append(list,
		reg("TIFR0", m328p_TIFR0, 0x00, 0xff, 0x00, 0x07),
		reg("TIFR1", m328p_TIFR1, 0x00, 0xff, 0x00, 0x27),
		reg("TIFR2", m328p_TIFR2, 0x00, 0xff, 0x00, 0x07),
		reg("GPIOR0", m328p_GPIOR0, 0x00, 0xff, 0xff, 0x00),
		reg("EECR", m328p_EECR, 0x00, 0xff, 0x3f, 0x00),
	)
	list = append(list, regs(m328p_EEDR, "EEDR", "EEARL", "EEARH", "GTCCR")...)
	list = append(list, regs(m328p_TCCR0A, "TCCR0A", "TCCR0B", "TCNT0", "OCR0A", "OCR0B")...)
	list = append(list, regs(m328p_GPIOR1, "GPIOR1", "GPIOR2", "SPCR")...)
	list = append(list,
		reg("SPSR", m328p_SPSR, 0x00, 0xff, 0x01, 0x00),
		reg("SPDR", m328p_SPDR, 0x00, 0xff, 0xff, 0x00),
		reg("ACSR", m328p_ACSR, 0x00, 0xff, 0xdf, 0x10),
		reg("SMCR", m328p_SMCR, 0x00, 0x0f, 0x0f, 0x00),
		reg("MCUSR", m328p_MCUSR, 0x00, 0x0f, 0x0f, 0x00),
		reg("MCUCR", m328p_MCUCR, 0x00, 0x73, 0x73, 0x00),
		reg("SPMCSR", m328p_SPMCSR, 0x00, 0xff, 0xbf, 0x00),
		reg("SREG", m328p_SREG, 0x00, 0xff, 0xff, 0x00),
		reg("WDTCSR", m328p_WDTCSR, 0x00, 0xff, 0x7f, 0x80),
		reg("CLKPR", m328p_CLKPR, 0x00, 0x8f, 0x8f, 0x00),
		reg("PRR", m328p_PRR, 0x00, 0xff, 0xff, 0x00),
		reg("OSCCAL", m328p_OSCCAL, 0x80, 0xff, 0xff, 0x00),
		reg("PCICR", m328p_PCICR, 0x00, 0xff, 0xff, 0x00),
		reg("EICRA", m328p_EICRA, 0x00, 0xff, 0xff, 0x00),
	)
	list = append(list, regs(m328p_PCMSK0, "PCMSK0", "PCMSK1", "PCMSK2", "TIMSK0", "TIMSK1", "TIMSK2")...)
	list = append(list,
		reg("ADCL", m328p_ADCL, 0x00, 0xff, 0x00, 0x00),
		reg("ADCH", m328p_ADCL+1, 0x00, 0xff, 0x00, 0x00),
		reg("ADCSRA", m328p_ADCSRA, 0x00, 0xff, 0xef, 0x10),
	)
	list = append(list, regs(m328p_ADCSRA+1, "ADCSRB", "ADMUX")...)
	list = append(list, regs(m328p_TCCR1A, "TCCR1A", "TCCR1B", "TCCR1C")...)
	list = append(list, regs(m328p_TCCR1A+4, "TCNT1L", "TCNT1H", "ICR1L", "ICR1H", "OCR1AL", "OCR1AH", "OCR1BL", "OCR1BH")...)
	list = append(list, regs(m328p_TCCR2A, "TCCR2A", "TCCR2B", "TCNT2", "OCR2A", "OCR2B")...)
	list = append(list, regs(m328p_ASSR, "ASSR")...)
	list = append(list, regs(m328p_TWBR, "TWBR", "TWSR", "TWAR", "TWDR", "TWCR", "TWAMR")...)
	list = append(list, usartRegs("0", m328p_UCSR0A)...)
	return
}

// megaFuses is the fuse layout of the ATmega328P and ATmega2560.
func megaFuses(bootSizes [4]uint32) Fuses {
	return Fuses{
		Clock:     FuseBit{Index: 0, Bit: 0},
		ClockBits: 4,
		Decode:    megaClock,
		Ckdiv8:    FuseBit{Index: 0, Bit: 7},
		Bootsz:    FuseBit{Index: 1, Bit: 1},
		BootSizes: bootSizes,
		Bootrst:   FuseBit{Index: 1, Bit: 0},
		Wdton:     FuseBit{Index: 1, Bit: 4},
		Ivsel:     bit(m328p_MCUCR, 1),
	}
}

// megaTimers are TIMER0, TIMER1 and the asynchronous TIMER2, given the pins
// their outputs and clock inputs are on.
func megaTimers(oc0a, oc0b, oc1a, oc1b, oc2a, oc2b io.Pin, t0, t1 avr.RegBit) []TimerTable {
	return []TimerTable{
		{TimerConfig: io.TimerConfig{
			Name:  "TIMER0",
			TCCRA: m328p_TCCR0A,
			TCCRB: m328p_TCCR0A + 1,
			TCNT:  m328p_TCCR0A + 2,
			OCRA:  m328p_TCCR0A + 3,
			OCRB:  m328p_TCCR0A + 4,
			ICR:   avr.OFFSET_ABSENT,
			TOV:   bit(m328p_TIFR0, 0),
			OCFA:  bit(m328p_TIFR0, 1),
			OCFB:  bit(m328p_TIFR0, 2),
			ICF:   avr.NO_BIT,
			OCA:   oc0a,
			OCB:   oc0b,
			T:     t0,
		}},
		wideTimer("TIMER1", m328p_TCCR1A, m328p_TIFR1, oc1a, oc1b, t1),
		{TimerConfig: io.TimerConfig{
			Name:  "TIMER2",
			TCCRA: m328p_TCCR2A,
			TCCRB: m328p_TCCR2A + 1,
			TCNT:  m328p_TCCR2A + 2,
			OCRA:  m328p_TCCR2A + 3,
			OCRB:  m328p_TCCR2A + 4,
			ICR:   avr.OFFSET_ABSENT,
			TOV:   bit(m328p_TIFR2, 0),
			OCFA:  bit(m328p_TIFR2, 1),
			OCFB:  bit(m328p_TIFR2, 2),
			ICF:   avr.NO_BIT,
			OCA:   oc2a,
			OCB:   oc2b,
			T:     avr.NO_BIT,
			Async: true,
		}},
	}
}

// wideTimer is a 16-bit timer/counter whose registers follow TCCRnA in the
// TIMER1 layout.
func wideTimer(name string, tccra avr.Offset, tifr avr.Offset, oca, ocb io.Pin, t avr.RegBit) TimerTable {
	return TimerTable{Wide: true, TimerConfig: io.TimerConfig{
		Name:  name,
		TCCRA: tccra,
		TCCRB: tccra + 1,
		TCNT:  tccra + 4,
		ICR:   tccra + 6,
		OCRA:  tccra + 8,
		OCRB:  tccra + 10,
		TOV:   bit(tifr, 0),
		OCFA:  bit(tifr, 1),
		OCFB:  bit(tifr, 2),
		ICF:   bit(tifr, 5),
		OCA:   oca,
		OCB:   ocb,
		T:     t,
	}}
}

// usartRegs are the registers of USART 'n'.
func usartRegs(n string, ucsra avr.Offset) []avr.IoReg {
	return []avr.IoReg{
		reg("UCSR"+n+"A", ucsra, 0x20, 0xff, 0x03, 0x40),
		reg("UCSR"+n+"B", ucsra+1, 0x00, 0xff, 0xfd, 0x00),
		reg("UCSR"+n+"C", ucsra+2, 0x06, 0xff, 0xff, 0x00),
		reg("UBRR"+n+"L", ucsra+4, 0x00, 0xff, 0xff, 0x00),
		reg("UBRR"+n+"H", ucsra+5, 0x00, 0x0f, 0x0f, 0x00),
		reg("UDR"+n, ucsra+6, 0x00, 0xff, 0xff, 0x00),
	}
}

// usart is a USART whose registers follow UCSRnA.
func usart(name string, ucsra avr.Offset) io.UsartConfig {
	return io.UsartConfig{
		Name:  name,
		UDR:   ucsra + 6,
		UCSRA: ucsra,
		UCSRB: ucsra + 1,
		UCSRC: ucsra + 2,
		UBRRL: ucsra + 4,
		UBRRH: ucsra + 5,
	}
}

// megaRegs are the core registers.
func megaRegs() avr.Regs {
	return avr.Regs{
		SPL:    m328p_SPL,
		SPH:    m328p_SPH,
		SREG:   m328p_SREG,
		RAMPZ:  avr.OFFSET_ABSENT,
		EIND:   avr.OFFSET_ABSENT,
		SPMCSR: m328p_SPMCSR,
		MCUSR:  m328p_MCUSR,
		WDTCSR: m328p_WDTCSR,
		SE:     bit(m328p_SMCR, 0),
		SM:     bit(m328p_SMCR, 1),
	}
}

func atmega328p() *Table {
	ioregs := []avr.IoReg{}
	ioregs = append(ioregs, port("B", m328p_PINB)...)
	ioregs = append(ioregs, port("C", m328p_PINC)...)
	ioregs = append(ioregs, port("D", m328p_PIND)...)
	ioregs = append(ioregs,
		reg("PCIFR", m328p_PCIFR, 0x00, 0xff, 0x00, 0x07),
		reg("EIFR", m328p_EIFR, 0x00, 0xff, 0x00, 0x03),
		reg("EIMSK", m328p_EIMSK, 0x00, 0x03, 0x03, 0x00),
		reg("SPL", m328p_SPL, 0xff, 0xff, 0xff, 0x00),
		reg("SPH", m328p_SPH, 0x08, 0x0f, 0x0f, 0x00),
	)
	ioregs = append(ioregs, megaIoRegs()...)

	vectors := []avr.Vector{
		soft("RESET"),
		vector("INT0", bit(m328p_EIMSK, 0), bit(m328p_EIFR, 0)),
		vector("INT1", bit(m328p_EIMSK, 1), bit(m328p_EIFR, 1)),
		vector("PCINT0", bit(m328p_PCICR, 0), bit(m328p_PCIFR, 0)),
		vector("PCINT1", bit(m328p_PCICR, 1), bit(m328p_PCIFR, 1)),
		vector("PCINT2", bit(m328p_PCICR, 2), bit(m328p_PCIFR, 2)),
		vector("WDT", bit(m328p_WDTCSR, 6), bit(m328p_WDTCSR, 7)),
		vector("TIMER2_COMPA", bit(m328p_TIMSK2, 1), bit(m328p_TIFR2, 1)),
		vector("TIMER2_COMPB", bit(m328p_TIMSK2, 2), bit(m328p_TIFR2, 2)),
		vector("TIMER2_OVF", bit(m328p_TIMSK2, 0), bit(m328p_TIFR2, 0)),
		vector("TIMER1_CAPT", bit(m328p_TIMSK1, 5), bit(m328p_TIFR1, 5)),
		vector("TIMER1_COMPA", bit(m328p_TIMSK1, 1), bit(m328p_TIFR1, 1)),
		vector("TIMER1_COMPB", bit(m328p_TIMSK1, 2), bit(m328p_TIFR1, 2)),
		vector("TIMER1_OVF", bit(m328p_TIMSK1, 0), bit(m328p_TIFR1, 0)),
		vector("TIMER0_COMPA", bit(m328p_TIMSK0, 1), bit(m328p_TIFR0, 1)),
		vector("TIMER0_COMPB", bit(m328p_TIMSK0, 2), bit(m328p_TIFR0, 2)),
		vector("TIMER0_OVF", bit(m328p_TIMSK0, 0), bit(m328p_TIFR0, 0)),
		level("SPI_STC", bit(m328p_SPCR, 7), bit(m328p_SPSR, 7)),
		level("USART_RX", bit(m328p_UCSR0A+1, 7), bit(m328p_UCSR0A, 7)),
		level("USART_UDRE", bit(m328p_UCSR0A+1, 5), bit(m328p_UCSR0A, 5)),
		vector("USART_TX", bit(m328p_UCSR0A+1, 6), bit(m328p_UCSR0A, 6)),
		vector("ADC", bit(m328p_ADCSRA, 3), bit(m328p_ADCSRA, 4)),
		soft("EE_READY"),
		vector("ANALOG_COMP", bit(m328p_ACSR, 3), bit(m328p_ACSR, 4)),
		level("TWI", bit(m328p_TWCR, 0), bit(m328p_TWCR, 7)),
		soft("SPM_READY"),
	}

	return &Table{
		Config: avr.Config{
			Name:       "atmega328p",
			Signature:  [3]byte{0x1e, 0x95, 0x0f},
			FlashSize:  32 * 1024,
			DataSize:   0x900,
			RamStart:   0x100,
			PageSize:   128,
			PcBits:     16,
			SpWidth:    16,
			VectorSize: 4,
			Features:   avr.FEATURES_MEGA,
			Regs:       megaRegs(),
			IoRegs:     ioregs,
			Vectors:    vectors,
			Fuses:      []byte{0x62, 0xd9, 0xff},
			Lock:       0xff,
		},
		Fuses: megaFuses([4]uint32{4096, 2048, 1024, 512}),
		Ports: []PortTable{
			{"B", m328p_PINB, m328p_PINB + 1, m328p_PINB + 2},
			{"C", m328p_PINC, m328p_PINC + 1, m328p_PINC + 2},
			{"D", m328p_PIND, m328p_PIND + 1, m328p_PIND + 2},
		},
		Timers: megaTimers(
			pin(m328p_PIND, 6), pin(m328p_PIND, 5),
			pin(m328p_PINB, 1), pin(m328p_PINB, 2),
			pin(m328p_PINB, 3), pin(m328p_PIND, 3),
			bit(m328p_PIND, 4), bit(m328p_PIND, 5),
		),
		Usarts: []io.UsartConfig{usart("USART0", m328p_UCSR0A)},
		ExtInts: []io.ExtInt{
			{Name: "INT0", Pin: bit(m328p_PIND, 2), Sense: bit(m328p_EICRA, 0), Flag: bit(m328p_EIFR, 0)},
			{Name: "INT1", Pin: bit(m328p_PIND, 3), Sense: bit(m328p_EICRA, 2), Flag: bit(m328p_EIFR, 1)},
		},
		Watchdog: m328p_WDTCSR,
	}
}
