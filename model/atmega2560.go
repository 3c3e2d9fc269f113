package model

import (
	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/io"
)

// ATmega2560 registers beyond those it shares with the ATmega328P.
const (
	m2560_PINA   = avr.Offset(0x20)
	m2560_PINE   = avr.Offset(0x2c)
	m2560_PINF   = avr.Offset(0x2f)
	m2560_PING   = avr.Offset(0x32)
	m2560_TIFR3  = avr.Offset(0x38)
	m2560_TIFR4  = avr.Offset(0x39)
	m2560_TIFR5  = avr.Offset(0x3a)
	m2560_RAMPZ  = avr.Offset(0x5b)
	m2560_EIND   = avr.Offset(0x5c)
	m2560_EICRB  = avr.Offset(0x6a)
	m2560_TIMSK3 = avr.Offset(0x71)
	m2560_TIMSK4 = avr.Offset(0x72)
	m2560_TIMSK5 = avr.Offset(0x73)
	m2560_OCR1C  = avr.Offset(0x8c)
	m2560_TCCR3A = avr.Offset(0x90)
	m2560_TCCR4A = avr.Offset(0xa0)
	m2560_UCSR1A = avr.Offset(0xc8)
	m2560_UCSR2A = avr.Offset(0xd0)
	m2560_PINH   = avr.Offset(0x100)
	m2560_PINJ   = avr.Offset(0x103)
	m2560_PINK   = avr.Offset(0x106)
	m2560_PINL   = avr.Offset(0x109)
	m2560_TCCR5A = avr.Offset(0x120)
	m2560_UCSR3A = avr.Offset(0x130)
)

func init() {
	register("atmega2560", atmega2560)
}

// wideTimerRegs are the registers of a 16-bit timer with three compare
// units.
func wideTimerRegs(n string, tccra avr.Offset) (list []avr.IoReg) {
	list = append(list, regs(tccra, "TCCR"+n+"A", "TCCR"+n+"B", "TCCR"+n+"C")...)
	list = append(list, regs(tccra+4,
		"TCNT"+n+"L", "TCNT"+n+"H",
		"ICR"+n+"L", "ICR"+n+"H",
		"OCR"+n+"AL", "OCR"+n+"AH",
		"OCR"+n+"BL", "OCR"+n+"BH",
		"OCR"+n+"CL", "OCR"+n+"CH")...)
	return
}

// wideTimerVectors are the interrupt vectors of a 16-bit timer with three
// compare units.
func wideTimerVectors(n string, timsk avr.Offset, tifr avr.Offset) []avr.Vector {
	return []avr.Vector{
		vector("TIMER"+n+"_CAPT", bit(timsk, 5), bit(tifr, 5)),
		vector("TIMER"+n+"_COMPA", bit(timsk, 1), bit(tifr, 1)),
		vector("TIMER"+n+"_COMPB", bit(timsk, 2), bit(tifr, 2)),
		vector("TIMER"+n+"_COMPC", bit(timsk, 3), bit(tifr, 3)),
		vector("TIMER"+n+"_OVF", bit(timsk, 0), bit(tifr, 0)),
	}
}

// usartVectors are the interrupt vectors of USART 'n'.
func usartVectors(n string, ucsra avr.Offset) []avr.Vector {
	return []avr.Vector{
		level("USART"+n+"_RX", bit(ucsra+1, 7), bit(ucsra, 7)),
		level("USART"+n+"_UDRE", bit(ucsra+1, 5), bit(ucsra, 5)),
		vector("USART"+n+"_TX", bit(ucsra+1, 6), bit(ucsra, 6)),
	}
}

func atmega2560() *Table {
	ioregs := []avr.IoReg{}
	for n, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		ioregs = append(ioregs, port(name, m2560_PINA+avr.Offset(3*n))...)
	}
	for n, name := range []string{"H", "J", "K", "L"} {
		ioregs = append(ioregs, port(name, m2560_PINH+avr.Offset(3*n))...)
	}
	ioregs = append(ioregs,
		reg("TIFR3", m2560_TIFR3, 0x00, 0xff, 0x00, 0x2f),
		reg("TIFR4", m2560_TIFR4, 0x00, 0xff, 0x00, 0x2f),
		reg("TIFR5", m2560_TIFR5, 0x00, 0xff, 0x00, 0x2f),
		reg("PCIFR", m328p_PCIFR, 0x00, 0xff, 0x00, 0x07),
		reg("EIFR", m328p_EIFR, 0x00, 0xff, 0x00, 0xff),
		reg("EIMSK", m328p_EIMSK, 0x00, 0xff, 0xff, 0x00),
		reg("RAMPZ", m2560_RAMPZ, 0x00, 0xff, 0xff, 0x00),
		reg("EIND", m2560_EIND, 0x00, 0xff, 0xff, 0x00),
		reg("SPL", m328p_SPL, 0xff, 0xff, 0xff, 0x00),
		reg("SPH", m328p_SPH, 0x21, 0xff, 0xff, 0x00),
		reg("EICRB", m2560_EICRB, 0x00, 0xff, 0xff, 0x00),
		reg("OCR1CL", m2560_OCR1C, 0x00, 0xff, 0xff, 0x00),
		reg("OCR1CH", m2560_OCR1C+1, 0x00, 0xff, 0xff, 0x00),
	)
	ioregs = append(ioregs, regs(m2560_TIMSK3, "TIMSK3", "TIMSK4", "TIMSK5")...)
	ioregs = append(ioregs, megaIoRegs()...)
	ioregs = append(ioregs, wideTimerRegs("3", m2560_TCCR3A)...)
	ioregs = append(ioregs, wideTimerRegs("4", m2560_TCCR4A)...)
	ioregs = append(ioregs, wideTimerRegs("5", m2560_TCCR5A)...)
	ioregs = append(ioregs, usartRegs("1", m2560_UCSR1A)...)
	ioregs = append(ioregs, usartRegs("2", m2560_UCSR2A)...)
	ioregs = append(ioregs, usartRegs("3", m2560_UCSR3A)...)

	vectors := []avr.Vector{soft("RESET")}
	for n := range uint8(8) {
		vectors = append(vectors, vector("INT"+string('0'+rune(n)), bit(m328p_EIMSK, n), bit(m328p_EIFR, n)))
	}
	vectors = append(vectors,
		vector("PCINT0", bit(m328p_PCICR, 0), bit(m328p_PCIFR, 0)),
		vector("PCINT1", bit(m328p_PCICR, 1), bit(m328p_PCIFR, 1)),
		vector("PCINT2", bit(m328p_PCICR, 2), bit(m328p_PCIFR, 2)),
		vector("WDT", bit(m328p_WDTCSR, 6), bit(m328p_WDTCSR, 7)),
		vector("TIMER2_COMPA", bit(m328p_TIMSK2, 1), bit(m328p_TIFR2, 1)),
		vector("TIMER2_COMPB", bit(m328p_TIMSK2, 2), bit(m328p_TIFR2, 2)),
		vector("TIMER2_OVF", bit(m328p_TIMSK2, 0), bit(m328p_TIFR2, 0)),
	)
	vectors = append(vectors, wideTimerVectors("1", m328p_TIMSK1, m328p_TIFR1)...)
	vectors = append(vectors,
		vector("TIMER0_COMPA", bit(m328p_TIMSK0, 1), bit(m328p_TIFR0, 1)),
		vector("TIMER0_COMPB", bit(m328p_TIMSK0, 2), bit(m328p_TIFR0, 2)),
		vector("TIMER0_OVF", bit(m328p_TIMSK0, 0), bit(m328p_TIFR0, 0)),
		level("SPI_STC", bit(m328p_SPCR, 7), bit(m328p_SPSR, 7)),
	)
	vectors = append(vectors, usartVectors("0", m328p_UCSR0A)...)
	vectors = append(vectors,
		vector("ANALOG_COMP", bit(m328p_ACSR, 3), bit(m328p_ACSR, 4)),
		vector("ADC", bit(m328p_ADCSRA, 3), bit(m328p_ADCSRA, 4)),
		soft("EE_READY"),
	)
	vectors = append(vectors, wideTimerVectors("3", m2560_TIMSK3, m2560_TIFR3)...)
	vectors = append(vectors, usartVectors("1", m2560_UCSR1A)...)
	vectors = append(vectors,
		level("TWI", bit(m328p_TWCR, 0), bit(m328p_TWCR, 7)),
		soft("SPM_READY"),
	)
	vectors = append(vectors, wideTimerVectors("4", m2560_TIMSK4, m2560_TIFR4)...)
	vectors = append(vectors, wideTimerVectors("5", m2560_TIMSK5, m2560_TIFR5)...)
	vectors = append(vectors, usartVectors("2", m2560_UCSR2A)...)
	vectors = append(vectors, usartVectors("3", m2560_UCSR3A)...)

	cfgRegs := megaRegs()
	cfgRegs.RAMPZ = m2560_RAMPZ
	cfgRegs.EIND = m2560_EIND

	var ports []PortTable
	for n, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		pinx := m2560_PINA + avr.Offset(3*n)
		ports = append(ports, PortTable{name, pinx, pinx + 1, pinx + 2})
	}
	for n, name := range []string{"H", "J", "K", "L"} {
		pinx := m2560_PINH + avr.Offset(3*n)
		ports = append(ports, PortTable{name, pinx, pinx + 1, pinx + 2})
	}

	timers := megaTimers(
		pin(m328p_PINB, 7), pin(m2560_PING, 5),
		pin(m328p_PINB, 5), pin(m328p_PINB, 6),
		pin(m328p_PINB, 4), pin(m2560_PINH, 6),
		bit(m328p_PIND, 7), bit(m328p_PIND, 6),
	)
	timers = append(timers,
		wideTimer("TIMER3", m2560_TCCR3A, m2560_TIFR3, pin(m2560_PINE, 3), pin(m2560_PINE, 4), bit(m2560_PINE, 6)),
		wideTimer("TIMER4", m2560_TCCR4A, m2560_TIFR4, pin(m2560_PINH, 3), pin(m2560_PINH, 4), bit(m2560_PINH, 7)),
		wideTimer("TIMER5", m2560_TCCR5A, m2560_TIFR5, pin(m2560_PINL, 3), pin(m2560_PINL, 4), bit(m2560_PINL, 2)),
	)

	var extints []io.ExtInt
	for n := range uint8(4) {
		extints = append(extints, io.ExtInt{
			Name:  "INT" + string('0'+rune(n)),
			Pin:   bit(m328p_PIND, n),
			Sense: bit(m328p_EICRA, 2*n),
			Flag:  bit(m328p_EIFR, n),
		})
	}
	for n := range uint8(4) {
		extints = append(extints, io.ExtInt{
			Name:  "INT" + string('4'+rune(n)),
			Pin:   bit(m2560_PINE, 4+n),
			Sense: bit(m2560_EICRB, 2*n),
			Flag:  bit(m328p_EIFR, 4+n),
		})
	}

	return &Table{
		Config: avr.Config{
			Name:       "atmega2560",
			Signature:  [3]byte{0x1e, 0x98, 0x01},
			FlashSize:  256 * 1024,
			DataSize:   0x2200,
			RamStart:   0x200,
			PageSize:   256,
			PcBits:     22,
			SpWidth:    16,
			VectorSize: 4,
			Features:   avr.FEATURES_MEGA_X,
			Regs:       cfgRegs,
			IoRegs:     ioregs,
			Vectors:    vectors,
			Fuses:      []byte{0x62, 0x99, 0xff},
			Lock:       0xff,
		},
		Fuses:  megaFuses([4]uint32{8192, 4096, 2048, 1024}),
		Ports:  ports,
		Timers: timers,
		Usarts: []io.UsartConfig{
			usart("USART0", m328p_UCSR0A),
			usart("USART1", m2560_UCSR1A),
			usart("USART2", m2560_UCSR2A),
			usart("USART3", m2560_UCSR3A),
		},
		ExtInts:  extints,
		Watchdog: m328p_WDTCSR,
	}
}
