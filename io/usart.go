package io

import (
	"io"
	"sync"

	"github.com/ezrec/avrsim/avr"
)

// UCSRnA bits.
const (
	UCSRA_RXC  = 1 << 7
	UCSRA_TXC  = 1 << 6
	UCSRA_UDRE = 1 << 5
	UCSRA_FE   = 1 << 4
	UCSRA_DOR  = 1 << 3
	UCSRA_UPE  = 1 << 2
	UCSRA_U2X  = 1 << 1
)

// UCSRnB bits.
const (
	UCSRB_RXCIE = 1 << 7
	UCSRB_TXCIE = 1 << 6
	UCSRB_UDRIE = 1 << 5
	UCSRB_RXEN  = 1 << 4
	UCSRB_TXEN  = 1 << 3
	UCSRB_UCSZ2 = 1 << 2
)

// UCSRnC bits.
const (
	UCSRC_UPM_SHIFT  = 4
	UCSRC_USBS       = 1 << 3
	UCSRC_UCSZ_SHIFT = 1
)

const (
	USART_RX_DEPTH = 64 // Inbound bytes buffered ahead of the receiver.
	warn_usart_tx  = 1
)

// UsartConfig names the registers of a USART.
type UsartConfig struct {
	Name  string
	UDR   avr.Offset
	UCSRA avr.Offset
	UCSRB avr.Offset
	UCSRC avr.Offset
	UBRRL avr.Offset
	UBRRH avr.Offset
}

// Usart is an asynchronous serial port.
//
// Transmitted characters are shifted out one bit time at a time into a
// Tape. Received characters are queued with Receive from any goroutine,
// and arrive one frame time after the receiver picks them up.
type Usart struct {
	UsartConfig

	tape Tape

	mu     sync.Mutex
	rx     chan byte
	closed bool

	txData  byte
	txFull  bool
	txBusy  bool
	txShift byte
	txBit   int
	txTimer int
	txFrame int
	txBits  int

	rxData  byte
	rxBusy  bool
	rxTimer int

	warned warnOnce
}

var _ Peripheral = (*Usart)(nil)

// NewUsart creates a USART transmitting to 'output'.
func NewUsart(cfg UsartConfig, output io.Writer) *Usart {
	return &Usart{
		UsartConfig: cfg,
		tape:        Tape{Output: output},
		rx:          make(chan byte, USART_RX_DEPTH),
	}
}

// SetOutput sets the destination of transmitted characters.
func (us *Usart) SetOutput(output io.Writer) {
	us.tape.Output = output
}

// Receive queues an inbound byte.
func (us *Usart) Receive(value byte) (err error) {
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.closed {
		err = ErrClosed
		return
	}

	select {
	case us.rx <- value:
	default:
		err = ErrInputFull
	}
	return
}

// Close stops accepting inbound bytes. Bytes already queued are still
// received.
func (us *Usart) Close() {
	us.mu.Lock()
	defer us.mu.Unlock()

	if us.closed {
		return
	}
	us.closed = true
	close(us.rx)
}

// Reset idles the transmitter and receiver and installs the data register
// hooks.
func (us *Usart) Reset(bus Bus) {
	us.txFull = false
	us.txBusy = false
	us.rxBusy = false
	us.tape.Rewind()

	bus.SetHook(us.UDR, avr.IoHook{
		Read: func(stored byte) byte {
			ucsra := bus.IoGet(us.UCSRA)
			bus.IoSet(us.UCSRA, ucsra&^(UCSRA_RXC|UCSRA_DOR|UCSRA_FE|UCSRA_UPE))
			return stored
		},
		Write: func(stored, value byte) byte {
			if bus.IoGet(us.UCSRB)&UCSRB_TXEN == 0 {
				return stored
			}
			us.txData = value
			us.txFull = true
			bus.IoSet(us.UCSRA, bus.IoGet(us.UCSRA)&^UCSRA_UDRE)
			return stored
		},
	})
}

// Clocked is true while the I/O clock runs.
func (us *Usart) Clocked(mode avr.SleepMode) bool {
	return !mode.ClockStopped()
}

// BitCycles returns the CPU cycles per bit from UBRR and U2X.
func (us *Usart) BitCycles(bus Bus) int {
	ubrr := int(bus.IoGet(us.UBRRL)) | int(bus.IoGet(us.UBRRH)&0x0f)<<8
	scale := 16
	if bus.IoGet(us.UCSRA)&UCSRA_U2X != 0 {
		scale = 8
	}
	return scale * (ubrr + 1)
}

// dataBits returns the character size.
func (us *Usart) dataBits(bus Bus) int {
	ucsz := int(bus.IoGet(us.UCSRC)>>UCSRC_UCSZ_SHIFT) & 0x03
	if bus.IoGet(us.UCSRB)&UCSRB_UCSZ2 != 0 {
		ucsz |= 0x04
	}
	if ucsz >= 4 {
		return 9
	}
	return 5 + ucsz
}

// FrameBits returns the bits per frame: start, data, parity and stop.
func (us *Usart) FrameBits(bus Bus) int {
	ucsrc := bus.IoGet(us.UCSRC)
	bits := 1 + us.dataBits(bus) + 1
	if (ucsrc>>UCSRC_UPM_SHIFT)&0x03 != 0 {
		bits++
	}
	if ucsrc&UCSRC_USBS != 0 {
		bits++
	}
	return bits
}

// FrameCycles returns the CPU cycles per frame.
func (us *Usart) FrameCycles(bus Bus) int {
	return us.BitCycles(bus) * us.FrameBits(bus)
}

// Tick advances the transmitter and receiver by one cycle.
func (us *Usart) Tick(bus Bus) {
	ucsrb := bus.IoGet(us.UCSRB)

	if ucsrb&UCSRB_TXEN != 0 {
		us.tickTx(bus)
	}

	if ucsrb&UCSRB_RXEN != 0 {
		us.tickRx(bus)
	}
}

func (us *Usart) tickTx(bus Bus) {
	if !us.txBusy {
		if !us.txFull {
			return
		}
		us.txShift = us.txData
		us.txFull = false
		us.txBusy = true
		us.txBit = 0
		us.txTimer = 0
		us.txFrame = us.FrameBits(bus)
		us.txBits = min(us.dataBits(bus), 8)
		us.tape.Bits = us.txBits
		bus.IoSet(us.UCSRA, bus.IoGet(us.UCSRA)|UCSRA_UDRE)
		return
	}

	us.txTimer++
	if us.txTimer < us.BitCycles(bus) {
		return
	}
	us.txTimer = 0

	// Bit 0 is the start bit; data bits follow LSB first.
	if us.txBit >= 1 && us.txBit <= us.txBits {
		err := us.tape.Send(us.txShift&1 != 0)
		if err != nil {
			us.warned.warn(bus.Logger().WithField("usart", us.Name), warn_usart_tx,
				"transmit output: %v", err)
		}
		us.txShift >>= 1
	}

	us.txBit++
	if us.txBit < us.txFrame {
		return
	}

	us.txBusy = false
	if !us.txFull {
		bus.IoSet(us.UCSRA, bus.IoGet(us.UCSRA)|UCSRA_TXC)
	}
}

func (us *Usart) tickRx(bus Bus) {
	if !us.rxBusy {
		select {
		case value, ok := <-us.rx:
			if !ok {
				return
			}
			us.rxData = value
			us.rxBusy = true
			us.rxTimer = 0
		default:
		}
		return
	}

	us.rxTimer++
	if us.rxTimer < us.FrameCycles(bus) {
		return
	}
	us.rxBusy = false

	ucsra := bus.IoGet(us.UCSRA)
	if ucsra&UCSRA_RXC != 0 {
		bus.IoSet(us.UCSRA, ucsra|UCSRA_DOR)
		return
	}

	bus.IoSet(us.UDR, us.rxData)
	bus.IoSet(us.UCSRA, ucsra|UCSRA_RXC)
}
