package avr

// Status register bits.
const (
	SREG_C = uint8(0) // carry
	SREG_Z = uint8(1) // zero
	SREG_N = uint8(2) // negative
	SREG_V = uint8(3) // two's complement overflow
	SREG_S = uint8(4) // sign, N xor V
	SREG_H = uint8(5) // half carry
	SREG_T = uint8(6) // bit copy storage
	SREG_I = uint8(7) // global interrupt enable
)

// Status register flag masks.
const (
	FLAG_C = byte(1 << SREG_C)
	FLAG_Z = byte(1 << SREG_Z)
	FLAG_N = byte(1 << SREG_N)
	FLAG_V = byte(1 << SREG_V)
	FLAG_S = byte(1 << SREG_S)
	FLAG_H = byte(1 << SREG_H)
	FLAG_T = byte(1 << SREG_T)
	FLAG_I = byte(1 << SREG_I)

	flags_zns   = FLAG_Z | FLAG_N | FLAG_S
	flags_znvs  = flags_zns | FLAG_V
	flags_cznvs = flags_znvs | FLAG_C
	flags_arith = flags_cznvs | FLAG_H
)

// Sreg returns the status register.
func (mcu *Mcu) Sreg() byte {
	return mcu.IoGet(mcu.Regs.SREG)
}

// SetSreg sets the status register.
func (mcu *Mcu) SetSreg(sreg byte) {
	mcu.IoSet(mcu.Regs.SREG, sreg)
}

// Flag returns a status register flag.
func (mcu *Mcu) Flag(flag byte) bool {
	return mcu.Sreg()&flag != 0
}

// SetFlag sets or clears status register flags.
func (mcu *Mcu) SetFlag(flag byte, set bool) {
	sreg := mcu.Sreg()
	if set {
		sreg |= flag
	} else {
		sreg &^= flag
	}
	mcu.SetSreg(sreg)
}

// InterruptsEnabled is true if the global interrupt enable flag is set.
func (mcu *Mcu) InterruptsEnabled() bool {
	return mcu.Flag(FLAG_I)
}

// updateFlags replaces the 'mask' bits of SREG with 'flags'.
func (mcu *Mcu) updateFlags(mask byte, flags byte) {
	mcu.SetSreg(mcu.Sreg()&^mask | flags&mask)
}

// carry returns the C flag as 0 or 1.
func (mcu *Mcu) carry() byte {
	return mcu.Sreg() & FLAG_C
}

// signFlag derives S from N and V.
func signFlag(flags byte) byte {
	n := flags&FLAG_N != 0
	v := flags&FLAG_V != 0
	if n != v {
		flags |= FLAG_S
	}
	return flags
}

// zn8 computes Z and N for an 8-bit result.
func zn8(res byte) (flags byte) {
	if res == 0 {
		flags |= FLAG_Z
	}
	if res&0x80 != 0 {
		flags |= FLAG_N
	}
	return
}

// zn16 computes Z and N for a 16-bit result.
func zn16(res uint16) (flags byte) {
	if res == 0 {
		flags |= FLAG_Z
	}
	if res&0x8000 != 0 {
		flags |= FLAG_N
	}
	return
}

func bit(value byte, n uint) bool {
	return value&(1<<n) != 0
}

func flagIf(cond bool, flag byte) byte {
	if cond {
		return flag
	}
	return 0
}
