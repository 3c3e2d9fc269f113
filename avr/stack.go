package avr

import (
	"fmt"
)

// Sp returns the stack pointer.
func (mcu *Mcu) Sp() (sp uint32) {
	sp = uint32(mcu.IoGet(mcu.Regs.SPL))
	if mcu.SpWidth == 16 {
		sp |= uint32(mcu.IoGet(mcu.Regs.SPH)) << 8
	}
	return
}

// setSp sets the stack pointer, truncated to the pointer width.
func (mcu *Mcu) setSp(sp uint32) {
	mcu.IoSet(mcu.Regs.SPL, byte(sp))
	if mcu.SpWidth == 16 {
		mcu.IoSet(mcu.Regs.SPH, byte(sp>>8))
	}
}

// SetSp sets the stack pointer.
func (mcu *Mcu) SetSp(sp uint32) {
	mcu.setSp(sp)
}

// push stores a byte at SP and post-decrements SP.
func (mcu *Mcu) push(value byte) (err error) {
	sp := mcu.Sp()
	if sp >= uint32(len(mcu.Data)) || sp < IO_START {
		err = ErrMemory{Region: "stack", Addr: sp}
		return
	}

	mcu.Data[sp] = value
	mcu.setSp(sp - 1)

	return
}

// pop pre-increments SP and loads the byte there.
func (mcu *Mcu) pop() (value byte, err error) {
	sp := mcu.Sp() + 1
	if mcu.SpWidth == 8 {
		sp &= 0xff
	}
	if sp >= uint32(len(mcu.Data)) || sp < IO_START {
		err = ErrMemory{Region: "stack", Addr: sp}
		return
	}

	value = mcu.Data[sp]
	mcu.setSp(sp)

	return
}

// returnSize is the size of a return address on the stack.
func (mcu *Mcu) returnSize() uint32 {
	if mcu.PcBits > 16 {
		return 3
	}
	return 2
}

// pushPc pushes a byte address as a word address, low byte first.
func (mcu *Mcu) pushPc(pc uint32) (err error) {
	word := pc >> 1
	err = mcu.push(byte(word))
	if err == nil {
		err = mcu.push(byte(word >> 8))
	}
	if err == nil && mcu.PcBits > 16 {
		err = mcu.push(byte(word >> 16))
	}
	if err != nil {
		err = stackError(err)
	}
	return
}

// popPc pops a word address pushed by pushPc, returned as a byte address.
func (mcu *Mcu) popPc() (pc uint32, err error) {
	var b byte
	var word uint32

	if mcu.PcBits > 16 {
		b, err = mcu.pop()
		if err != nil {
			err = stackError(err)
			return
		}
		word = uint32(b) << 16
	}

	b, err = mcu.pop()
	if err != nil {
		err = stackError(err)
		return
	}
	word |= uint32(b) << 8

	b, err = mcu.pop()
	if err != nil {
		err = stackError(err)
		return
	}
	word |= uint32(b)

	pc = word << 1
	return
}

// stackError tags a stack access fault with ErrStack.
func stackError(err error) error {
	return fmt.Errorf("%w: %w", ErrStack, err)
}
