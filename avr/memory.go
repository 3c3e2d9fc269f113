package avr

// Peek reads data memory without side effects or masks.
func (mcu *Mcu) Peek(addr uint32) (value byte, err error) {
	if addr >= uint32(len(mcu.Data)) {
		err = ErrMemory{Region: "data", Addr: addr}
		return
	}
	value = mcu.Data[addr]
	return
}

// Poke writes data memory without side effects or masks.
func (mcu *Mcu) Poke(addr uint32, value byte) (err error) {
	if addr >= uint32(len(mcu.Data)) {
		err = ErrMemory{Region: "data", Addr: addr}
		return
	}
	mcu.Data[addr] = value
	return
}

// Read is a CPU read of data memory. I/O registers apply their read hook
// and ReadMask.
func (mcu *Mcu) Read(addr uint32) (value byte, err error) {
	value, err = mcu.Peek(addr)
	if err != nil {
		return
	}

	if addr < IO_START || addr >= mcu.RamStart {
		return
	}

	if hook := mcu.hooks[addr]; hook.Read != nil {
		value = hook.Read(value)
	}
	if reg := mcu.ioreg(addr); reg != nil {
		value &= reg.ReadMask
	}

	return
}

// Write is a CPU write of data memory. I/O registers apply their write
// hook, or their WriteMask and ClearMask.
func (mcu *Mcu) Write(addr uint32, value byte) (err error) {
	if addr >= uint32(len(mcu.Data)) {
		err = ErrMemory{Region: "data", Addr: addr}
		return
	}

	if addr < IO_START || addr >= mcu.RamStart {
		mcu.Data[addr] = value
		return
	}

	old := mcu.Data[addr]
	next := value
	if reg := mcu.ioreg(addr); reg != nil {
		next = reg.write(old, value)
	}
	if hook := mcu.hooks[addr]; hook.Write != nil {
		next = hook.Write(old, value)
	}
	mcu.Data[addr] = next

	return
}

// WriteBit is a CPU write of a single register bit, as done by SBI and CBI.
// Other write-one-to-clear bits of the register are left untouched.
func (mcu *Mcu) WriteBit(addr uint32, bit uint8, set bool) (err error) {
	old, err := mcu.Peek(addr)
	if err != nil {
		return
	}

	value := old
	if reg := mcu.ioreg(addr); reg != nil {
		value &^= reg.ClearMask
	}

	mask := byte(1) << (bit & 7)
	if set {
		value |= mask
	} else {
		value &^= mask
	}

	return mcu.Write(addr, value)
}

// IoGet returns the raw value of a register, or 0 if it is absent.
func (mcu *Mcu) IoGet(off Offset) byte {
	if !off.Present() || int(off) >= len(mcu.Data) {
		return 0
	}
	return mcu.Data[off]
}

// IoSet sets the raw value of a register. Absent registers are ignored.
func (mcu *Mcu) IoSet(off Offset, value byte) {
	if !off.Present() || int(off) >= len(mcu.Data) {
		return
	}
	mcu.Data[off] = value
}

// IoBit returns a single register bit.
func (mcu *Mcu) IoBit(rb RegBit) bool {
	return rb.Present() && mcu.IoGet(rb.Offset)&rb.Mask() != 0
}

// IoSetBit sets or clears a single register bit.
func (mcu *Mcu) IoSetBit(rb RegBit, set bool) {
	if !rb.Present() {
		return
	}
	value := mcu.IoGet(rb.Offset)
	if set {
		value |= rb.Mask()
	} else {
		value &^= rb.Mask()
	}
	mcu.IoSet(rb.Offset, value)
}

// Reg returns general purpose register 'n'.
func (mcu *Mcu) Reg(n uint8) byte {
	return mcu.Data[n&0x1f]
}

// SetReg sets general purpose register 'n'.
func (mcu *Mcu) SetReg(n uint8, value byte) {
	mcu.Data[n&0x1f] = value
}

// Reg16 returns the register pair starting at 'n', low byte first.
func (mcu *Mcu) Reg16(n uint8) uint16 {
	return uint16(mcu.Data[n&0x1f]) | uint16(mcu.Data[(n+1)&0x1f])<<8
}

// SetReg16 sets the register pair starting at 'n'.
func (mcu *Mcu) SetReg16(n uint8, value uint16) {
	mcu.Data[n&0x1f] = byte(value)
	mcu.Data[(n+1)&0x1f] = byte(value >> 8)
}

// FlashWord returns the program word at byte address 'addr'.
func (mcu *Mcu) FlashWord(addr uint32) (word uint16, err error) {
	if addr > mcu.FlashEnd-1 || addr < mcu.FlashStart {
		err = ErrMemory{Region: "flash", Addr: addr}
		return
	}
	word = uint16(mcu.Flash[addr]) | uint16(mcu.Flash[addr+1])<<8
	return
}

// FlashByte returns the program byte at 'addr'.
func (mcu *Mcu) FlashByte(addr uint32) (value byte, err error) {
	if addr > mcu.FlashEnd || addr < mcu.FlashStart {
		err = ErrMemory{Region: "flash", Addr: addr}
		return
	}
	value = mcu.Flash[addr]
	return
}
