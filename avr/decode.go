package avr

// Decode decodes the instruction starting with 'word'. 'next' is the word
// that follows it in program memory, used only by 32-bit instructions.
//
// Decode does not depend on, or modify, any Mcu state.
func Decode(word uint16, next uint16) (inst Instruction, err error) {
	enc, ok := lookup(word)
	if !ok {
		err = ErrOpcode{Word: word}
		return
	}

	inst = Instruction{
		Op:   enc.op,
		Word: word,
		Ptr:  enc.ptr,
		Size: 2,
	}

	d5 := uint8(word>>4) & 0x1f
	r5 := uint8(word>>5)&0x10 | uint8(word)&0x0f

	switch enc.form {
	case form_none:
	case form_rd_rr:
		inst.Rd = d5
		inst.Rr = r5
	case form_rd:
		inst.Rd = d5
	case form_rr:
		inst.Rr = d5
	case form_rd_k8:
		inst.Rd = 16 + uint8(word>>4)&0x0f
		inst.K = uint8(word>>4)&0xf0 | uint8(word)&0x0f
	case form_movw:
		inst.Rd = (uint8(word>>4) & 0x0f) * 2
		inst.Rr = (uint8(word) & 0x0f) * 2
	case form_muls:
		inst.Rd = 16 + uint8(word>>4)&0x0f
		inst.Rr = 16 + uint8(word)&0x0f
	case form_mulsu:
		inst.Rd = 16 + uint8(word>>4)&0x07
		inst.Rr = 16 + uint8(word)&0x07
	case form_adiw:
		inst.Rd = 24 + (uint8(word>>4)&0x03)*2
		inst.K = uint8(word>>2)&0x30 | uint8(word)&0x0f
	case form_ldd, form_std:
		inst.Q = uint8(word>>8)&0x20 | uint8(word>>7)&0x18 | uint8(word)&0x07
		if enc.form == form_ldd {
			inst.Rd = d5
		} else {
			inst.Rr = d5
		}
	case form_lds:
		inst.Rd = d5
		inst.Addr = uint32(next)
		inst.Size = 4
	case form_sts:
		inst.Rr = d5
		inst.Addr = uint32(next)
		inst.Size = 4
	case form_jmp:
		hi := uint32(word>>3)&0x3e | uint32(word)&0x01
		inst.Addr = hi<<16 | uint32(next)
		inst.Size = 4
	case form_rjmp:
		inst.Off = int16(word<<4) >> 4
	case form_branch:
		inst.Off = int16(word<<6) >> 9
		inst.B = uint8(word) & 0x07
	case form_sreg:
		inst.B = uint8(word>>4) & 0x07
	case form_io_bit:
		inst.A = uint8(word>>3) & 0x1f
		inst.B = uint8(word) & 0x07
	case form_in:
		inst.Rd = d5
		inst.A = uint8(word>>5)&0x30 | uint8(word)&0x0f
	case form_out:
		inst.Rr = d5
		inst.A = uint8(word>>5)&0x30 | uint8(word)&0x0f
	case form_rd_bit:
		inst.Rd = d5
		inst.B = uint8(word) & 0x07
	case form_rr_bit:
		inst.Rr = d5
		inst.B = uint8(word) & 0x07
	}

	return
}

// Encode assembles an instruction into its program memory words.
func Encode(inst Instruction) (words []uint16, err error) {
	var enc *encoding
	for n := range _opcode_map {
		entry := &_opcode_map[n]
		if entry.op == inst.Op && entry.ptr == inst.Ptr {
			enc = entry
			break
		}
	}
	if enc == nil {
		err = errorf(ErrDecode, "no encoding for %v %v", inst.Op, inst.Ptr)
		return
	}

	word := enc.match
	d5 := func(reg uint8) uint16 { return uint16(reg&0x1f) << 4 }
	r5 := func(reg uint8) uint16 { return uint16(reg&0x10)<<5 | uint16(reg&0x0f) }
	k8 := func(k uint8) uint16 { return uint16(k&0xf0)<<4 | uint16(k&0x0f) }

	var operand uint16
	var twoWord bool

	switch enc.form {
	case form_none:
	case form_rd_rr:
		word |= d5(inst.Rd) | r5(inst.Rr)
	case form_rd:
		word |= d5(inst.Rd)
	case form_rr:
		word |= d5(inst.Rr)
	case form_rd_k8:
		word |= uint16(inst.Rd-16)&0x0f<<4 | k8(inst.K)
	case form_movw:
		word |= uint16(inst.Rd/2)&0x0f<<4 | uint16(inst.Rr/2)&0x0f
	case form_muls:
		word |= uint16(inst.Rd-16)&0x0f<<4 | uint16(inst.Rr-16)&0x0f
	case form_mulsu:
		word |= uint16(inst.Rd-16)&0x07<<4 | uint16(inst.Rr-16)&0x07
	case form_adiw:
		word |= uint16((inst.Rd-24)/2)&0x03<<4 | uint16(inst.K&0x30)<<2 | uint16(inst.K&0x0f)
	case form_ldd, form_std:
		q := uint16(inst.Q)
		word |= (q&0x20)<<8 | (q&0x18)<<7 | q&0x07
		if enc.form == form_ldd {
			word |= d5(inst.Rd)
		} else {
			word |= d5(inst.Rr)
		}
	case form_lds:
		word |= d5(inst.Rd)
		operand = uint16(inst.Addr)
		twoWord = true
	case form_sts:
		word |= d5(inst.Rr)
		operand = uint16(inst.Addr)
		twoWord = true
	case form_jmp:
		hi := uint16(inst.Addr>>16) & 0x3f
		word |= (hi&0x3e)<<3 | hi&0x01
		operand = uint16(inst.Addr)
		twoWord = true
	case form_rjmp:
		word |= uint16(inst.Off) & 0x0fff
	case form_branch:
		word |= (uint16(inst.Off)&0x7f)<<3 | uint16(inst.B&0x07)
	case form_sreg:
		word |= uint16(inst.B&0x07) << 4
	case form_io_bit:
		word |= uint16(inst.A&0x1f)<<3 | uint16(inst.B&0x07)
	case form_in:
		word |= d5(inst.Rd) | uint16(inst.A&0x30)<<5 | uint16(inst.A&0x0f)
	case form_out:
		word |= d5(inst.Rr) | uint16(inst.A&0x30)<<5 | uint16(inst.A&0x0f)
	case form_rd_bit:
		word |= d5(inst.Rd) | uint16(inst.B&0x07)
	case form_rr_bit:
		word |= d5(inst.Rr) | uint16(inst.B&0x07)
	}

	words = []uint16{word}
	if twoWord {
		words = append(words, operand)
	}

	return
}

// MustEncode is Encode for instructions known to be valid, such as test
// programs and built-in stubs. It panics on an invalid instruction.
func MustEncode(inst Instruction) []uint16 {
	words, err := Encode(inst)
	if err != nil {
		panic(err)
	}
	return words
}
