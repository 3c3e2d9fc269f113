package avr

// aluAdd computes rd + rr + carry and its H V N Z C S flags.
func aluAdd(rd, rr, carry byte) (res byte, flags byte) {
	res = rd + rr + carry

	c := rd&rr | rr&^res | ^res&rd
	v := rd&rr&^res | ^rd&^rr&res

	flags = zn8(res)
	flags |= flagIf(bit(c, 3), FLAG_H)
	flags |= flagIf(bit(c, 7), FLAG_C)
	flags |= flagIf(bit(v, 7), FLAG_V)
	flags = signFlag(flags)
	return
}

// aluSub computes rd - rr - carry and its H V N Z C S flags. When
// 'chain' is set, Z is only kept if it was already set, for multi-byte
// compares and subtractions.
func aluSub(rd, rr, carry byte, chain bool, oldZ bool) (res byte, flags byte) {
	res = rd - rr - carry

	c := ^rd&rr | rr&res | res&^rd
	v := rd&^rr&^res | ^rd&rr&res

	flags = zn8(res)
	if chain && !oldZ {
		flags &^= FLAG_Z
	}
	flags |= flagIf(bit(c, 3), FLAG_H)
	flags |= flagIf(bit(c, 7), FLAG_C)
	flags |= flagIf(bit(v, 7), FLAG_V)
	flags = signFlag(flags)
	return
}

// aluLogic computes the V=0 N Z S flags of a logic result.
func aluLogic(res byte) (flags byte) {
	flags = signFlag(zn8(res))
	return
}

// aluCom computes the one's complement; C is always set.
func aluCom(rd byte) (res byte, flags byte) {
	res = ^rd
	flags = signFlag(zn8(res)) | FLAG_C
	return
}

// aluNeg computes the two's complement.
func aluNeg(rd byte) (res byte, flags byte) {
	res, flags = aluSub(0, rd, 0, false, false)
	return
}

// aluInc increments; C and H are untouched.
func aluInc(rd byte) (res byte, flags byte) {
	res = rd + 1
	flags = zn8(res) | flagIf(res == 0x80, FLAG_V)
	flags = signFlag(flags)
	return
}

// aluDec decrements; C and H are untouched.
func aluDec(rd byte) (res byte, flags byte) {
	res = rd - 1
	flags = zn8(res) | flagIf(res == 0x7f, FLAG_V)
	flags = signFlag(flags)
	return
}

// shiftFlags computes N Z C V S of a right shift; V = N xor C.
func shiftFlags(res byte, carry bool) (flags byte) {
	flags = zn8(res) | flagIf(carry, FLAG_C)
	n := flags&FLAG_N != 0
	if n != carry {
		flags |= FLAG_V
	}
	flags = signFlag(flags)
	return
}

// aluLsr is a logical shift right.
func aluLsr(rd byte) (res byte, flags byte) {
	res = rd >> 1
	flags = shiftFlags(res, rd&1 != 0)
	return
}

// aluAsr is an arithmetic shift right.
func aluAsr(rd byte) (res byte, flags byte) {
	res = rd>>1 | rd&0x80
	flags = shiftFlags(res, rd&1 != 0)
	return
}

// aluRor rotates right through carry.
func aluRor(rd byte, carry byte) (res byte, flags byte) {
	res = rd>>1 | carry<<7
	flags = shiftFlags(res, rd&1 != 0)
	return
}

// aluAdiw adds an immediate to a register pair.
func aluAdiw(rd uint16, k uint8) (res uint16, flags byte) {
	res = rd + uint16(k)
	flags = zn16(res)
	flags |= flagIf(rd&0x8000 == 0 && res&0x8000 != 0, FLAG_V)
	flags |= flagIf(rd&0x8000 != 0 && res&0x8000 == 0, FLAG_C)
	flags = signFlag(flags)
	return
}

// aluSbiw subtracts an immediate from a register pair.
func aluSbiw(rd uint16, k uint8) (res uint16, flags byte) {
	res = rd - uint16(k)
	flags = zn16(res)
	flags |= flagIf(rd&0x8000 != 0 && res&0x8000 == 0, FLAG_V)
	flags |= flagIf(rd&0x8000 == 0 && res&0x8000 != 0, FLAG_C)
	flags = signFlag(flags)
	return
}

// mulKind selects the operand signedness and scaling of a multiply.
type mulKind int

const (
	mul_uu = mulKind(iota)
	mul_ss
	mul_su
)

// aluMul multiplies two bytes. 'fractional' shifts the product left by one
// as done by FMUL, FMULS and FMULSU. Only Z and C are affected.
func aluMul(rd, rr byte, kind mulKind, fractional bool) (res uint16, flags byte) {
	var product int32
	switch kind {
	case mul_uu:
		product = int32(rd) * int32(rr)
	case mul_ss:
		product = int32(int8(rd)) * int32(int8(rr))
	case mul_su:
		product = int32(int8(rd)) * int32(rr)
	}

	res = uint16(product)
	carry := res&0x8000 != 0
	if fractional {
		res <<= 1
	}

	flags = flagIf(res == 0, FLAG_Z) | flagIf(carry, FLAG_C)
	return
}
