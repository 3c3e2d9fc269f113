package avr

// SPMCSR bits.
const (
	SPM_SPMEN  = byte(1 << 0)
	SPM_PGERS  = byte(1 << 1)
	SPM_PGWRT  = byte(1 << 2)
	SPM_BLBSET = byte(1 << 3)
	SPM_RWWSRE = byte(1 << 4)
	SPM_SIGRD  = byte(1 << 5)

	spm_ops = SPM_PGERS | SPM_PGWRT | SPM_BLBSET | SPM_RWWSRE | SPM_SIGRD
)

// requires returns the instruction set features an instruction needs.
func requires(inst Instruction) Features {
	switch inst.Op {
	case OP_MUL, OP_MULS, OP_MULSU, OP_FMUL, OP_FMULS, OP_FMULSU:
		return FEATURE_MUL
	case OP_JMP, OP_CALL:
		return FEATURE_JMP
	case OP_MOVW:
		return FEATURE_MOVW
	case OP_LPM:
		if inst.Ptr != PTR_NONE {
			return FEATURE_LPMX
		}
	case OP_ELPM:
		return FEATURE_ELPM
	case OP_EIJMP, OP_EICALL:
		return FEATURE_EIJMP
	case OP_SPM:
		return FEATURE_SPM
	case OP_BREAK:
		return FEATURE_BREAK
	}
	return 0
}

// callCycles adds the extra cycle 22-bit PC devices take to push or pop a
// return address.
func (mcu *Mcu) callCycles(cycles int) int {
	if mcu.PcBits > 16 {
		cycles++
	}
	return cycles
}

// jumpTo validates an absolute program address.
func (mcu *Mcu) jumpTo(target uint32) (pc uint32, err error) {
	if target < mcu.FlashStart || target > mcu.FlashEnd {
		err = ErrMemory{Region: "flash", Addr: target}
		return
	}
	pc = target
	return
}

// relative computes a relative jump target, wrapping around program memory.
func (mcu *Mcu) relative(pc uint32, off int16) uint32 {
	size := int64(mcu.FlashEnd - mcu.FlashStart + 1)
	target := (int64(pc-mcu.FlashStart) + 2 + int64(off)*2) % size
	if target < 0 {
		target += size
	}
	return mcu.FlashStart + uint32(target)
}

// skip returns the byte length and extra cycles to skip the instruction at
// 'next'.
func (mcu *Mcu) skip(next uint32) (size uint32, cycles int) {
	word, err := mcu.FlashWord(next)
	if err == nil && IsTwoWord(word) {
		return 4, 2
	}
	return 2, 1
}

// pointer returns the address in a pointer register and applies the pre
// decrement or post increment of the addressing mode.
func (mcu *Mcu) pointer(ptr Ptr, q uint8) (addr uint32) {
	base := ptr.Base()
	value := mcu.Reg16(base)

	switch ptr {
	case PTR_X_DEC, PTR_Y_DEC, PTR_Z_DEC:
		value--
		mcu.SetReg16(base, value)
		addr = uint32(value)
	case PTR_X_INC, PTR_Y_INC, PTR_Z_INC:
		addr = uint32(value)
		mcu.SetReg16(base, value+1)
	default:
		addr = uint32(value) + uint32(q)
	}

	return
}

// rampz returns the RAMPZ extension of Z, as a byte address offset.
func (mcu *Mcu) rampz() uint32 {
	return uint32(mcu.IoGet(mcu.Regs.RAMPZ)) << 16
}

// Execute runs one decoded instruction at the current PC and returns the
// number of clock cycles it took. On error the PC is unchanged.
func (mcu *Mcu) Execute(inst Instruction) (cycles int, err error) {
	if want := requires(inst); !mcu.Features.Has(want) {
		err = errorf(ErrUnsupported, "%v at 0x%05x", inst, mcu.Pc)
		return
	}

	if mcu.Verbose {
		mcu.Log.Debugf("0x%05x: %v", mcu.Pc, inst)
	}

	pc := mcu.Pc
	next := pc + inst.Size
	cycles = 1

	// Deferred PC target, if the instruction jumps.
	jump := false
	var target uint32

	rd := mcu.Reg(inst.Rd)
	rr := mcu.Reg(inst.Rr)

	switch inst.Op {
	case OP_NOP:
	case OP_ADD, OP_ADC:
		carry := byte(0)
		if inst.Op == OP_ADC {
			carry = mcu.carry()
		}
		res, flags := aluAdd(rd, rr, carry)
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_arith, flags)
	case OP_SUB, OP_SBC, OP_CP, OP_CPC:
		chain := inst.Op == OP_SBC || inst.Op == OP_CPC
		carry := byte(0)
		if chain {
			carry = mcu.carry()
		}
		res, flags := aluSub(rd, rr, carry, chain, mcu.Flag(FLAG_Z))
		if inst.Op == OP_SUB || inst.Op == OP_SBC {
			mcu.SetReg(inst.Rd, res)
		}
		mcu.updateFlags(flags_arith, flags)
	case OP_SUBI, OP_SBCI, OP_CPI:
		chain := inst.Op == OP_SBCI
		carry := byte(0)
		if chain {
			carry = mcu.carry()
		}
		res, flags := aluSub(rd, inst.K, carry, chain, mcu.Flag(FLAG_Z))
		if inst.Op != OP_CPI {
			mcu.SetReg(inst.Rd, res)
		}
		mcu.updateFlags(flags_arith, flags)
	case OP_AND, OP_ANDI, OP_OR, OP_ORI, OP_EOR:
		var res byte
		switch inst.Op {
		case OP_AND:
			res = rd & rr
		case OP_ANDI:
			res = rd & inst.K
		case OP_OR:
			res = rd | rr
		case OP_ORI:
			res = rd | inst.K
		case OP_EOR:
			res = rd ^ rr
		}
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_znvs, aluLogic(res))
	case OP_COM:
		res, flags := aluCom(rd)
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_cznvs, flags)
	case OP_NEG:
		res, flags := aluNeg(rd)
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_arith, flags)
	case OP_INC:
		res, flags := aluInc(rd)
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_znvs, flags)
	case OP_DEC:
		res, flags := aluDec(rd)
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_znvs, flags)
	case OP_LSR:
		res, flags := aluLsr(rd)
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_cznvs, flags)
	case OP_ASR:
		res, flags := aluAsr(rd)
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_cznvs, flags)
	case OP_ROR:
		res, flags := aluRor(rd, mcu.carry())
		mcu.SetReg(inst.Rd, res)
		mcu.updateFlags(flags_cznvs, flags)
	case OP_SWAP:
		mcu.SetReg(inst.Rd, rd<<4|rd>>4)
	case OP_ADIW, OP_SBIW:
		var res uint16
		var flags byte
		if inst.Op == OP_ADIW {
			res, flags = aluAdiw(mcu.Reg16(inst.Rd), inst.K)
		} else {
			res, flags = aluSbiw(mcu.Reg16(inst.Rd), inst.K)
		}
		mcu.SetReg16(inst.Rd, res)
		mcu.updateFlags(flags_cznvs, flags)
		cycles = 2
	case OP_MUL, OP_MULS, OP_MULSU, OP_FMUL, OP_FMULS, OP_FMULSU:
		kind := mul_uu
		switch inst.Op {
		case OP_MULS, OP_FMULS:
			kind = mul_ss
		case OP_MULSU, OP_FMULSU:
			kind = mul_su
		}
		fractional := inst.Op == OP_FMUL || inst.Op == OP_FMULS || inst.Op == OP_FMULSU
		res, flags := aluMul(rd, rr, kind, fractional)
		mcu.SetReg16(0, res)
		mcu.updateFlags(FLAG_Z|FLAG_C, flags)
		cycles = 2
	case OP_MOV:
		mcu.SetReg(inst.Rd, rr)
	case OP_MOVW:
		mcu.SetReg16(inst.Rd, mcu.Reg16(inst.Rr))
	case OP_LDI:
		mcu.SetReg(inst.Rd, inst.K)
	case OP_BSET:
		mcu.SetFlag(1<<inst.B, true)
		if inst.B == SREG_I {
			mcu.Irq.ExecMain = true
		}
	case OP_BCLR:
		mcu.SetFlag(1<<inst.B, false)
	case OP_BST:
		mcu.SetFlag(FLAG_T, bit(rd, uint(inst.B)))
	case OP_BLD:
		if mcu.Flag(FLAG_T) {
			mcu.SetReg(inst.Rd, rd|1<<inst.B)
		} else {
			mcu.SetReg(inst.Rd, rd&^(1<<inst.B))
		}

	case OP_RJMP:
		target = mcu.relative(pc, inst.Off)
		jump = true
		cycles = 2
	case OP_JMP:
		target, err = mcu.jumpTo(inst.Addr << 1)
		jump = true
		cycles = 3
	case OP_IJMP:
		target, err = mcu.jumpTo(uint32(mcu.Reg16(REG_Z)) << 1)
		jump = true
		cycles = 2
	case OP_EIJMP:
		eind := uint32(mcu.IoGet(mcu.Regs.EIND))
		target, err = mcu.jumpTo((eind<<16 | uint32(mcu.Reg16(REG_Z))) << 1)
		jump = true
		cycles = 2
	case OP_RCALL, OP_CALL, OP_ICALL, OP_EICALL:
		switch inst.Op {
		case OP_RCALL:
			target = mcu.relative(pc, inst.Off)
			cycles = mcu.callCycles(3)
		case OP_CALL:
			target, err = mcu.jumpTo(inst.Addr << 1)
			cycles = mcu.callCycles(4)
		case OP_ICALL:
			target, err = mcu.jumpTo(uint32(mcu.Reg16(REG_Z)) << 1)
			cycles = mcu.callCycles(3)
		case OP_EICALL:
			eind := uint32(mcu.IoGet(mcu.Regs.EIND))
			target, err = mcu.jumpTo((eind<<16 | uint32(mcu.Reg16(REG_Z))) << 1)
			cycles = 4
		}
		if err == nil {
			err = mcu.pushPc(next)
		}
		jump = true
	case OP_RET, OP_RETI:
		target, err = mcu.popPc()
		if err == nil {
			target, err = mcu.jumpTo(target)
		}
		if err == nil && inst.Op == OP_RETI {
			mcu.SetFlag(FLAG_I, true)
			mcu.returnFromIRQ()
		}
		jump = true
		cycles = mcu.callCycles(4)

	case OP_CPSE, OP_SBRC, OP_SBRS, OP_SBIC, OP_SBIS:
		var taken bool
		switch inst.Op {
		case OP_CPSE:
			taken = rd == rr
		case OP_SBRC:
			taken = !bit(rr, uint(inst.B))
		case OP_SBRS:
			taken = bit(rr, uint(inst.B))
		case OP_SBIC, OP_SBIS:
			var value byte
			value, err = mcu.Read(IO_START + uint32(inst.A))
			taken = bit(value, uint(inst.B)) == (inst.Op == OP_SBIS)
		}
		if err == nil && taken {
			size, extra := mcu.skip(next)
			next += size
			cycles += extra
		}
	case OP_BRBS, OP_BRBC:
		if mcu.Flag(1<<inst.B) == (inst.Op == OP_BRBS) {
			target = mcu.relative(pc, inst.Off)
			jump = true
			cycles = 2
		}

	case OP_LD, OP_LDD:
		var value byte
		value, err = mcu.Read(mcu.pointer(inst.Ptr, inst.Q))
		if err == nil {
			mcu.SetReg(inst.Rd, value)
		}
		cycles = 2
	case OP_ST, OP_STD:
		err = mcu.Write(mcu.pointer(inst.Ptr, inst.Q), rr)
		cycles = 2
	case OP_LDS:
		var value byte
		value, err = mcu.Read(inst.Addr)
		if err == nil {
			mcu.SetReg(inst.Rd, value)
		}
		cycles = 2
	case OP_STS:
		err = mcu.Write(inst.Addr, rr)
		cycles = 2
	case OP_LPM, OP_ELPM:
		z := uint32(mcu.Reg16(REG_Z))
		if inst.Op == OP_ELPM {
			z |= mcu.rampz()
		}
		var value byte
		value, err = mcu.FlashByte(z)
		if err != nil {
			break
		}
		mcu.SetReg(inst.Rd, value)
		if inst.Ptr == PTR_Z_INC {
			z++
			mcu.SetReg16(REG_Z, uint16(z))
			if inst.Op == OP_ELPM {
				mcu.IoSet(mcu.Regs.RAMPZ, byte(z>>16))
			}
		}
		cycles = 3
	case OP_SPM:
		err = mcu.spm()
	case OP_IN:
		var value byte
		value, err = mcu.Read(IO_START + uint32(inst.A))
		if err == nil {
			mcu.SetReg(inst.Rd, value)
		}
	case OP_OUT:
		err = mcu.Write(IO_START+uint32(inst.A), rr)
	case OP_SBI, OP_CBI:
		err = mcu.WriteBit(IO_START+uint32(inst.A), inst.B, inst.Op == OP_SBI)
		cycles = 2
	case OP_PUSH:
		err = mcu.push(rr)
		if err != nil {
			err = stackError(err)
		}
		cycles = 2
	case OP_POP:
		var value byte
		value, err = mcu.pop()
		if err != nil {
			err = stackError(err)
		} else {
			mcu.SetReg(inst.Rd, value)
		}
		cycles = 2

	case OP_SLEEP:
		if mcu.IoBit(mcu.Regs.SE) {
			mcu.sleep = mcu.selectedSleepMode()
			mcu.mu.Lock()
			mcu.state = STATE_SLEEPING
			mcu.mu.Unlock()
			if mcu.Verbose {
				mcu.Log.Debugf("sleep %v", mcu.sleep)
			}
		}
	case OP_WDR:
		for _, fn := range mcu.wdr {
			fn()
		}
	case OP_BREAK:
		mcu.mu.Lock()
		mcu.state = STATE_STOPPED
		mcu.message = f("break at 0x%05x", pc)
		mcu.mu.Unlock()
	default:
		err = ErrOpcode{Word: inst.Word, Pc: pc}
	}

	if err != nil {
		return
	}

	if jump {
		mcu.Pc = target
		return
	}

	if next > mcu.FlashEnd {
		err = ErrMemory{Region: "flash", Addr: next}
		return
	}
	mcu.Pc = next

	return
}

// spm performs the SPM operation selected in SPMCSR.
func (mcu *Mcu) spm() (err error) {
	spmcsr := mcu.IoGet(mcu.Regs.SPMCSR)
	if spmcsr&SPM_SPMEN == 0 {
		return
	}

	z := uint32(mcu.Reg16(REG_Z)) | mcu.rampz()
	allowed := mcu.Boot.Size == 0 || mcu.Boot.Contains(mcu.Pc)
	page := z &^ (mcu.PageSize - 1)

	switch spmcsr & spm_ops {
	case 0:
		index := z & (mcu.PageSize - 1) &^ 1
		mcu.spmBuf[index] = mcu.Reg(0)
		mcu.spmBuf[index+1] = mcu.Reg(1)
	case SPM_PGERS:
		if !allowed {
			break
		}
		if page+mcu.PageSize > uint32(len(mcu.Flash)) {
			err = ErrMemory{Region: "flash", Addr: page}
			return
		}
		for n := range mcu.PageSize {
			mcu.Flash[page+n] = 0xff
		}
	case SPM_PGWRT:
		if !allowed {
			break
		}
		if page+mcu.PageSize > uint32(len(mcu.Flash)) {
			err = ErrMemory{Region: "flash", Addr: page}
			return
		}
		for n := range mcu.PageSize {
			mcu.Flash[page+n] &= mcu.spmBuf[n]
			mcu.spmBuf[n] = 0xff
		}
	case SPM_BLBSET:
		if allowed && mcu.Model != nil {
			err = mcu.Model.SetLock(mcu, mcu.LockBits&mcu.Reg(0))
			if err == nil {
				mcu.LockBits &= mcu.Reg(0)
			}
		}
	case SPM_RWWSRE:
	}

	if mcu.Verbose {
		mcu.Log.Debugf("spm 0x%02x at 0x%05x", spmcsr, z)
	}

	mcu.IoSet(mcu.Regs.SPMCSR, spmcsr&^(spm_ops|SPM_SPMEN))

	return
}
