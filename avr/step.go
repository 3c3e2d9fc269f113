package avr

// Fetch decodes the instruction at the PC without executing it.
func (mcu *Mcu) Fetch() (inst Instruction, err error) {
	return mcu.FetchAt(mcu.Pc)
}

// FetchAt decodes the instruction at a program byte address.
func (mcu *Mcu) FetchAt(pc uint32) (inst Instruction, err error) {
	word, err := mcu.FlashWord(pc)
	if err != nil {
		return
	}

	var next uint16
	if IsTwoWord(word) {
		next, err = mcu.FlashWord(pc + 2)
		if err != nil {
			return
		}
	}

	inst, err = Decode(word, next)
	if err != nil {
		err = ErrOpcode{Word: word, Pc: pc}
	}

	return
}

// Step services a pending interrupt, or executes one instruction, then
// ticks the peripherals once per cycle taken. Errors are returned, not
// recorded; see Fault.
func (mcu *Mcu) Step() (cycles int, err error) {
	cycles, err = mcu.serviceIRQ()
	if err != nil {
		return
	}

	if cycles == 0 {
		var inst Instruction
		inst, err = mcu.Fetch()
		if err != nil {
			return
		}

		cycles, err = mcu.Execute(inst)
		if err != nil {
			return
		}
	}

	for range cycles {
		mcu.Tick()
	}

	return
}

// Idle ticks one cycle while sleeping, and wakes the CPU if interrupts are
// enabled and one is pending. It returns true if the CPU woke up.
func (mcu *Mcu) Idle() (woke bool) {
	mcu.Tick()

	if _, ok := mcu.PendingIRQ(); ok && mcu.InterruptsEnabled() {
		mcu.Wake()
		woke = true
	}

	return
}
