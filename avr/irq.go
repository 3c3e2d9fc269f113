package avr

// IRQ_MAX is the largest number of interrupt vectors a device may have.
const IRQ_MAX = 64

// Irq is the controller state of one vector.
type Irq struct {
	Enabled bool
	Raised  bool
	Pending bool
}

// Interrupts is the interrupt controller.
type Interrupts struct {
	Reset      uint32 // Reset vector, as a byte address.
	Base       uint32 // Vector table base, as a byte address.
	VectorSize uint32 // Bytes per vector slot.
	Vectors    []Vector
	Irqs       [IRQ_MAX]Irq

	Servicing int   // Vector being serviced, or -1.
	Nest      []int // Interrupted vectors of nested handlers.

	ExecMain  bool // Run one main program instruction before the next interrupt.
	TrapAtIsr bool // Stop instead of entering a handler.
}

func (irq *Interrupts) init(vectors []Vector, size uint32) {
	irq.Vectors = vectors
	irq.VectorSize = size
	irq.reset()
}

func (irq *Interrupts) reset() {
	irq.Irqs = [IRQ_MAX]Irq{}
	irq.Servicing = -1
	irq.Nest = irq.Nest[:0]
	irq.ExecMain = false
}

// Count returns the number of vectors, including reset.
func (irq *Interrupts) Count() int {
	return len(irq.Vectors)
}

// Address returns the handler address of vector 'v'.
func (irq *Interrupts) Address(v int) uint32 {
	return irq.Base + uint32(v)*irq.VectorSize
}

// Lookup finds a vector number by name.
func (irq *Interrupts) Lookup(name string) (v int, ok bool) {
	for v = range irq.Vectors {
		if irq.Vectors[v].Name == name {
			ok = true
			return
		}
	}
	v = -1
	return
}

// RaiseIRQ raises interrupt vector 'v'. Vectors with a flag bit set it in
// the register file, where it stays until cleared.
func (mcu *Mcu) RaiseIRQ(v int) {
	if v <= 0 || v >= len(mcu.Irq.Vectors) {
		return
	}

	vec := &mcu.Irq.Vectors[v]
	mcu.IoSetBit(vec.Flag, true)
	mcu.Irq.Irqs[v].Raised = true
	mcu.updateIrq(v)
}

// ClearIRQ withdraws interrupt vector 'v'.
func (mcu *Mcu) ClearIRQ(v int) {
	if v <= 0 || v >= len(mcu.Irq.Vectors) {
		return
	}

	vec := &mcu.Irq.Vectors[v]
	mcu.IoSetBit(vec.Flag, false)
	mcu.Irq.Irqs[v].Raised = false
	mcu.updateIrq(v)
}

// UpdateIrqs recomputes enabled, raised and pending state of every vector
// from the register file.
func (mcu *Mcu) UpdateIrqs() {
	for v := 1; v < len(mcu.Irq.Vectors); v++ {
		mcu.updateIrq(v)
	}
}

func (mcu *Mcu) updateIrq(v int) {
	vec := &mcu.Irq.Vectors[v]
	irq := &mcu.Irq.Irqs[v]

	irq.Enabled = !vec.Enable.Present() || mcu.IoBit(vec.Enable)
	if vec.Flag.Present() {
		irq.Raised = mcu.IoBit(vec.Flag)
	}
	irq.Pending = irq.Enabled && irq.Raised
}

// provideIRQs refreshes the controller through the model.
func (mcu *Mcu) provideIRQs() {
	if mcu.Model != nil {
		mcu.Model.ProvideIRQs(mcu)
		return
	}
	mcu.UpdateIrqs()
}

// PendingIRQ returns the highest priority pending vector.
func (mcu *Mcu) PendingIRQ() (v int, ok bool) {
	for v = 1; v < len(mcu.Irq.Vectors); v++ {
		if mcu.Irq.Irqs[v].Pending {
			ok = true
			return
		}
	}
	v = -1
	return
}

// serviceIRQ enters the handler of the highest priority pending interrupt,
// if interrupts are enabled. It returns the cycles taken, 0 if no interrupt
// was taken.
func (mcu *Mcu) serviceIRQ() (cycles int, err error) {
	if mcu.Irq.ExecMain {
		mcu.Irq.ExecMain = false
		return
	}
	if !mcu.InterruptsEnabled() {
		return
	}

	mcu.provideIRQs()
	v, ok := mcu.PendingIRQ()
	if !ok {
		return
	}

	vec := &mcu.Irq.Vectors[v]
	if mcu.Irq.TrapAtIsr {
		err = errorf(ErrTrap, "%v (vector %d)", vec.Name, v)
		return
	}

	err = mcu.pushPc(mcu.Pc)
	if err != nil {
		return
	}

	if !vec.KeepFlag {
		mcu.IoSetBit(vec.Flag, false)
		mcu.Irq.Irqs[v].Raised = false
	}
	mcu.updateIrq(v)

	mcu.SetFlag(FLAG_I, false)
	if mcu.Irq.Servicing >= 0 {
		mcu.Irq.Nest = append(mcu.Irq.Nest, mcu.Irq.Servicing)
	}
	mcu.Irq.Servicing = v
	mcu.Pc = mcu.Irq.Address(v)

	if mcu.Verbose {
		mcu.Log.Debugf("irq %v (%d), pc 0x%05x", vec.Name, v, mcu.Pc)
	}

	cycles = 4
	if mcu.PcBits > 16 {
		cycles++
	}

	return
}

// returnFromIRQ finishes servicing the current vector after RETI.
func (mcu *Mcu) returnFromIRQ() {
	mcu.Irq.ExecMain = true

	nest := len(mcu.Irq.Nest)
	if nest == 0 {
		mcu.Irq.Servicing = -1
		return
	}
	mcu.Irq.Servicing = mcu.Irq.Nest[nest-1]
	mcu.Irq.Nest = mcu.Irq.Nest[:nest-1]
}
