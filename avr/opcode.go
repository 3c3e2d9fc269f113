package avr

import (
	"fmt"
	"math/bits"
	"slices"
)

// Op is a decoded AVR operation.
type Op int

const (
	OP_INVALID = Op(iota) // invalid
	OP_ADC                // adc
	OP_ADD                // add
	OP_ADIW               // adiw
	OP_AND                // and
	OP_ANDI               // andi
	OP_ASR                // asr
	OP_BCLR               // bclr
	OP_BLD                // bld
	OP_BRBC               // brbc
	OP_BRBS               // brbs
	OP_BREAK              // break
	OP_BSET               // bset
	OP_BST                // bst
	OP_CALL               // call
	OP_CBI                // cbi
	OP_COM                // com
	OP_CP                 // cp
	OP_CPC                // cpc
	OP_CPI                // cpi
	OP_CPSE               // cpse
	OP_DEC                // dec
	OP_EICALL             // eicall
	OP_EIJMP              // eijmp
	OP_ELPM               // elpm
	OP_EOR                // eor
	OP_FMUL               // fmul
	OP_FMULS              // fmuls
	OP_FMULSU             // fmulsu
	OP_ICALL              // icall
	OP_IJMP               // ijmp
	OP_IN                 // in
	OP_INC                // inc
	OP_JMP                // jmp
	OP_LD                 // ld
	OP_LDD                // ldd
	OP_LDI                // ldi
	OP_LDS                // lds
	OP_LPM                // lpm
	OP_LSR                // lsr
	OP_MOV                // mov
	OP_MOVW               // movw
	OP_MUL                // mul
	OP_MULS               // muls
	OP_MULSU              // mulsu
	OP_NEG                // neg
	OP_NOP                // nop
	OP_OR                 // or
	OP_ORI                // ori
	OP_OUT                // out
	OP_POP                // pop
	OP_PUSH               // push
	OP_RCALL              // rcall
	OP_RET                // ret
	OP_RETI               // reti
	OP_RJMP               // rjmp
	OP_ROR                // ror
	OP_SBC                // sbc
	OP_SBCI               // sbci
	OP_SBI                // sbi
	OP_SBIC               // sbic
	OP_SBIS               // sbis
	OP_SBIW               // sbiw
	OP_SBRC               // sbrc
	OP_SBRS               // sbrs
	OP_SLEEP              // sleep
	OP_SPM                // spm
	OP_ST                 // st
	OP_STD                // std
	OP_STS                // sts
	OP_SUB                // sub
	OP_SUBI               // subi
	OP_SWAP               // swap
	OP_WDR                // wdr
	OP_COUNT
)

var _op_names = [OP_COUNT]string{
	"invalid", "adc", "add", "adiw", "and", "andi", "asr", "bclr", "bld",
	"brbc", "brbs", "break", "bset", "bst", "call", "cbi", "com", "cp", "cpc",
	"cpi", "cpse", "dec", "eicall", "eijmp", "elpm", "eor", "fmul", "fmuls",
	"fmulsu", "icall", "ijmp", "in", "inc", "jmp", "ld", "ldd", "ldi", "lds",
	"lpm", "lsr", "mov", "movw", "mul", "muls", "mulsu", "neg", "nop", "or",
	"ori", "out", "pop", "push", "rcall", "ret", "reti", "rjmp", "ror", "sbc",
	"sbci", "sbi", "sbic", "sbis", "sbiw", "sbrc", "sbrs", "sleep", "spm", "st",
	"std", "sts", "sub", "subi", "swap", "wdr",
}

func (op Op) String() string {
	if op >= 0 && op < OP_COUNT {
		return _op_names[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Ptr is the pointer register addressing mode of LD, ST, LPM and ELPM.
type Ptr int

const (
	PTR_NONE  = Ptr(0) // implied R0,Z form of LPM/ELPM
	PTR_X     = Ptr(1) // X
	PTR_X_INC = Ptr(2) // X+
	PTR_X_DEC = Ptr(3) // -X
	PTR_Y     = Ptr(4) // Y
	PTR_Y_INC = Ptr(5) // Y+
	PTR_Y_DEC = Ptr(6) // -Y
	PTR_Z     = Ptr(7) // Z
	PTR_Z_INC = Ptr(8) // Z+
	PTR_Z_DEC = Ptr(9) // -Z
)

var _ptr_names = [...]string{"", "X", "X+", "-X", "Y", "Y+", "-Y", "Z", "Z+", "-Z"}

func (p Ptr) String() string {
	if p >= 0 && int(p) < len(_ptr_names) {
		return _ptr_names[p]
	}
	return fmt.Sprintf("Ptr(%d)", int(p))
}

// Base returns the low register number of the pointer pair.
func (p Ptr) Base() uint8 {
	switch p {
	case PTR_X, PTR_X_INC, PTR_X_DEC:
		return REG_X
	case PTR_Y, PTR_Y_INC, PTR_Y_DEC:
		return REG_Y
	}
	return REG_Z
}

// Pointer register pairs.
const (
	REG_X = uint8(26)
	REG_Y = uint8(28)
	REG_Z = uint8(30)
)

// Instruction is a decoded instruction and its operand fields.
type Instruction struct {
	Op   Op
	Word uint16 // First opcode word.
	Rd   uint8  // Destination register.
	Rr   uint8  // Source register.
	K    uint8  // 8-bit or 6-bit immediate.
	Q    uint8  // Displacement of LDD/STD.
	A    uint8  // I/O address (IN/OUT 0-63, SBI/CBI/SBIC/SBIS 0-31).
	B    uint8  // Bit number, or SREG bit of BSET/BCLR/BRBS/BRBC.
	Off  int16  // Relative branch offset, in words.
	Addr uint32 // JMP/CALL word address, or LDS/STS data address.
	Ptr  Ptr
	Size uint32 // Instruction length in bytes, 2 or 4.
}

func (inst Instruction) String() string {
	op := inst.Op
	switch op {
	case OP_ADD, OP_ADC, OP_SUB, OP_SBC, OP_AND, OP_OR, OP_EOR, OP_MOV,
		OP_CP, OP_CPC, OP_CPSE, OP_MUL, OP_MULS, OP_MULSU, OP_FMUL,
		OP_FMULS, OP_FMULSU, OP_MOVW:
		return fmt.Sprintf("%v r%d, r%d", op, inst.Rd, inst.Rr)
	case OP_CPI, OP_SBCI, OP_SUBI, OP_ORI, OP_ANDI, OP_LDI, OP_ADIW, OP_SBIW:
		return fmt.Sprintf("%v r%d, 0x%02x", op, inst.Rd, inst.K)
	case OP_COM, OP_NEG, OP_SWAP, OP_INC, OP_ASR, OP_LSR, OP_ROR, OP_DEC, OP_POP:
		return fmt.Sprintf("%v r%d", op, inst.Rd)
	case OP_PUSH:
		return fmt.Sprintf("%v r%d", op, inst.Rr)
	case OP_LD:
		return fmt.Sprintf("%v r%d, %v", op, inst.Rd, inst.Ptr)
	case OP_ST:
		return fmt.Sprintf("%v %v, r%d", op, inst.Ptr, inst.Rr)
	case OP_LDD:
		return fmt.Sprintf("%v r%d, %v+%d", op, inst.Rd, inst.Ptr, inst.Q)
	case OP_STD:
		return fmt.Sprintf("%v %v+%d, r%d", op, inst.Ptr, inst.Q, inst.Rr)
	case OP_LDS:
		return fmt.Sprintf("%v r%d, 0x%04x", op, inst.Rd, inst.Addr)
	case OP_STS:
		return fmt.Sprintf("%v 0x%04x, r%d", op, inst.Addr, inst.Rr)
	case OP_LPM, OP_ELPM:
		if inst.Ptr == PTR_NONE {
			return op.String()
		}
		return fmt.Sprintf("%v r%d, %v", op, inst.Rd, inst.Ptr)
	case OP_JMP, OP_CALL:
		return fmt.Sprintf("%v 0x%05x", op, inst.Addr*2)
	case OP_RJMP, OP_RCALL:
		return fmt.Sprintf("%v .%+d", op, int(inst.Off)*2)
	case OP_BRBS, OP_BRBC:
		return fmt.Sprintf("%v %d, .%+d", op, inst.B, int(inst.Off)*2)
	case OP_BSET, OP_BCLR:
		return fmt.Sprintf("%v %d", op, inst.B)
	case OP_SBI, OP_CBI, OP_SBIC, OP_SBIS:
		return fmt.Sprintf("%v 0x%02x, %d", op, inst.A, inst.B)
	case OP_IN:
		return fmt.Sprintf("%v r%d, 0x%02x", op, inst.Rd, inst.A)
	case OP_OUT:
		return fmt.Sprintf("%v 0x%02x, r%d", op, inst.A, inst.Rr)
	case OP_BLD, OP_BST:
		return fmt.Sprintf("%v r%d, %d", op, inst.Rd, inst.B)
	case OP_SBRC, OP_SBRS:
		return fmt.Sprintf("%v r%d, %d", op, inst.Rr, inst.B)
	}
	return op.String()
}

// form is the operand field layout of an encoding.
type form int

const (
	form_none     = form(iota)
	form_rd_rr    // xxxx xxrd dddd rrrr
	form_rd       // xxxx xxxd dddd xxxx
	form_rr       // xxxx xxxr rrrr xxxx
	form_rd_k8    // xxxx KKKK dddd KKKK, r16-r31
	form_movw     // xxxx xxxx dddd rrrr, even pairs
	form_muls     // xxxx xxxx dddd rrrr, r16-r31
	form_mulsu    // xxxx xxxx xddd xrrr, r16-r23
	form_adiw     // xxxx xxxx KKdd KKKK
	form_ldd      // xxqx qqxd dddd xqqq
	form_std      // xxqx qqxr rrrr xqqq
	form_lds      // xxxx xxxd dddd xxxx + k16
	form_sts      // xxxx xxxr rrrr xxxx + k16
	form_jmp      // xxxx xxxk kkkk xxxk + k16
	form_rjmp     // xxxx kkkk kkkk kkkk
	form_branch   // xxxx xxkk kkkk ksss
	form_sreg     // xxxx xxxx xsss xxxx
	form_io_bit   // xxxx xxxx AAAA Abbb
	form_in       // xxxx xAAd dddd AAAA
	form_out      // xxxx xAAr rrrr AAAA
	form_rd_bit   // xxxx xxxd dddd xbbb
	form_rr_bit   // xxxx xxxr rrrr xbbb
)

// encoding is one entry of the opcode map.
type encoding struct {
	mask  uint16
	match uint16
	op    Op
	ptr   Ptr
	form  form
}

// _opcode_map is the AVR opcode map. It is sorted at init so that the most
// specific masks are compared first.
var _opcode_map = []encoding{
	{0xffff, 0x0000, OP_NOP, PTR_NONE, form_none},
	{0xff00, 0x0100, OP_MOVW, PTR_NONE, form_movw},
	{0xff00, 0x0200, OP_MULS, PTR_NONE, form_muls},
	{0xff88, 0x0300, OP_MULSU, PTR_NONE, form_mulsu},
	{0xff88, 0x0308, OP_FMUL, PTR_NONE, form_mulsu},
	{0xff88, 0x0380, OP_FMULS, PTR_NONE, form_mulsu},
	{0xff88, 0x0388, OP_FMULSU, PTR_NONE, form_mulsu},
	{0xfc00, 0x0400, OP_CPC, PTR_NONE, form_rd_rr},
	{0xfc00, 0x0800, OP_SBC, PTR_NONE, form_rd_rr},
	{0xfc00, 0x0c00, OP_ADD, PTR_NONE, form_rd_rr},
	{0xfc00, 0x1000, OP_CPSE, PTR_NONE, form_rd_rr},
	{0xfc00, 0x1400, OP_CP, PTR_NONE, form_rd_rr},
	{0xfc00, 0x1800, OP_SUB, PTR_NONE, form_rd_rr},
	{0xfc00, 0x1c00, OP_ADC, PTR_NONE, form_rd_rr},
	{0xfc00, 0x2000, OP_AND, PTR_NONE, form_rd_rr},
	{0xfc00, 0x2400, OP_EOR, PTR_NONE, form_rd_rr},
	{0xfc00, 0x2800, OP_OR, PTR_NONE, form_rd_rr},
	{0xfc00, 0x2c00, OP_MOV, PTR_NONE, form_rd_rr},
	{0xf000, 0x3000, OP_CPI, PTR_NONE, form_rd_k8},
	{0xf000, 0x4000, OP_SBCI, PTR_NONE, form_rd_k8},
	{0xf000, 0x5000, OP_SUBI, PTR_NONE, form_rd_k8},
	{0xf000, 0x6000, OP_ORI, PTR_NONE, form_rd_k8},
	{0xf000, 0x7000, OP_ANDI, PTR_NONE, form_rd_k8},
	{0xd208, 0x8000, OP_LDD, PTR_Z, form_ldd},
	{0xd208, 0x8008, OP_LDD, PTR_Y, form_ldd},
	{0xd208, 0x8200, OP_STD, PTR_Z, form_std},
	{0xd208, 0x8208, OP_STD, PTR_Y, form_std},
	{0xfe0f, 0x9000, OP_LDS, PTR_NONE, form_lds},
	{0xfe0f, 0x9001, OP_LD, PTR_Z_INC, form_rd},
	{0xfe0f, 0x9002, OP_LD, PTR_Z_DEC, form_rd},
	{0xfe0f, 0x9004, OP_LPM, PTR_Z, form_rd},
	{0xfe0f, 0x9005, OP_LPM, PTR_Z_INC, form_rd},
	{0xfe0f, 0x9006, OP_ELPM, PTR_Z, form_rd},
	{0xfe0f, 0x9007, OP_ELPM, PTR_Z_INC, form_rd},
	{0xfe0f, 0x9009, OP_LD, PTR_Y_INC, form_rd},
	{0xfe0f, 0x900a, OP_LD, PTR_Y_DEC, form_rd},
	{0xfe0f, 0x900c, OP_LD, PTR_X, form_rd},
	{0xfe0f, 0x900d, OP_LD, PTR_X_INC, form_rd},
	{0xfe0f, 0x900e, OP_LD, PTR_X_DEC, form_rd},
	{0xfe0f, 0x900f, OP_POP, PTR_NONE, form_rd},
	{0xfe0f, 0x9200, OP_STS, PTR_NONE, form_sts},
	{0xfe0f, 0x9201, OP_ST, PTR_Z_INC, form_rr},
	{0xfe0f, 0x9202, OP_ST, PTR_Z_DEC, form_rr},
	{0xfe0f, 0x9209, OP_ST, PTR_Y_INC, form_rr},
	{0xfe0f, 0x920a, OP_ST, PTR_Y_DEC, form_rr},
	{0xfe0f, 0x920c, OP_ST, PTR_X, form_rr},
	{0xfe0f, 0x920d, OP_ST, PTR_X_INC, form_rr},
	{0xfe0f, 0x920e, OP_ST, PTR_X_DEC, form_rr},
	{0xfe0f, 0x920f, OP_PUSH, PTR_NONE, form_rr},
	{0xfe0f, 0x9400, OP_COM, PTR_NONE, form_rd},
	{0xfe0f, 0x9401, OP_NEG, PTR_NONE, form_rd},
	{0xfe0f, 0x9402, OP_SWAP, PTR_NONE, form_rd},
	{0xfe0f, 0x9403, OP_INC, PTR_NONE, form_rd},
	{0xfe0f, 0x9405, OP_ASR, PTR_NONE, form_rd},
	{0xfe0f, 0x9406, OP_LSR, PTR_NONE, form_rd},
	{0xfe0f, 0x9407, OP_ROR, PTR_NONE, form_rd},
	{0xfe0f, 0x940a, OP_DEC, PTR_NONE, form_rd},
	{0xfe0e, 0x940c, OP_JMP, PTR_NONE, form_jmp},
	{0xfe0e, 0x940e, OP_CALL, PTR_NONE, form_jmp},
	{0xff8f, 0x9408, OP_BSET, PTR_NONE, form_sreg},
	{0xff8f, 0x9488, OP_BCLR, PTR_NONE, form_sreg},
	{0xffff, 0x9409, OP_IJMP, PTR_NONE, form_none},
	{0xffff, 0x9419, OP_EIJMP, PTR_NONE, form_none},
	{0xffff, 0x9508, OP_RET, PTR_NONE, form_none},
	{0xffff, 0x9509, OP_ICALL, PTR_NONE, form_none},
	{0xffff, 0x9518, OP_RETI, PTR_NONE, form_none},
	{0xffff, 0x9519, OP_EICALL, PTR_NONE, form_none},
	{0xffff, 0x9588, OP_SLEEP, PTR_NONE, form_none},
	{0xffff, 0x9598, OP_BREAK, PTR_NONE, form_none},
	{0xffff, 0x95a8, OP_WDR, PTR_NONE, form_none},
	{0xffff, 0x95c8, OP_LPM, PTR_NONE, form_none},
	{0xffff, 0x95d8, OP_ELPM, PTR_NONE, form_none},
	{0xffff, 0x95e8, OP_SPM, PTR_NONE, form_none},
	{0xff00, 0x9600, OP_ADIW, PTR_NONE, form_adiw},
	{0xff00, 0x9700, OP_SBIW, PTR_NONE, form_adiw},
	{0xff00, 0x9800, OP_CBI, PTR_NONE, form_io_bit},
	{0xff00, 0x9900, OP_SBIC, PTR_NONE, form_io_bit},
	{0xff00, 0x9a00, OP_SBI, PTR_NONE, form_io_bit},
	{0xff00, 0x9b00, OP_SBIS, PTR_NONE, form_io_bit},
	{0xfc00, 0x9c00, OP_MUL, PTR_NONE, form_rd_rr},
	{0xf800, 0xb000, OP_IN, PTR_NONE, form_in},
	{0xf800, 0xb800, OP_OUT, PTR_NONE, form_out},
	{0xf000, 0xc000, OP_RJMP, PTR_NONE, form_rjmp},
	{0xf000, 0xd000, OP_RCALL, PTR_NONE, form_rjmp},
	{0xf000, 0xe000, OP_LDI, PTR_NONE, form_rd_k8},
	{0xfc00, 0xf000, OP_BRBS, PTR_NONE, form_branch},
	{0xfc00, 0xf400, OP_BRBC, PTR_NONE, form_branch},
	{0xfe08, 0xf800, OP_BLD, PTR_NONE, form_rd_bit},
	{0xfe08, 0xfa00, OP_BST, PTR_NONE, form_rd_bit},
	{0xfe08, 0xfc00, OP_SBRC, PTR_NONE, form_rr_bit},
	{0xfe08, 0xfe00, OP_SBRS, PTR_NONE, form_rr_bit},
}

func init() {
	slices.SortStableFunc(_opcode_map, func(a, b encoding) int {
		return bits.OnesCount16(b.mask) - bits.OnesCount16(a.mask)
	})
}

// twoWord is true for forms followed by a 16-bit operand word.
func (fm form) twoWord() bool {
	return fm == form_lds || fm == form_sts || fm == form_jmp
}

// lookup finds the opcode map entry matching a word.
func lookup(word uint16) (enc *encoding, ok bool) {
	for n := range _opcode_map {
		enc = &_opcode_map[n]
		if word&enc.mask == enc.match {
			ok = true
			return
		}
	}
	enc = nil
	return
}

// IsTwoWord is true if the instruction word starts a 32-bit instruction.
func IsTwoWord(word uint16) bool {
	enc, ok := lookup(word)
	return ok && enc.form.twoWord()
}
