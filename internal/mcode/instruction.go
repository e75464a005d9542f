package mcode

import (
	"fmt"
	"io"
)

// Opcode names one machine instruction. Vector opcodes operate on whole YMM
// lanes; the scalar opcodes exist only to build the prologue/epilogue.
type Opcode uint8

const (
	Nop Opcode = iota

	// Vector binary, non-destructive three-address form (dst, src1, src2).
	Vaddps
	Vsubps
	Vmulps
	Vdivps
	Vminps
	Vmaxps
	Vandps
	Vxorps

	// Vector unary (dst, src).
	Vsqrtps
	Vrsqrtps

	// Vmovaps covers reg<-reg, reg<-mem, and mem<-reg depending on operand
	// kinds; see encoder.
	Vmovaps

	// Vbroadcastss: dst <- [src] (one float32), broadcast across all lanes.
	Vbroadcastss

	// Shift-immediate (dst, src, imm8).
	Vpslld
	Vpsrld

	// Vroundps: dst, src, imm8 (rounding mode; 0b11 is truncation).
	Vroundps

	// Vcmpps: dst, src1, src2, imm8 predicate; produces an all-ones/all-zero
	// per-lane mask. Supports the Select bytecode opcode (not in the original
	// catalog; added for Select's comparator).
	Vcmpps
	// Vblendvps: dst, falseCase, trueCase, mask — per-lane select keyed by
	// the sign bit of each mask lane, the natural pairing for Vcmpps' output.
	Vblendvps

	// Scalar 64-bit GP instructions used only by the prologue/epilogue.
	Mov
	Add
	Sub
	And64
	Push
	Pop
	Ret
)

func (op Opcode) String() string {
	switch op {
	case Nop:
		return "nop"
	case Vaddps:
		return "vaddps"
	case Vsubps:
		return "vsubps"
	case Vmulps:
		return "vmulps"
	case Vdivps:
		return "vdivps"
	case Vminps:
		return "vminps"
	case Vmaxps:
		return "vmaxps"
	case Vandps:
		return "vandps"
	case Vxorps:
		return "vxorps"
	case Vsqrtps:
		return "vsqrtps"
	case Vrsqrtps:
		return "vrsqrtps"
	case Vmovaps:
		return "vmovaps"
	case Vbroadcastss:
		return "vbroadcastss"
	case Vpslld:
		return "vpslld"
	case Vpsrld:
		return "vpsrld"
	case Vroundps:
		return "vroundps"
	case Vcmpps:
		return "vcmpps"
	case Vblendvps:
		return "vblendvps"
	case Mov:
		return "mov"
	case Add:
		return "add"
	case Sub:
		return "sub"
	case And64:
		return "and"
	case Push:
		return "push"
	case Pop:
		return "pop"
	case Ret:
		return "ret"
	default:
		panic(fmt.Sprintf("sdfjit: unreachable mcode opcode %d", uint8(op)))
	}
}

// OpcodeInfo is the static per-opcode metadata the design calls for: a
// single table, rather than scattered ad-hoc checks, drives every pass that
// needs to know an opcode's shape (allocator materialisation, immediate
// resolution, peepholes).
type OpcodeInfo struct {
	// Operands is the number of positional register operands.
	Operands int
	// Set/Use list, by operand index, which positions are written/read.
	// An operand can appear in both: the scalar Add/Sub/And64 read and
	// write operand 0.
	Set []int
	Use []int
	// AllowsImmediate/AllowsMemory say whether an Immediate or Memory
	// Register may appear in any operand position without first being
	// resolved to something else.
	AllowsImmediate bool
	AllowsMemory    bool
}

var opcodeTable = map[Opcode]OpcodeInfo{
	Nop: {Operands: 0},

	Vaddps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vsubps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vmulps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vdivps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vminps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vmaxps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vandps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vxorps:   {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsMemory: true},
	Vsqrtps:  {Operands: 2, Set: []int{0}, Use: []int{1}, AllowsMemory: true},
	Vrsqrtps: {Operands: 2, Set: []int{0}, Use: []int{1}, AllowsMemory: true},

	Vmovaps: {Operands: 2, Set: []int{0}, Use: []int{1}, AllowsMemory: true},

	Vbroadcastss: {Operands: 2, Set: []int{0}, Use: []int{1}, AllowsMemory: true},

	Vpslld: {Operands: 2, Set: []int{0}, Use: []int{1}, AllowsImmediate: true},
	Vpsrld: {Operands: 2, Set: []int{0}, Use: []int{1}, AllowsImmediate: true},

	Vroundps: {Operands: 2, Set: []int{0}, Use: []int{1}, AllowsImmediate: true},

	Vcmpps:    {Operands: 3, Set: []int{0}, Use: []int{1, 2}, AllowsImmediate: true, AllowsMemory: true},
	Vblendvps: {Operands: 4, Set: []int{0}, Use: []int{1, 2, 3}, AllowsMemory: true},

	Mov:   {Operands: 2, Set: []int{0}, Use: []int{1}},
	Add:   {Operands: 2, Set: []int{0}, Use: []int{0, 1}, AllowsImmediate: true},
	Sub:   {Operands: 2, Set: []int{0}, Use: []int{0, 1}, AllowsImmediate: true},
	And64: {Operands: 2, Set: []int{0}, Use: []int{0, 1}, AllowsImmediate: true},
	Push:  {Operands: 1, Use: []int{0}},
	Pop:   {Operands: 1, Set: []int{0}},
	Ret:   {Operands: 0},
}

// Info returns op's static metadata. Every Opcode constant above has an
// entry; a missing entry is a programmer error in this table, not a user
// input error, so it panics rather than returning an error.
func (op Opcode) Info() OpcodeInfo {
	info, ok := opcodeTable[op]
	if !ok {
		panic(fmt.Sprintf("sdfjit: opcode %s has no metadata entry", op))
	}
	return info
}

// Instruction is one machine instruction: an opcode plus a positionally
// meaningful operand list. Imm8 carries the shift/round immediate for
// Vpslld/Vpsrld/Vroundps, kept out of the Register list because those
// immediates are never subject to constant-pool resolution (see §4.6).
type Instruction struct {
	Op       Opcode
	Operands []Register
	Imm8     uint8
}

// Uses reports whether ins reads or writes v anywhere in its operand list.
func (ins *Instruction) Uses(v VirtualID) bool {
	for _, r := range ins.Operands {
		if r.IsVirtual() && r.Virtual == v {
			return true
		}
		if r.IsMemory() && r.Base.IsVirtual() && r.Base.Virtual == v {
			return true
		}
	}
	return false
}

func (ins *Instruction) String() string {
	s := ins.Op.String()
	for i, r := range ins.Operands {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		s += r.String()
	}
	switch ins.Op {
	case Vpslld, Vpsrld, Vroundps, Vcmpps:
		s += fmt.Sprintf(", %d", ins.Imm8)
	}
	return s
}

// MCode is the ordered instruction list that moves through lowering,
// immediate resolution, register allocation, prologue/epilogue insertion,
// late peepholes, and finally the encoder.
type MCode struct {
	Instructions []Instruction
}

func (m *MCode) Append(ins Instruction) int {
	m.Instructions = append(m.Instructions, ins)
	return len(m.Instructions) - 1
}

// Dump writes a flat, line-per-instruction listing of m to w.
func (m *MCode) Dump(w io.Writer) {
	for i, ins := range m.Instructions {
		fmt.Fprintf(w, "%4d: %s\n", i, ins.String())
	}
}
