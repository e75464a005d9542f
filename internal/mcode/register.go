// Package mcode implements the machine-level intermediate representation:
// virtual and physical registers, opcode metadata, the constant pool, stack
// slot bookkeeping, the insertion set used for deferred edits, and the
// bytecode-to-machine lowering pass. This is the largest IR in the pipeline
// and the one closest to the final encoded bytes.
package mcode

import (
	"fmt"

	"github.com/Hypersonic/sdfjit/internal/util"
)

// RegKind discriminates the four Register variants named in the design: a
// virtual id awaiting allocation, a concrete machine register, a memory
// operand, or an immediate literal.
type RegKind uint8

const (
	RegVirtual RegKind = iota
	RegMachine
	RegMemory
	RegImmediate
)

// MachineReg names a concrete x86-64 register, general-purpose or YMM. The
// numeric value is the register's encoding number (0-15); Class says which
// file it belongs to.
type MachineReg uint8

const (
	RAX MachineReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// YMM0..YMM15 name the 256-bit vector registers. They reuse the same 0-15
// numbering as the GP registers; RegClass on the owning Register says which
// namespace applies.
const (
	YMM0 MachineReg = iota
	YMM1
	YMM2
	YMM3
	YMM4
	YMM5
	YMM6
	YMM7
	YMM8
	YMM9
	YMM10
	YMM11
	YMM12
	YMM13
	YMM14
	YMM15
)

// RegClass says whether a MachineReg value is a general-purpose integer
// register or a YMM vector register.
type RegClass uint8

const (
	ClassGP RegClass = iota
	ClassYMM
)

// VirtualID is a unique virtual register identifier, assigned in allocation
// order (birth order) by Lower.
type VirtualID int32

// Register is the tagged union described in the design: exactly one of the
// fields below is meaningful, selected by Kind.
type Register struct {
	Kind RegKind

	Virtual VirtualID

	Machine MachineReg
	Class   RegClass

	// Memory: [Base + Offset]. Base is itself a Register (Virtual before
	// allocation, Machine after).
	Base   *Register
	Offset int32

	// Immediate: a 64-bit payload. Vector immediates are float32s bitcast
	// via util.Float32ToBits into the low 32 bits; mask immediates (e.g.
	// Negate's sign bit) occupy whatever width the consuming opcode needs.
	Immediate uint64
}

// VReg constructs a virtual register operand.
func VReg(id VirtualID) Register {
	return Register{Kind: RegVirtual, Virtual: id}
}

// GPReg constructs a general-purpose machine register operand.
func GPReg(r MachineReg) Register {
	return Register{Kind: RegMachine, Machine: r, Class: ClassGP}
}

// YMMReg constructs a YMM machine register operand.
func YMMReg(r MachineReg) Register {
	return Register{Kind: RegMachine, Machine: r, Class: ClassYMM}
}

// Mem constructs a [base + offset] memory operand.
func Mem(base Register, offset int32) Register {
	return Register{Kind: RegMemory, Base: &base, Offset: offset}
}

// Imm constructs an immediate operand from a raw 64-bit payload.
func Imm(v uint64) Register {
	return Register{Kind: RegImmediate, Immediate: v}
}

// ImmFloat32 constructs an immediate operand carrying a float32 bitcast into
// the low 32 bits.
func ImmFloat32(v float32) Register {
	return Imm(uint64(util.Float32ToBits(v)))
}

func (r Register) IsVirtual() bool  { return r.Kind == RegVirtual }
func (r Register) IsMachine() bool  { return r.Kind == RegMachine }
func (r Register) IsMemory() bool   { return r.Kind == RegMemory }
func (r Register) IsImmediate() bool { return r.Kind == RegImmediate }

func (r Register) String() string {
	switch r.Kind {
	case RegVirtual:
		return fmt.Sprintf("%%v%d", r.Virtual)
	case RegMachine:
		if r.Class == ClassYMM {
			return fmt.Sprintf("ymm%d", r.Machine)
		}
		return gpName(r.Machine)
	case RegMemory:
		if r.Offset == 0 {
			return fmt.Sprintf("[%s]", r.Base.String())
		}
		return fmt.Sprintf("[%s+%d]", r.Base.String(), r.Offset)
	case RegImmediate:
		return fmt.Sprintf("0x%x", r.Immediate)
	default:
		panic("sdfjit: unreachable register kind")
	}
}

func gpName(r MachineReg) string {
	switch r {
	case RAX:
		return "rax"
	case RCX:
		return "rcx"
	case RDX:
		return "rdx"
	case RBX:
		return "rbx"
	case RSP:
		return "rsp"
	case RBP:
		return "rbp"
	case RSI:
		return "rsi"
	case RDI:
		return "rdi"
	case R8:
		return "r8"
	case R9:
		return "r9"
	case R10:
		return "r10"
	case R11:
		return "r11"
	case R12:
		return "r12"
	case R13:
		return "r13"
	case R14:
		return "r14"
	case R15:
		return "r15"
	default:
		panic("sdfjit: unreachable machine register")
	}
}
