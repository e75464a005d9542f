// Package encoder turns a fully allocated mcode.MCode into x86-64 AVX2
// machine bytes, following the VEX-prefix/ModR/M contracts in the design
// exactly: 2-byte VEX (0xC5) whenever every operand register fits in 0-7,
// falling back to a 3-byte VEX (0xC4) only for the handful of forms that
// need a REX.B-style base extension (memory operands through R8, the
// output-buffer argument register) or a non-default opcode map
// (vbroadcastss/vroundps/vblendvps, all 0F38/0F3A-map instructions).
package encoder

import (
	"fmt"

	"github.com/Hypersonic/sdfjit/internal/compileerr"
	"github.com/Hypersonic/sdfjit/internal/mcode"
)

// Span records where one instruction's bytes landed in the code buffer, so
// a disassembly listing can show offset/length side by side with the
// decoded text.
type Span struct {
	Offset int
	Length int
}

// Encoder accumulates encoded bytes and the parallel offset table.
type Encoder struct {
	Code  []byte
	Spans []Span
}

func regNum(r mcode.Register) int {
	return int(r.Machine)
}

// Encode appends m's instructions' bytes, in order, and records a Span for
// each (Nop included, with Length 0). It returns an error wrapping
// compileerr.UnsupportedOperandShape for any instruction whose operand
// shapes aren't covered below — the encoder never guesses.
func Encode(e *Encoder, m *mcode.MCode) error {
	for i := range m.Instructions {
		ins := &m.Instructions[i]
		start := len(e.Code)
		if err := e.encodeOne(ins); err != nil {
			return fmt.Errorf("encoding instruction %d (%s): %w", i, ins, err)
		}
		e.Spans = append(e.Spans, Span{Offset: start, Length: len(e.Code) - start})
	}
	return nil
}

func (e *Encoder) emit(bs ...byte) { e.Code = append(e.Code, bs...) }

var vec3Opcode = map[mcode.Opcode]byte{
	mcode.Vaddps: 0x58,
	mcode.Vsubps: 0x5C,
	mcode.Vmulps: 0x59,
	mcode.Vdivps: 0x5E,
	mcode.Vminps: 0x5D,
	mcode.Vmaxps: 0x5F,
	mcode.Vandps: 0x54,
	mcode.Vxorps: 0x57,
}

var vecUnaryOpcode = map[mcode.Opcode]byte{
	mcode.Vsqrtps:  0x51,
	mcode.Vrsqrtps: 0x52,
}

func (e *Encoder) encodeOne(ins *mcode.Instruction) error {
	switch ins.Op {
	case mcode.Nop:
		return nil

	case mcode.Vaddps, mcode.Vsubps, mcode.Vmulps, mcode.Vdivps,
		mcode.Vminps, mcode.Vmaxps, mcode.Vandps, mcode.Vxorps:
		return e.encodeVec3(ins, vec3Opcode[ins.Op])

	case mcode.Vsqrtps, mcode.Vrsqrtps:
		return e.encodeVecUnary(ins, vecUnaryOpcode[ins.Op])

	case mcode.Vmovaps:
		return e.encodeVmovaps(ins)

	case mcode.Vbroadcastss:
		return e.encodeVbroadcastss(ins)

	case mcode.Vpslld:
		return e.encodeShiftImm(ins, 0xF0)
	case mcode.Vpsrld:
		return e.encodeShiftImm(ins, 0xD0)

	case mcode.Vroundps:
		return e.encodeVroundps(ins)

	case mcode.Vcmpps:
		return e.encodeVcmpps(ins)
	case mcode.Vblendvps:
		return e.encodeVblendvps(ins)

	case mcode.Mov:
		return e.encodeMovR64(ins)
	case mcode.Add:
		return e.encodeAddSubR64(ins, 0)
	case mcode.Sub:
		return e.encodeAddSubR64(ins, 5)
	case mcode.And64:
		return e.encodeAnd64(ins)
	case mcode.Push:
		e.emit(0x50 | byte(regNum(ins.Operands[0])))
		return nil
	case mcode.Pop:
		e.emit(0x58 | byte(regNum(ins.Operands[0])))
		return nil
	case mcode.Ret:
		e.emit(0xC3)
		return nil

	default:
		return compileerr.New(compileerr.UnsupportedOperandShape, "opcode %s has no encoding", ins.Op)
	}
}

// requireReg8 verifies every register operand (not a memory base) is in the
// 0-7 range the 2-byte VEX form requires.
func requireReg8(n int) error {
	if n > 7 {
		return compileerr.New(compileerr.UnsupportedOperandShape,
			"register number %d exceeds the 2-byte VEX range", n)
	}
	return nil
}

func (e *Encoder) encodeVec3(ins *mcode.Instruction, opcode byte) error {
	dst, src1, src2 := ins.Operands[0], ins.Operands[1], ins.Operands[2]
	if !dst.IsMachine() || !src1.IsMachine() || !src2.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "vector binary op requires three machine registers")
	}
	d, s1, s2 := regNum(dst), regNum(src1), regNum(src2)
	if err := requireReg8(d); err != nil {
		return err
	}
	if err := requireReg8(s2); err != nil {
		return err
	}
	e.emit(0xC5, 0x80|byte((^s1&0xF)<<3)|0x04, opcode, 0xC0|byte(d<<3)|byte(s2))
	return nil
}

func (e *Encoder) encodeVecUnary(ins *mcode.Instruction, opcode byte) error {
	dst, src := ins.Operands[0], ins.Operands[1]
	if !dst.IsMachine() || !src.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "vector unary op requires two machine registers")
	}
	d, s := regNum(dst), regNum(src)
	if err := requireReg8(d); err != nil {
		return err
	}
	if err := requireReg8(s); err != nil {
		return err
	}
	e.emit(0xC5, 0xFC, opcode, 0xC0|byte(d<<3)|byte(s))
	return nil
}

// memAddressing appends ModR/M (with the reg field pre-filled by regField),
// an SIB byte if the base is rsp/r12, and a displacement, for a memory
// operand. Only the low three bits of the base register number are encoded
// here; for bases 8-15 the caller's 3-byte VEX prefix carries the extension.
func (e *Encoder) memAddressing(regField int, mem mcode.Register) error {
	if !mem.IsMemory() || !mem.Base.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "expected a machine-based memory operand")
	}
	base := regNum(*mem.Base)
	baseLow := base & 0x7
	off := mem.Offset

	var mod byte
	switch {
	case off == 0 && baseLow != 5:
		mod = 0b00
	case off >= -128 && off <= 127:
		mod = 0b01
	default:
		mod = 0b10
	}

	e.emit(mod<<6 | byte(regField<<3) | byte(baseLow))
	if baseLow == 0b100 {
		e.emit(0x24) // SIB: scale=0, index=none, base=rsp
	}
	switch mod {
	case 0b01:
		e.emit(byte(int8(off)))
	case 0b10:
		e.emit(byte(off), byte(off>>8), byte(off>>16), byte(off>>24))
	}
	return nil
}

func (e *Encoder) encodeVmovaps(ins *mcode.Instruction) error {
	dst, src := ins.Operands[0], ins.Operands[1]

	switch {
	case dst.IsMachine() && src.IsMachine():
		d, s := regNum(dst), regNum(src)
		if err := requireReg8(d); err != nil {
			return err
		}
		if err := requireReg8(s); err != nil {
			return err
		}
		e.emit(0xC5, 0xFC, 0x28, 0xC0|byte(d<<3)|byte(s))
		return nil

	case dst.IsMachine() && src.IsMemory():
		return e.vmovapsMem(dst, src, 0x28)

	case dst.IsMemory() && src.IsMachine():
		return e.vmovapsMem(src, dst, 0x29)

	default:
		return compileerr.New(compileerr.UnsupportedOperandShape, "vmovaps requires a register operand on one side")
	}
}

func (e *Encoder) vmovapsMem(reg, mem mcode.Register, opcode byte) error {
	if !reg.IsMachine() || !mem.IsMemory() || !mem.Base.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "vmovaps memory form requires a machine register and a machine-based memory operand")
	}
	r := regNum(reg)
	if err := requireReg8(r); err != nil {
		return err
	}
	base := regNum(*mem.Base)

	if base > 7 {
		e.emit(0xC4, 0xC1, 0x7C, opcode)
	} else {
		e.emit(0xC5, 0xFC, opcode)
	}
	return e.memAddressing(r, mem)
}

func (e *Encoder) encodeVbroadcastss(ins *mcode.Instruction) error {
	dst, src := ins.Operands[0], ins.Operands[1]
	if !dst.IsMachine() || !src.IsMemory() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "vbroadcastss requires a register destination and a memory source")
	}
	d := regNum(dst)
	if err := requireReg8(d); err != nil {
		return err
	}
	e.emit(0xC4, 0xE2, 0x7D, 0x18)
	return e.memAddressing(d, src)
}

func (e *Encoder) encodeShiftImm(ins *mcode.Instruction, subop byte) error {
	dst, src := ins.Operands[0], ins.Operands[1]
	if !dst.IsMachine() || !src.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "shift-immediate requires two machine registers")
	}
	d, s := regNum(dst), regNum(src)
	if err := requireReg8(d); err != nil {
		return err
	}
	if err := requireReg8(s); err != nil {
		return err
	}
	if ins.Imm8 > 0xFF {
		return compileerr.New(compileerr.OutOfRangeImmediate, "shift immediate %d exceeds 0xFF", ins.Imm8)
	}
	e.emit(0xC5, 0x80|byte((^d&0xF)<<3)|0x05, 0x72, subop|byte(s), ins.Imm8)
	return nil
}

func (e *Encoder) encodeVroundps(ins *mcode.Instruction) error {
	dst, src := ins.Operands[0], ins.Operands[1]
	if !dst.IsMachine() || !src.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "vroundps requires two machine registers")
	}
	d, s := regNum(dst), regNum(src)
	if err := requireReg8(d); err != nil {
		return err
	}
	if err := requireReg8(s); err != nil {
		return err
	}
	e.emit(0xC4, 0xE3, 0x7D, 0x08, 0xC0|byte(d<<3)|byte(s), ins.Imm8)
	return nil
}

func (e *Encoder) encodeVcmpps(ins *mcode.Instruction) error {
	dst, src1, src2 := ins.Operands[0], ins.Operands[1], ins.Operands[2]
	if !dst.IsMachine() || !src1.IsMachine() || !src2.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "vcmpps requires three machine registers")
	}
	d, s1, s2 := regNum(dst), regNum(src1), regNum(src2)
	if err := requireReg8(d); err != nil {
		return err
	}
	if err := requireReg8(s2); err != nil {
		return err
	}
	e.emit(0xC5, 0x80|byte((^s1&0xF)<<3)|0x04, 0xC2, 0xC0|byte(d<<3)|byte(s2), ins.Imm8)
	return nil
}

func (e *Encoder) encodeVblendvps(ins *mcode.Instruction) error {
	dst, falseCase, trueCase, mask := ins.Operands[0], ins.Operands[1], ins.Operands[2], ins.Operands[3]
	if !dst.IsMachine() || !falseCase.IsMachine() || !trueCase.IsMachine() || !mask.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "vblendvps requires four machine registers")
	}
	d, f, t, msk := regNum(dst), regNum(falseCase), regNum(trueCase), regNum(mask)
	for _, n := range []int{d, t} {
		if err := requireReg8(n); err != nil {
			return err
		}
	}
	e.emit(0xC4, 0xE3, byte((^f&0xF)<<3)|0x05, 0x4A, 0xC0|byte(d<<3)|byte(t), byte(msk<<4))
	return nil
}

func (e *Encoder) encodeMovR64(ins *mcode.Instruction) error {
	dst, src := ins.Operands[0], ins.Operands[1]
	if !dst.IsMachine() || !src.IsMachine() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "mov r64,r64 requires two machine registers")
	}
	e.emit(0x48, 0x89, 0xC0|byte(regNum(src)<<3)|byte(regNum(dst)))
	return nil
}

func (e *Encoder) encodeAddSubR64(ins *mcode.Instruction, regExt int) error {
	dst, src := ins.Operands[0], ins.Operands[1]
	if !dst.IsMachine() || !src.IsImmediate() {
		return compileerr.New(compileerr.UnsupportedOperandShape, "add/sub r64,imm requires a machine register and an immediate")
	}
	d := regNum(dst)
	imm := int64(src.Immediate)
	if imm >= -128 && imm <= 127 {
		e.emit(0x48, 0x83, 0xC0|byte(regExt<<3)|byte(d), byte(int8(imm)))
		return nil
	}
	if imm < -(1<<31) || imm > (1<<31)-1 {
		return compileerr.New(compileerr.OutOfRangeImmediate, "add/sub immediate %d does not fit in 32 bits", imm)
	}
	e.emit(0x48, 0x81, 0xC0|byte(regExt<<3)|byte(d))
	u := uint32(imm)
	e.emit(byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	return nil
}

func (e *Encoder) encodeAnd64(ins *mcode.Instruction) error {
	dst, src := ins.Operands[0], ins.Operands[1]
	if !dst.IsMachine() || regNum(dst) != int(mcode.RSP) || !src.IsImmediate() || src.Immediate != 0xFFFFFFFFFFFFFFE0 {
		return compileerr.New(compileerr.UnsupportedOperandShape, "and64 is only encoded for (rsp, 0xFFFFFFFFFFFFFFE0)")
	}
	e.emit(0x48, 0x81, 0xE4, 0xE0, 0xFF, 0xFF, 0xFF)
	return nil
}
