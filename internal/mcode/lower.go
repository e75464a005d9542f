package mcode

import (
	"math"

	"github.com/Hypersonic/sdfjit/internal/bytecode"
	"github.com/Hypersonic/sdfjit/internal/compileerr"
	"github.com/Hypersonic/sdfjit/internal/util"
)

// Argument-register bindings, System V AMD64 order: the first four pointer
// arguments are the x/y/z lane bases and the constant-pool base; the fifth
// is the output buffer.
const (
	argX         = RDI
	argY         = RSI
	argZ         = RDX
	argConstants = RCX
	argOutput    = R8
)

const (
	pi       = math.Pi
	twoPi    = 2 * math.Pi
	piHalf   = math.Pi / 2
	piSq5    = 5 * math.Pi * math.Pi
)

type lowerer struct {
	m       MCode
	nextVID VirtualID
	values  map[bytecode.NodeID]Register
}

func (l *lowerer) fresh() Register {
	id := l.nextVID
	l.nextVID++
	return VReg(id)
}

func (l *lowerer) emit(op Opcode, operands ...Register) Register {
	dst := l.fresh()
	ops := append([]Register{dst}, operands...)
	l.m.Append(Instruction{Op: op, Operands: ops})
	return dst
}

func (l *lowerer) emitImm(op Opcode, imm8 uint8, operands ...Register) Register {
	dst := l.fresh()
	ops := append([]Register{dst}, operands...)
	l.m.Append(Instruction{Op: op, Operands: ops, Imm8: imm8})
	return dst
}

func (l *lowerer) broadcast(bits uint32) Register {
	dst := l.fresh()
	l.m.Append(Instruction{Op: Vbroadcastss, Operands: []Register{dst, Imm(uint64(bits))}})
	return dst
}

func (l *lowerer) broadcastF32(v float32) Register {
	return l.broadcast(util.Float32ToBits(v))
}

// mod computes dividend - trunc(dividend/divisor)*divisor, the recipe
// shared by the bytecode Mod opcode and the Sin/Cos range reduction.
func (l *lowerer) mod(dividend, divisor Register) Register {
	q := l.emit(Vdivps, dividend, divisor)
	tq := l.emitImm(Vroundps, 0b11, q) // truncation
	tqm := l.emit(Vmulps, tq, divisor)
	return l.emit(Vsubps, dividend, tqm)
}

// bhaskaraSin computes sin(x) via Bhaskara I's approximation: x is reduced
// to [0, 2pi) by a floored mod-2pi, then shifted by -pi so |x'| lies in
// [0, pi]; the sign bit of x' is stashed, flipped (sin(x) = -sin(x')), and
// applied to the result.
func (l *lowerer) bhaskaraSin(x Register) Register {
	twoPiV := l.broadcastF32(twoPi)
	q := l.emitImm(Vroundps, 0b01, l.emit(Vdivps, x, twoPiV)) // floor
	reduced := l.emit(Vsubps, x, l.emit(Vmulps, q, twoPiV))
	piV := l.broadcastF32(pi)
	xPrime := l.emit(Vsubps, reduced, piV)

	signMask := l.broadcast(0x80000000)
	sign := l.emit(Vandps, xPrime, signMask)
	absMask := l.broadcast(0x7FFFFFFF)
	ax := l.emit(Vandps, xPrime, absMask)

	piMinusAx := l.emit(Vsubps, piV, ax)
	term := l.emit(Vmulps, ax, piMinusAx)

	sixteen := l.broadcastF32(16)
	numer := l.emit(Vmulps, sixteen, term)

	four := l.broadcastF32(4)
	denomTerm := l.emit(Vmulps, four, term)
	piSq5V := l.broadcastF32(piSq5)
	denom := l.emit(Vsubps, piSq5V, denomTerm)

	unsigned := l.emit(Vdivps, numer, denom)
	flipped := l.emit(Vxorps, sign, signMask)
	return l.emit(Vxorps, unsigned, flipped)
}

func (l *lowerer) abs(v Register) Register {
	shifted := l.emitImm(Vpslld, 1, v)
	return l.emitImm(Vpsrld, 1, shifted)
}

func (l *lowerer) negate(v Register) Register {
	mask := l.broadcast(0x80000000)
	return l.emit(Vxorps, v, mask)
}

func cmpPredicate(cmp bytecode.CompareType) uint8 {
	switch cmp {
	case bytecode.EQ:
		return 0x00
	case bytecode.LT:
		return 0x01
	case bytecode.GT:
		return 0x0E
	default:
		panic("sdfjit: unreachable compare type")
	}
}

// Lower performs the forward bc-id -> Register sweep described in §4.4:
// binary bytecode ops become their AVX counterparts, and the handful of
// opcodes without a direct instruction (Abs, Negate, Sin, Cos, Mod,
// Select) expand into the short instruction sequences detailed in §4.4/4.5.
func Lower(bc *bytecode.Bytecode) (*MCode, error) {
	l := &lowerer{values: make(map[bytecode.NodeID]Register, len(bc.Nodes))}

	argBase := func(idx int) MachineReg {
		switch idx {
		case 0:
			return argX
		case 1:
			return argY
		case 2:
			return argZ
		case 3:
			return argConstants
		default:
			panic("sdfjit: unreachable load_arg index")
		}
	}

	for i := range bc.Nodes {
		id := bytecode.NodeID(i)
		n := &bc.Nodes[i]

		switch n.Op {
		case bytecode.Nop:
			continue

		case bytecode.LoadArg:
			l.values[id] = l.emit(Vmovaps, Mem(GPReg(argBase(n.ArgIndex)), 0))

		case bytecode.AssignFloat:
			l.values[id] = l.broadcastF32(n.Float)

		case bytecode.Add:
			l.values[id] = l.emit(Vaddps, l.values[n.Operands[0]], l.values[n.Operands[1]])
		case bytecode.Subtract:
			l.values[id] = l.emit(Vsubps, l.values[n.Operands[0]], l.values[n.Operands[1]])
		case bytecode.Multiply:
			l.values[id] = l.emit(Vmulps, l.values[n.Operands[0]], l.values[n.Operands[1]])
		case bytecode.Divide:
			l.values[id] = l.emit(Vdivps, l.values[n.Operands[0]], l.values[n.Operands[1]])
		case bytecode.Min:
			l.values[id] = l.emit(Vminps, l.values[n.Operands[0]], l.values[n.Operands[1]])
		case bytecode.Max:
			l.values[id] = l.emit(Vmaxps, l.values[n.Operands[0]], l.values[n.Operands[1]])

		case bytecode.Sqrt:
			l.values[id] = l.emit(Vsqrtps, l.values[n.Operands[0]])
		case bytecode.Rsqrt:
			l.values[id] = l.emit(Vrsqrtps, l.values[n.Operands[0]])

		case bytecode.Abs:
			l.values[id] = l.abs(l.values[n.Operands[0]])
		case bytecode.Negate:
			l.values[id] = l.negate(l.values[n.Operands[0]])

		case bytecode.Sin:
			l.values[id] = l.bhaskaraSin(l.values[n.Operands[0]])
		case bytecode.Cos:
			phase := l.broadcastF32(piHalf)
			shifted := l.emit(Vaddps, l.values[n.Operands[0]], phase)
			l.values[id] = l.bhaskaraSin(shifted)

		case bytecode.Mod:
			l.values[id] = l.mod(l.values[n.Operands[0]], l.values[n.Operands[1]])

		case bytecode.Select:
			lhs := l.values[n.Operands[0]]
			rhs := l.values[n.Operands[1]]
			trueCase := l.values[n.Operands[2]]
			falseCase := l.values[n.Operands[3]]
			mask := l.emitImm(Vcmpps, cmpPredicate(n.Compare), lhs, rhs)
			l.values[id] = l.emit(Vblendvps, falseCase, trueCase, mask)

		case bytecode.StoreResult:
			l.m.Append(Instruction{
				Op:       Vmovaps,
				Operands: []Register{Mem(GPReg(argOutput), 0), l.values[n.Operands[0]]},
			})

		case bytecode.Assign:
			panic("sdfjit: unreachable bytecode op Assign reached machine lowering")

		default:
			return nil, compileerr.New(compileerr.MissingOpcodeCoverage,
				"bytecode op %s has no machine-code lowering (node @%d)", n.Op, i)
		}
	}

	return &l.m, nil
}
