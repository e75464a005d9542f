// Package passes implements the bytecode optimizer: three order-independent
// local rewrites (common-subexpression elimination, constant folding,
// arithmetic simplification) followed by a final unused-value elimination
// sweep. Every pass only ever converts a node to Nop or rewrites operand
// references — node indices never move, so a NodeID collected before
// optimization stays valid (if possibly now pointing at a Nop) afterward.
package passes

import (
	"math"
	"strings"

	"github.com/Hypersonic/sdfjit/internal/bytecode"
	"github.com/Hypersonic/sdfjit/internal/util"
)

// Optimize runs the full bytecode optimizer: CSE, constant folding,
// arithmetic simplification, then unused-value elimination, repeating that
// sequence until a round leaves the bytecode unchanged (a rewrite such as
// x*0 -> 0 can expose new CSE or folding work to the next round). Calling
// it again afterward is therefore a no-op.
func Optimize(bc *bytecode.Bytecode) {
	for {
		var before, after strings.Builder
		bc.Dump(&before)
		CSE(bc)
		ConstantFold(bc)
		SimplifyArithmetic(bc)
		EliminateUnused(bc)
		bc.Dump(&after)
		if before.String() == after.String() {
			return
		}
	}
}

// CSE is the bytecode-level common-subexpression elimination described in
// the design: for i < j, if node i equals node j, every reference to j is
// redirected to i and j becomes a Nop.
func CSE(bc *bytecode.Bytecode) {
	for i := range bc.Nodes {
		if bc.Nodes[i].Op == bytecode.Nop {
			continue
		}
		for j := i + 1; j < len(bc.Nodes); j++ {
			if !bc.Nodes[i].Equal(&bc.Nodes[j], util.FloatsEqual) {
				continue
			}
			bc.ReplaceAllUsesWith(bytecode.NodeID(j), bytecode.NodeID(i))
			bc.Node(bytecode.NodeID(j)).ConvertToNop()
		}
	}
}

// allOperandsConstant reports whether every operand of n is an AssignFloat
// node, i.e. n's value could be computed at compile time.
func allOperandsConstant(bc *bytecode.Bytecode, n *bytecode.Node) bool {
	for _, o := range n.Operands {
		if bc.Node(o).Op != bytecode.AssignFloat {
			return false
		}
	}
	return true
}

// ConstantFold replaces any node whose operands are all AssignFloat with a
// fresh AssignFloat carrying the evaluated literal, over the full
// arithmetic opcode set. A single forward sweep is enough to fold chains
// (1+1, then (1+1)+1, ...) because earlier nodes have already been folded
// by the time a later node examines them.
func ConstantFold(bc *bytecode.Bytecode) {
	for i := range bc.Nodes {
		n := &bc.Nodes[i]
		if !foldable(n.Op) || !allOperandsConstant(bc, n) {
			continue
		}

		a := bc.Node(n.Operands[0]).Float
		var b float32
		if len(n.Operands) > 1 {
			b = bc.Node(n.Operands[1]).Float
		}

		var value float32
		switch n.Op {
		case bytecode.Add:
			value = a + b
		case bytecode.Subtract:
			value = a - b
		case bytecode.Multiply:
			value = a * b
		case bytecode.Divide:
			value = a / b
		case bytecode.Sqrt:
			value = float32(math.Sqrt(float64(a)))
		case bytecode.Rsqrt:
			value = float32(1 / math.Sqrt(float64(a)))
		case bytecode.Abs:
			value = float32(math.Abs(float64(a)))
		case bytecode.Negate:
			value = -a
		case bytecode.Min:
			value = float32(math.Min(float64(a), float64(b)))
		case bytecode.Max:
			value = float32(math.Max(float64(a), float64(b)))
		case bytecode.Sin:
			value = float32(math.Sin(float64(a)))
		case bytecode.Cos:
			value = float32(math.Cos(float64(a)))
		case bytecode.Mod:
			value = float32(math.Mod(float64(a), float64(b)))
		default:
			continue
		}

		n.Op = bytecode.AssignFloat
		n.Operands = nil
		n.Float = value
	}
}

func foldable(op bytecode.Op) bool {
	switch op {
	case bytecode.Add, bytecode.Subtract, bytecode.Multiply, bytecode.Divide,
		bytecode.Sqrt, bytecode.Rsqrt, bytecode.Abs, bytecode.Negate,
		bytecode.Min, bytecode.Max, bytecode.Sin, bytecode.Cos, bytecode.Mod:
		return true
	default:
		return false
	}
}

// SimplifyArithmetic rewrites x+0 / x-0 into a forwarded reference to x,
// x*1 into a forwarded reference to x, and x*0 into AssignFloat(0).
func SimplifyArithmetic(bc *bytecode.Bytecode) {
	isZero := func(id bytecode.NodeID) bool {
		n := bc.Node(id)
		return n.Op == bytecode.AssignFloat && util.FloatsEqual(n.Float, 0)
	}
	isOne := func(id bytecode.NodeID) bool {
		n := bc.Node(id)
		return n.Op == bytecode.AssignFloat && util.FloatsEqual(n.Float, 1)
	}

	for i := range bc.Nodes {
		n := &bc.Nodes[i]

		if (n.Op == bytecode.Add || n.Op == bytecode.Subtract) && len(n.Operands) == 2 {
			lhsZero, rhsZero := isZero(n.Operands[0]), isZero(n.Operands[1])
			if n.Op == bytecode.Subtract {
				lhsZero = false // 0-x is -x, not x
			}
			if lhsZero || rhsZero {
				var forward bytecode.NodeID
				if lhsZero {
					forward = n.Operands[1]
				} else {
					forward = n.Operands[0]
				}
				n.ConvertToNop()
				bc.ReplaceAllUsesWith(bytecode.NodeID(i), forward)
				continue
			}
		}

		if n.Op == bytecode.Multiply && len(n.Operands) == 2 {
			lhsOne, rhsOne := isOne(n.Operands[0]), isOne(n.Operands[1])
			if lhsOne || rhsOne {
				var forward bytecode.NodeID
				if lhsOne {
					forward = n.Operands[1]
				} else {
					forward = n.Operands[0]
				}
				n.ConvertToNop()
				bc.ReplaceAllUsesWith(bytecode.NodeID(i), forward)
				continue
			}

			if isZero(n.Operands[0]) || isZero(n.Operands[1]) {
				n.Op = bytecode.AssignFloat
				n.Operands = nil
				n.Float = 0
				continue
			}
		}
	}
}

// EliminateUnused converts any node that is not Store_Result and is
// referenced by no other node into a Nop. Iterated in reverse index order
// so a chain of now-dead producers collapses in one sweep.
func EliminateUnused(bc *bytecode.Bytecode) {
	for i := len(bc.Nodes) - 1; i >= 0; i-- {
		if bc.Nodes[i].Op == bytecode.StoreResult || bc.Nodes[i].Op == bytecode.Nop {
			continue
		}
		if isUnused(bc, bytecode.NodeID(i)) {
			bc.Node(bytecode.NodeID(i)).ConvertToNop()
		}
	}
}

func isUnused(bc *bytecode.Bytecode, id bytecode.NodeID) bool {
	for i := range bc.Nodes {
		if bc.Nodes[i].Uses(id) {
			return false
		}
	}
	return true
}
