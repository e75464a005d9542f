// Package bytecode implements the scalar SSA-style intermediate
// representation that sits between the scene AST and the machine IR: one
// node per scalar value, operands referring strictly backward so the list
// is already in topological order.
package bytecode

import (
	"fmt"
	"io"
)

// Op identifies the scalar operation a Node performs.
type Op uint8

const (
	Nop Op = iota
	LoadArg
	StoreResult
	Assign
	AssignFloat
	Add
	Subtract
	Multiply
	Divide
	Sqrt
	Rsqrt
	Abs
	Negate
	Min
	Max
	Sin
	Cos
	Mod
	Select
)

func (op Op) String() string {
	switch op {
	case Nop:
		return "Nop"
	case LoadArg:
		return "Load_Arg"
	case StoreResult:
		return "Store_Result"
	case Assign:
		return "Assign"
	case AssignFloat:
		return "Assign_Float"
	case Add:
		return "Add"
	case Subtract:
		return "Subtract"
	case Multiply:
		return "Multiply"
	case Divide:
		return "Divide"
	case Sqrt:
		return "Sqrt"
	case Rsqrt:
		return "Rsqrt"
	case Abs:
		return "Abs"
	case Negate:
		return "Negate"
	case Min:
		return "Min"
	case Max:
		return "Max"
	case Sin:
		return "Sin"
	case Cos:
		return "Cos"
	case Mod:
		return "Mod"
	case Select:
		return "Select"
	default:
		panic(fmt.Sprintf("sdfjit: unreachable bytecode op %d", uint8(op)))
	}
}

// CompareType mirrors ast.CompareType for the Select opcode.
type CompareType uint8

const (
	EQ CompareType = iota
	LT
	GT
)

// NodeID indexes into a Bytecode's Nodes slice. Unlike ast.NodeID there are
// no negative sentinels here: arguments are materialized as real LoadArg
// nodes at the front of the stream (see FromAST).
type NodeID int32

// Node is one scalar SSA instruction.
type Node struct {
	Op       Op
	Operands []NodeID
	Float    float32     // AssignFloat payload
	ArgIndex int         // LoadArg payload
	Compare  CompareType // Select comparator
}

// hasOperands reports whether Operands is the meaningful field for this
// node's kind, as opposed to Float or ArgIndex.
func (n *Node) hasOperands() bool {
	return n.Op != AssignFloat && n.Op != LoadArg
}

// Equal implements the tolerant equality CSE and constant folding rely on:
// same opcode and, depending on kind, pointwise-equal operands, a
// tolerance-compared float payload, or an equal argument index. Nop is
// never equal to anything.
func (n *Node) Equal(other *Node, floatsEqual func(a, b float32) bool) bool {
	if n.Op != other.Op || n.Op == Nop {
		return false
	}
	switch {
	case n.Op == AssignFloat:
		return floatsEqual(n.Float, other.Float)
	case n.Op == LoadArg:
		return n.ArgIndex == other.ArgIndex
	default:
		if n.Op == Select && n.Compare != other.Compare {
			return false
		}
		if len(n.Operands) != len(other.Operands) {
			return false
		}
		for i, o := range n.Operands {
			if o != other.Operands[i] {
				return false
			}
		}
		return true
	}
}

// ConvertToNop turns n into a Nop and drops its operands, the in-place
// deletion every bytecode pass uses instead of removing list entries.
func (n *Node) ConvertToNop() {
	n.Op = Nop
	n.Operands = nil
}

// Uses reports whether n references id as an operand.
func (n *Node) Uses(id NodeID) bool {
	if !n.hasOperands() {
		return false
	}
	for _, o := range n.Operands {
		if o == id {
			return true
		}
	}
	return false
}

// Bytecode is an append-only, topologically ordered sequence of Nodes.
type Bytecode struct {
	Nodes []Node
}

func (bc *Bytecode) addNode(n Node) NodeID {
	bc.Nodes = append(bc.Nodes, n)
	return NodeID(len(bc.Nodes) - 1)
}

// Node returns the node at id.
func (bc *Bytecode) Node(id NodeID) *Node {
	return &bc.Nodes[id]
}

// ReplaceAllUsesWith rewrites every operand reference to from, anywhere in
// bc, to to.
func (bc *Bytecode) ReplaceAllUsesWith(from, to NodeID) {
	for i := range bc.Nodes {
		n := &bc.Nodes[i]
		if !n.hasOperands() {
			continue
		}
		for j, o := range n.Operands {
			if o == from {
				n.Operands[j] = to
			}
		}
	}
}

// Dump writes a flat, line-per-node listing of bc to w.
func (bc *Bytecode) Dump(w io.Writer) {
	for i, n := range bc.Nodes {
		fmt.Fprintf(w, "@%d: %s(", i, n.Op)
		switch n.Op {
		case AssignFloat:
			fmt.Fprintf(w, "%v", n.Float)
		case LoadArg:
			fmt.Fprintf(w, "%d", n.ArgIndex)
		default:
			for j, o := range n.Operands {
				if j > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprintf(w, "@%d", o)
			}
		}
		fmt.Fprintln(w, ")")
	}
}

/* Builder methods, one per opcode. */

func (bc *Bytecode) LoadArg(argIndex int) NodeID {
	return bc.addNode(Node{Op: LoadArg, ArgIndex: argIndex})
}

func (bc *Bytecode) StoreResult(distance NodeID) NodeID {
	return bc.addNode(Node{Op: StoreResult, Operands: []NodeID{distance}})
}

func (bc *Bytecode) AssignFloat(v float32) NodeID {
	return bc.addNode(Node{Op: AssignFloat, Float: v})
}

func (bc *Bytecode) Add(lhs, rhs NodeID) NodeID {
	return bc.addNode(Node{Op: Add, Operands: []NodeID{lhs, rhs}})
}

func (bc *Bytecode) Subtract(lhs, rhs NodeID) NodeID {
	return bc.addNode(Node{Op: Subtract, Operands: []NodeID{lhs, rhs}})
}

func (bc *Bytecode) Multiply(lhs, rhs NodeID) NodeID {
	return bc.addNode(Node{Op: Multiply, Operands: []NodeID{lhs, rhs}})
}

func (bc *Bytecode) Divide(lhs, rhs NodeID) NodeID {
	return bc.addNode(Node{Op: Divide, Operands: []NodeID{lhs, rhs}})
}

func (bc *Bytecode) Sqrt(v NodeID) NodeID {
	return bc.addNode(Node{Op: Sqrt, Operands: []NodeID{v}})
}

func (bc *Bytecode) Rsqrt(v NodeID) NodeID {
	return bc.addNode(Node{Op: Rsqrt, Operands: []NodeID{v}})
}

func (bc *Bytecode) Abs(v NodeID) NodeID {
	return bc.addNode(Node{Op: Abs, Operands: []NodeID{v}})
}

func (bc *Bytecode) Negate(v NodeID) NodeID {
	return bc.addNode(Node{Op: Negate, Operands: []NodeID{v}})
}

func (bc *Bytecode) Min(lhs, rhs NodeID) NodeID {
	return bc.addNode(Node{Op: Min, Operands: []NodeID{lhs, rhs}})
}

func (bc *Bytecode) Max(lhs, rhs NodeID) NodeID {
	return bc.addNode(Node{Op: Max, Operands: []NodeID{lhs, rhs}})
}

func (bc *Bytecode) Sin(v NodeID) NodeID {
	return bc.addNode(Node{Op: Sin, Operands: []NodeID{v}})
}

func (bc *Bytecode) Cos(v NodeID) NodeID {
	return bc.addNode(Node{Op: Cos, Operands: []NodeID{v}})
}

func (bc *Bytecode) Mod(lhs, rhs NodeID) NodeID {
	return bc.addNode(Node{Op: Mod, Operands: []NodeID{lhs, rhs}})
}

func (bc *Bytecode) SelectNode(cmp CompareType, lhs, rhs, trueCase, falseCase NodeID) NodeID {
	return bc.addNode(Node{
		Op:       Select,
		Compare:  cmp,
		Operands: []NodeID{lhs, rhs, trueCase, falseCase},
	})
}
