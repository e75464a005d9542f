// Package ast implements the scene-graph intermediate representation: a
// flat, append-only list of nodes addressed by integer index rather than
// pointer, so that the simplifier can rewrite references in place without
// worrying about ownership cycles.
package ast

import (
	"fmt"
	"io"

	"github.com/Hypersonic/sdfjit/internal/util"
)

// Op identifies the operation a Node performs.
type Op uint8

const (
	Sphere Op = iota
	Box
	Float32
	Pos3
	Noop
	Add
	Subtract
	Intersect
	Rotate
	Translate
	Scale
	Select
)

func (op Op) String() string {
	switch op {
	case Sphere:
		return "Sphere"
	case Box:
		return "Box"
	case Float32:
		return "Float32"
	case Pos3:
		return "Pos3"
	case Noop:
		return "Noop"
	case Add:
		return "Add"
	case Subtract:
		return "Subtract"
	case Intersect:
		return "Intersect"
	case Rotate:
		return "Rotate"
	case Translate:
		return "Translate"
	case Scale:
		return "Scale"
	case Select:
		return "Select"
	default:
		panic(fmt.Sprintf("sdfjit: unreachable ast op %d", uint8(op)))
	}
}

// NodeID indexes into an Ast's Nodes slice. Negative values are sentinels
// for the input coordinate streams, the constant pool base, and the output
// pointer — they never index into Nodes.
type NodeID int32

const (
	InX         NodeID = -1
	InY         NodeID = -2
	InZ         NodeID = -3
	InConstants NodeID = -4
	OutPtr      NodeID = -5
)

// CompareType selects the comparator a Select node applies to its first two
// children before picking between its true/false branches.
type CompareType uint8

const (
	EQ CompareType = iota
	LT
	GT
)

// Node is one instruction in the scene graph. Children is meaningful for
// every Op except Float32, which instead carries Value.
type Node struct {
	Op       Op
	Children []NodeID
	Value    float32     // Float32 payload
	Compare  CompareType // Select comparator
}

// SameAs reports whether n and other are interchangeable for
// common-subexpression purposes: identical op, identical (pointwise)
// children, and — for Float32 — values that agree within
// util.FloatTolerance. Noop never compares equal to anything, including
// another Noop, since collapsing two no-ops together would be meaningless.
func (n *Node) SameAs(other *Node) bool {
	if n.Op != other.Op || n.Op == Noop {
		return false
	}
	if n.Op == Float32 {
		return util.FloatsEqual(n.Value, other.Value)
	}
	if n.Op == Select && n.Compare != other.Compare {
		return false
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i, c := range n.Children {
		if c != other.Children[i] {
			return false
		}
	}
	return true
}

// Ast is an append-only sequence of Nodes. The final appended node is
// always the scene's root.
type Ast struct {
	Nodes []Node
}

func (a *Ast) addNode(n Node) NodeID {
	a.Nodes = append(a.Nodes, n)
	return NodeID(len(a.Nodes) - 1)
}

// RootID returns the index of the scene's root node: the most recently
// appended one.
func (a *Ast) RootID() NodeID {
	return NodeID(len(a.Nodes) - 1)
}

// Node returns the node at id. Callers must only pass non-negative ids
// returned from this Ast's own builder methods.
func (a *Ast) Node(id NodeID) *Node {
	return &a.Nodes[id]
}

// Kill converts the node at id to a Noop and drops its children, breaking
// its dependence on whatever it used to reference.
func (a *Ast) Kill(id NodeID) {
	n := a.Node(id)
	n.Op = Noop
	n.Children = nil
}

// ReplaceAllUsesWith rewrites every child reference to from, anywhere in
// the Ast, to to. Float32 nodes have no children and are skipped.
func (a *Ast) ReplaceAllUsesWith(from, to NodeID) {
	for i := range a.Nodes {
		n := &a.Nodes[i]
		if n.Op == Float32 {
			continue
		}
		for j, c := range n.Children {
			if c == from {
				n.Children[j] = to
			}
		}
	}
}

/* Primitives */

// Sphere adds a Sphere(position, radius) node.
func (a *Ast) Sphere(position NodeID, radius float32) NodeID {
	return a.SphereV(position, a.Float32Const(radius))
}

// SphereV is Sphere with a node-valued radius.
func (a *Ast) SphereV(position, radius NodeID) NodeID {
	return a.addNode(Node{Op: Sphere, Children: []NodeID{position, radius}})
}

// Box adds a Box(position, wx, wy, wz) node.
func (a *Ast) Box(position NodeID, wx, wy, wz float32) NodeID {
	return a.BoxV(position, a.Float32Const(wx), a.Float32Const(wy), a.Float32Const(wz))
}

// BoxV is Box with node-valued half-widths.
func (a *Ast) BoxV(position, wx, wy, wz NodeID) NodeID {
	return a.addNode(Node{Op: Box, Children: []NodeID{position, wx, wy, wz}})
}

// Float32Const adds a Float32 literal node.
func (a *Ast) Float32Const(value float32) NodeID {
	return a.addNode(Node{Op: Float32, Value: value})
}

// Pos3 adds a Pos3(x, y, z) node from three literals.
func (a *Ast) Pos3(x, y, z float32) NodeID {
	return a.Pos3V(a.Float32Const(x), a.Float32Const(y), a.Float32Const(z))
}

// Pos3V is Pos3 with node-valued components.
func (a *Ast) Pos3V(x, y, z NodeID) NodeID {
	return a.addNode(Node{Op: Pos3, Children: []NodeID{x, y, z}})
}

/* Composition operators */

// Add adds the union of lhs and rhs: min(d1, d2).
func (a *Ast) Add(lhs, rhs NodeID) NodeID {
	return a.addNode(Node{Op: Add, Children: []NodeID{lhs, rhs}})
}

// Subtract adds the difference of lhs and rhs: max(-d1, d2).
func (a *Ast) Subtract(lhs, rhs NodeID) NodeID {
	return a.addNode(Node{Op: Subtract, Children: []NodeID{lhs, rhs}})
}

// Intersect adds the intersection of lhs and rhs: max(d1, d2).
func (a *Ast) Intersect(lhs, rhs NodeID) NodeID {
	return a.addNode(Node{Op: Intersect, Children: []NodeID{lhs, rhs}})
}

/* Movement operators: these operate on and return a position, they don't
   wrap an object. Feed the result into an object's position child. */

// Rotate adds a Rotate(position, rx, ry, rz) node (radians, applied X then Y
// then Z).
func (a *Ast) Rotate(position NodeID, rx, ry, rz float32) NodeID {
	return a.RotateV(position, a.Pos3(rx, ry, rz))
}

// RotateV is Rotate with a node-valued rotation triple.
func (a *Ast) RotateV(position, rotation NodeID) NodeID {
	return a.addNode(Node{Op: Rotate, Children: []NodeID{position, rotation}})
}

// Translate adds a Translate(position, dx, dy, dz) node.
func (a *Ast) Translate(position NodeID, dx, dy, dz float32) NodeID {
	return a.TranslateV(position, a.Pos3(dx, dy, dz))
}

// TranslateV is Translate with a node-valued offset.
func (a *Ast) TranslateV(position, translation NodeID) NodeID {
	return a.addNode(Node{Op: Translate, Children: []NodeID{position, translation}})
}

// Scale adds a Scale(position, sx, sy, sz) node. Scale has no bytecode
// lowering (see DESIGN.md); building one is legal, lowering it is not.
func (a *Ast) Scale(position NodeID, sx, sy, sz float32) NodeID {
	return a.ScaleV(position, a.Pos3(sx, sy, sz))
}

// ScaleV is Scale with a node-valued scale triple.
func (a *Ast) ScaleV(position, scale NodeID) NodeID {
	return a.addNode(Node{Op: Scale, Children: []NodeID{position, scale}})
}

// SelectNode adds a Select(cmp, lhs, rhs, trueCase, falseCase) node: evaluates
// to trueCase's value when lhs `cmp` rhs holds, falseCase's value otherwise.
func (a *Ast) SelectNode(cmp CompareType, lhs, rhs, trueCase, falseCase NodeID) NodeID {
	return a.addNode(Node{Op: Select, Compare: cmp, Children: []NodeID{lhs, rhs, trueCase, falseCase}})
}

// Dump writes a flat, line-per-node listing of a to w.
func (a *Ast) Dump(w io.Writer) {
	for i, n := range a.Nodes {
		fmt.Fprintf(w, "@%d: %s(", i, n.Op)
		if n.Op == Float32 {
			fmt.Fprintf(w, "%v", n.Value)
		} else {
			for j, c := range n.Children {
				if j > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprintf(w, "@%d", c)
			}
		}
		fmt.Fprintln(w, ")")
	}
}
