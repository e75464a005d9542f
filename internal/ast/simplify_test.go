package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimplifyMergesDuplicateFloats(t *testing.T) {
	var a Ast
	one1 := a.Float32Const(1)
	one2 := a.Float32Const(1)
	sum := a.Add(one1, one2)

	Simplify(&a)

	assert.Equal(t, Noop, a.Node(one2).Op)
	assert.Equal(t, []NodeID{one1, one1}, a.Node(sum).Children)
}

func TestSimplifyKeepsTheEarlierCanonicalNode(t *testing.T) {
	var a Ast
	p1 := a.Pos3(0, 0, 0)
	p2 := a.Pos3(0, 0, 0)
	sph1 := a.Sphere(p1, 10)
	sph2 := a.Sphere(p2, 10)
	root := a.Add(sph1, sph2)

	Simplify(&a)

	// the whole subtree rooted at sph2 (and p2) collapses onto sph1/p1.
	assert.Equal(t, Noop, a.Node(p2).Op)
	assert.Equal(t, Noop, a.Node(sph2).Op)
	assert.Equal(t, []NodeID{sph1, sph1}, a.Node(root).Children)
}

func TestSimplifyIsIdempotent(t *testing.T) {
	var a Ast
	one1 := a.Float32Const(1)
	one2 := a.Float32Const(1)
	one3 := a.Float32Const(1)
	a.Add(a.Add(one1, one2), one3)

	Simplify(&a)
	first := append([]Node(nil), a.Nodes...)
	Simplify(&a)

	assert.Equal(t, first, a.Nodes)
}

func TestSimplifyNeverMergesNoops(t *testing.T) {
	var a Ast
	x := a.Float32Const(1)
	dead := a.Add(x, x)
	a.Kill(dead)
	alsoDead := a.Add(x, x)
	a.Kill(alsoDead)

	Simplify(&a)

	assert.Equal(t, Noop, a.Node(dead).Op)
	assert.Equal(t, Noop, a.Node(alsoDead).Op)
}
