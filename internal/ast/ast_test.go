package ast

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssignsSequentialIDs(t *testing.T) {
	var a Ast
	x := a.Float32Const(1)
	y := a.Float32Const(2)
	require.Equal(t, NodeID(0), x)
	require.Equal(t, NodeID(1), y)

	sum := a.Add(x, y)
	assert.Equal(t, NodeID(2), sum)
	assert.Equal(t, NodeID(2), a.RootID())
}

func TestNodeSameAs(t *testing.T) {
	var a Ast
	a.Float32Const(1.0)        // 0
	a.Float32Const(1.0000001)  // 1: within tolerance of 0
	a.Float32Const(1.1)        // 2: not within tolerance
	n0, n1, n2 := a.Node(0), a.Node(1), a.Node(2)

	assert.True(t, n0.SameAs(n1))
	assert.False(t, n0.SameAs(n2))
}

func TestNoopNeverSameAsAnything(t *testing.T) {
	var a Ast
	a.Float32Const(1.0)
	a.Kill(0)
	a.Float32Const(1.0)
	assert.False(t, a.Node(0).SameAs(a.Node(1)))
	assert.False(t, a.Node(0).SameAs(a.Node(0)))
}

func TestKillClearsChildren(t *testing.T) {
	var a Ast
	x := a.Float32Const(1)
	y := a.Float32Const(2)
	sum := a.Add(x, y)
	a.Kill(sum)

	n := a.Node(sum)
	assert.Equal(t, Noop, n.Op)
	assert.Empty(t, n.Children)
}

func TestReplaceAllUsesWith(t *testing.T) {
	var a Ast
	p := a.Pos3(0, 0, 0)
	sph1 := a.Sphere(p, 10)
	sph2 := a.Sphere(p, 5)
	root := a.Add(sph1, sph2)

	a.ReplaceAllUsesWith(sph2, sph1)
	assert.Equal(t, []NodeID{sph1, sph1}, a.Node(root).Children)
}

func TestSimplifyProducesExpectedNodeSlice(t *testing.T) {
	// Two structurally identical spheres over the same position should
	// collapse to one: a cmp.Diff gives a readable failure naming exactly
	// which node/field disagrees, unlike a bare reflect.DeepEqual on a
	// slice of structs.
	var a Ast
	p := a.Pos3(0, 0, 0)
	sph1 := a.Sphere(p, 10)
	sph2 := a.Sphere(p, 10)
	a.Add(sph1, sph2)
	Simplify(&a)

	want := []Node{
		{Op: Float32, Value: 0},                // @0 x, survives as the representative of @0/@1/@2
		{Op: Noop, Value: 0},                    // @1 y, killed and redirected to @0
		{Op: Noop, Value: 0},                    // @2 z, killed and redirected to @0
		{Op: Pos3, Children: []NodeID{0, 0, 0}}, // @3 p, rewritten once @1 and @2 die
		{Op: Float32, Value: 10},                // @4 sph1's radius
		{Op: Sphere, Children: []NodeID{3, 4}},  // @5 sph1, survives as the representative of @5/@7
		{Op: Noop, Value: 10},                   // @6 sph2's radius, killed and redirected to @4; Kill doesn't clear Value
		{Op: Noop, Value: 0},                    // @7 sph2 itself, killed and redirected to @5
		{Op: Add, Children: []NodeID{5, 5}},     // @8 root, rewritten to point at sph1 twice
	}
	if diff := cmp.Diff(want, a.Nodes); diff != "" {
		t.Fatalf("unexpected node slice after Simplify (-want +got):\n%s", diff)
	}
}

func TestDumpFormatsFloatAndChildren(t *testing.T) {
	var a Ast
	x := a.Float32Const(2.5)
	a.Sphere(x, 1) // children: x, implicit float const for radius

	var buf strings.Builder
	a.Dump(&buf)
	out := buf.String()
	assert.Contains(t, out, "@0: Float32(2.5)")
	assert.Contains(t, out, "Sphere(@0, @1)")
}
