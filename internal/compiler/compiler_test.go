package compiler

import (
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hypersonic/sdfjit/internal/ast"
)

// skipUnlessAMD64 skips a test on any architecture other than amd64: the
// compiled function is AVX2 machine code and cannot run anywhere else (spec
// Non-goals: no generic CPU backend).
func skipUnlessAMD64(t *testing.T) {
	t.Helper()
	if runtime.GOARCH != "amd64" {
		t.Skip("skipping amd64-only JIT test")
	}
}

func compileAndEval(t *testing.T, a *ast.Ast, x, y, z float32) float32 {
	t.Helper()
	ast.Simplify(a)
	r, err := Compile(a)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Close()) })
	return r.Eval(x, y, z)
}

// S1: single sphere at origin, radius 10.
func TestS1Sphere(t *testing.T) {
	skipUnlessAMD64(t)

	newScene := func() *ast.Ast {
		var a ast.Ast
		p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		a.Sphere(p, 10)
		return &a
	}

	assert.InDelta(t, float32(-10), compileAndEval(t, newScene(), 0, 0, 0), 1e-4)
	assert.InDelta(t, float32(0), compileAndEval(t, newScene(), 10, 0, 0), 1e-4)
	assert.InDelta(t, float32(10), compileAndEval(t, newScene(), 20, 0, 0), 1e-4)
}

// S2: Box(10,20,30) at origin.
func TestS2Box(t *testing.T) {
	skipUnlessAMD64(t)

	newScene := func() *ast.Ast {
		var a ast.Ast
		p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		a.Box(p, 10, 20, 30)
		return &a
	}

	assert.InDelta(t, float32(-10), compileAndEval(t, newScene(), 0, 0, 0), 1e-4)
	assert.InDelta(t, float32(5), compileAndEval(t, newScene(), 15, 0, 0), 1e-4)
	assert.InDelta(t, float32(0), compileAndEval(t, newScene(), 10, 20, 30), 1e-4)
}

// S3: Add(Sphere(r=10), Sphere at translate(20,0,0) r=5).
func TestS3Union(t *testing.T) {
	skipUnlessAMD64(t)

	newScene := func() *ast.Ast {
		var a ast.Ast
		p1 := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		s1 := a.Sphere(p1, 10)
		p2 := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		moved := a.Translate(p2, 20, 0, 0)
		s2 := a.Sphere(moved, 5)
		a.Add(s1, s2)
		return &a
	}

	assert.InDelta(t, float32(-10), compileAndEval(t, newScene(), 0, 0, 0), 1e-4)
	assert.InDelta(t, float32(-5), compileAndEval(t, newScene(), 20, 0, 0), 1e-4)
	assert.InDelta(t, float32(5), compileAndEval(t, newScene(), 30, 0, 0), 1e-4)
}

// S4: Subtract(Sphere r=10, Sphere at translate(5,0,0) r=3).
func TestS4Subtract(t *testing.T) {
	skipUnlessAMD64(t)

	newScene := func() *ast.Ast {
		var a ast.Ast
		p1 := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		s1 := a.Sphere(p1, 10)
		p2 := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		moved := a.Translate(p2, 5, 0, 0)
		s2 := a.Sphere(moved, 3)
		a.Subtract(s1, s2)
		return &a
	}

	assert.InDelta(t, float32(0), compileAndEval(t, newScene(), -10, 0, 0), 1e-4)
	assert.Greater(t, compileAndEval(t, newScene(), 5, 0, 0), float32(0))
}

// S5: Rotate(Pos3, 0, pi, 0) then Box(10,20,30) matches the unrotated box up
// to sign flips in x and z.
func TestS5RotateByPiMatchesUnrotatedBox(t *testing.T) {
	skipUnlessAMD64(t)

	rotated := func() *ast.Ast {
		var a ast.Ast
		p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		r := a.Rotate(p, 0, float32(math.Pi), 0)
		a.Box(r, 10, 20, 30)
		return &a
	}
	plain := func() *ast.Ast {
		var a ast.Ast
		p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		a.Box(p, 10, 20, 30)
		return &a
	}

	x, y, z := float32(15), float32(5), float32(25)
	got := compileAndEval(t, rotated(), x, y, z)
	want := compileAndEval(t, plain(), -x, y, -z)
	// Looser than the round-trip property's 1e-4. The rotation angles are
	// literals, so the bytecode optimizer folds their Sin/Cos with math.Sin
	// and math.Cos at compile time; the Bhaskara lowering is not involved.
	assert.InDelta(t, want, got, 0.1)
}

// S6: Translate(Pos3, 100, 0, 0) then Sphere r=10.
func TestS6Translate(t *testing.T) {
	skipUnlessAMD64(t)

	newScene := func() *ast.Ast {
		var a ast.Ast
		p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		moved := a.Translate(p, 100, 0, 0)
		a.Sphere(moved, 10)
		return &a
	}

	assert.InDelta(t, float32(-10), compileAndEval(t, newScene(), 100, 0, 0), 1e-4)
	assert.InDelta(t, float32(90), compileAndEval(t, newScene(), 0, 0, 0), 1e-4)
}

// S7: Select end to end — the true/false branches of a material-blend-style
// Select pick out the expected literal depending on the comparator.
func TestS7SelectBlend(t *testing.T) {
	skipUnlessAMD64(t)

	var a ast.Ast
	p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
	sphere := a.Sphere(p, 10)
	zero := a.Float32Const(0)
	hundred := a.Float32Const(100)
	twoHundred := a.Float32Const(200)
	a.SelectNode(ast.LT, sphere, zero, hundred, twoHundred)

	assert.Equal(t, float32(100), compileAndEval(t, &a, 0, 0, 0)) // inside: -10 < 0
}

func TestCompileRejectsScale(t *testing.T) {
	skipUnlessAMD64(t)

	var a ast.Ast
	p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
	scaled := a.Scale(p, 2, 2, 2)
	a.Sphere(scaled, 1)

	_, err := Compile(&a)
	require.Error(t, err)
}
