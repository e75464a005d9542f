// Package refsdf is a small, deliberately non-JIT reference evaluator for
// the same SDF primitives the compiler targets. It shares no code with the
// bytecode or machine-code lowering paths, so agreement between the two
// would be informative; no test or other package in this module imports it
// yet. Vector math is done
// with gonum's r3.Vec rather than three loose float32s, matching the
// rotation-matrix-by-hand approach gonum itself documents for spatial
// transforms.
package refsdf

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Scene is a reference-evaluator scene node. It intentionally mirrors the
// shape of ast.Node closely enough to be built from the same test fixtures,
// but evaluates directly against float64 math instead of lowering anywhere.
type Scene interface {
	Eval(p r3.Vec) float64
}

type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s Sphere) Eval(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.Center)) - s.Radius
}

type Box struct {
	Center     r3.Vec
	HalfExtent r3.Vec
}

func (b Box) Eval(p r3.Vec) float64 {
	p = r3.Sub(p, b.Center)
	dx := math.Abs(p.X) - b.HalfExtent.X
	dy := math.Abs(p.Y) - b.HalfExtent.Y
	dz := math.Abs(p.Z) - b.HalfExtent.Z
	outside := r3.Vec{X: math.Max(dx, 0), Y: math.Max(dy, 0), Z: math.Max(dz, 0)}
	inside := math.Min(math.Max(dx, math.Max(dy, dz)), 0)
	return r3.Norm(outside) + inside
}

type Union struct{ A, B Scene }

func (u Union) Eval(p r3.Vec) float64 { return math.Min(u.A.Eval(p), u.B.Eval(p)) }

type Difference struct{ A, B Scene }

func (d Difference) Eval(p r3.Vec) float64 { return math.Max(-d.A.Eval(p), d.B.Eval(p)) }

type Intersection struct{ A, B Scene }

func (i Intersection) Eval(p r3.Vec) float64 { return math.Max(i.A.Eval(p), i.B.Eval(p)) }

type Translate struct {
	Child  Scene
	Offset r3.Vec
}

func (t Translate) Eval(p r3.Vec) float64 {
	return t.Child.Eval(r3.Sub(p, t.Offset))
}

// Rotate applies Rx then Ry then Rz (radians) to the *query point*, the
// inverse of rotating the shape, then evaluates the child — the same
// convention the bytecode lowering uses.
type Rotate struct {
	Child          Scene
	Rx, Ry, Rz float64
}

func (r Rotate) Eval(p r3.Vec) float64 {
	x, y, z := p.X, p.Y, p.Z

	sinrx, cosrx := math.Sin(r.Rx), math.Cos(r.Rx)
	y, z = y*cosrx-z*sinrx, y*sinrx+z*cosrx

	sinry, cosry := math.Sin(r.Ry), math.Cos(r.Ry)
	x, z = x*cosry+z*sinry, -x*sinry+z*cosry

	sinrz, cosrz := math.Sin(r.Rz), math.Cos(r.Rz)
	x, y = x*cosrz-y*sinrz, x*sinrz+y*cosrz

	return r.Child.Eval(r3.Vec{X: x, Y: y, Z: z})
}
