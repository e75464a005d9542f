// Package raymarch drives a compiled SDF function with sphere tracing: ray
// bundles of eight (one YMM lane each) are advanced by the function's
// distance estimate until they strike geometry or escape, completing the
// normal-estimation pass spec.md §9 flags as left incomplete in the
// reference implementation.
package raymarch

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Hypersonic/sdfjit/internal/exec"
)

// Params bounds a sphere-tracing run.
type Params struct {
	// Epsilon: a lane counts as a hit once its distance estimate drops
	// below this value.
	Epsilon float32
	// MaxDistance: a lane counts as a miss once its accumulated travel
	// exceeds this value.
	MaxDistance float32
	// MaxSteps bounds the number of compiled-function calls per bundle,
	// guarding against a scene whose SDF is not a true distance bound (and
	// so might never converge).
	MaxSteps int
	// NormalEpsilon is the central-difference step used to estimate
	// surface normals at a hit point.
	NormalEpsilon float32
}

// DefaultParams mirrors the constants a sphere tracer conventionally uses:
// tight enough epsilon for shading-quality surfaces, a max distance large
// enough to cover a typical scene extent, and a step budget generous enough
// for scenes with thin concavities.
var DefaultParams = Params{
	Epsilon:       1e-3,
	MaxDistance:   1000,
	MaxSteps:      256,
	NormalEpsilon: 1e-3,
}

// Ray is one ray to advance: an origin and a (should be normalized)
// direction.
type Ray struct {
	Origin, Direction r3.Vec
}

// Result is the outcome of tracing a single ray to completion: whether it
// hit geometry, how far it traveled, and — only when Hit — the surface
// normal at the hit point.
type Result struct {
	Hit      bool
	Distance float32
	Point    r3.Vec
	Normal   r3.Vec
}

// Bundle advances a bundle of up to 8 rays against fn, returning one
// Result per input ray. Rays beyond the first len(rays) lanes (when fewer
// than 8 are supplied) are padded by repeating the last ray, so the
// compiled function always receives eight full lanes; their Results are
// discarded before returning.
func Bundle(fn *exec.Executor, rays []Ray, p Params) []Result {
	if len(rays) == 0 {
		return nil
	}
	if len(rays) > 8 {
		panic("sdfjit: raymarch.Bundle accepts at most 8 rays")
	}

	padded := make([]Ray, 8)
	for i := range padded {
		if i < len(rays) {
			padded[i] = rays[i]
		} else {
			padded[i] = rays[len(rays)-1]
		}
	}

	traveled := [8]float32{}
	hit := [8]bool{}
	miss := [8]bool{}

	lanes := exec.NewLaneBuffer()
	for step := 0; step < p.MaxSteps; step++ {
		active := false
		for i, r := range padded {
			if hit[i] || miss[i] {
				continue
			}
			active = true
			point := r3.Add(r.Origin, r3.Scale(float64(traveled[i]), r.Direction))
			lanes.X[i] = float32(point.X)
			lanes.Y[i] = float32(point.Y)
			lanes.Z[i] = float32(point.Z)
		}
		if !active {
			break
		}

		fn.Call(lanes.Lanes)

		for i := range padded {
			if hit[i] || miss[i] {
				continue
			}
			d := lanes.Output[i]
			if d < p.Epsilon {
				hit[i] = true
				continue
			}
			traveled[i] += d
			if traveled[i] > p.MaxDistance {
				miss[i] = true
			}
		}
	}

	results := make([]Result, len(rays))
	for i := range results {
		r := padded[i]
		point := r3.Add(r.Origin, r3.Scale(float64(traveled[i]), r.Direction))
		results[i] = Result{
			Hit:      hit[i],
			Distance: traveled[i],
			Point:    point,
		}
		if hit[i] {
			results[i].Normal = estimateNormal(fn, point, p.NormalEpsilon)
		}
	}
	return results
}

// estimateNormal computes a central-difference gradient of the compiled
// SDF at p, evaluating six offset samples (one call's worth of lanes would
// waste two; simplicity is preferred over packing this into a single
// bundle call since normal estimation only runs once per hit, not once per
// step).
func estimateNormal(fn *exec.Executor, p r3.Vec, h float32) r3.Vec {
	sample := func(offset r3.Vec) float32 {
		lanes := exec.NewLaneBuffer()
		q := r3.Add(p, offset)
		for i := 0; i < 8; i++ {
			lanes.X[i] = float32(q.X)
			lanes.Y[i] = float32(q.Y)
			lanes.Z[i] = float32(q.Z)
		}
		fn.Call(lanes.Lanes)
		return lanes.Output[0]
	}

	hv := float64(h)
	dx := sample(r3.Vec{X: hv}) - sample(r3.Vec{X: -hv})
	dy := sample(r3.Vec{Y: hv}) - sample(r3.Vec{Y: -hv})
	dz := sample(r3.Vec{Z: hv}) - sample(r3.Vec{Z: -hv})

	n := r3.Vec{X: float64(dx), Y: float64(dy), Z: float64(dz)}
	return r3.Scale(1/r3.Norm(n), n)
}

// Shade applies a single hard-coded Lambertian term from a fixed light
// direction. Reflection bounces are out of scope (see DESIGN.md): this is
// the complete shading model this raymarcher implements.
func Shade(n r3.Vec, lightDir r3.Vec) float64 {
	d := r3.Dot(n, r3.Scale(-1, lightDir))
	if d < 0 {
		d = 0
	}
	return d
}

// RenderTile traces rows yStart through yEnd-1 of a frame, calling
// rayForPixel to build the camera ray for each pixel and writing one Result
// per pixel into out at index y*width+x (row-major by absolute row, so
// len(out) must be at least width*yEnd). Scanlines are
// grouped 8-wide so every call into Bundle receives full lanes; a row
// whose width isn't a multiple of 8 pads its final bundle, discarding the
// padding results as Bundle already does.
func RenderTile(fn *exec.Executor, width, yStart, yEnd int, rayForPixel func(x, y int) Ray, p Params, out []Result) {
	for y := yStart; y < yEnd; y++ {
		for x0 := 0; x0 < width; x0 += 8 {
			n := width - x0
			if n > 8 {
				n = 8
			}
			rays := make([]Ray, n)
			for i := 0; i < n; i++ {
				rays[i] = rayForPixel(x0+i, y)
			}
			results := Bundle(fn, rays, p)
			copy(out[y*width+x0:y*width+x0+n], results)
		}
	}
}
