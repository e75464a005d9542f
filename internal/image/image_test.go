package image

import (
	"bytes"
	stdimage "image/png"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Hypersonic/sdfjit/internal/ast"
	"github.com/Hypersonic/sdfjit/internal/compiler"
	"github.com/Hypersonic/sdfjit/internal/raymarch"
)

func skipUnlessAMD64(t *testing.T) {
	t.Helper()
	if runtime.GOARCH != "amd64" {
		t.Skip("compiled code only runs on amd64")
	}
}

func TestCameraRayForCentersOnForward(t *testing.T) {
	cam := Camera{
		Eye:     r3.Vec{X: 0, Y: 0, Z: -5},
		Forward: r3.Vec{X: 0, Y: 0, Z: 1},
		Up:      r3.Vec{X: 0, Y: 1, Z: 0},
		Right:   r3.Vec{X: 1, Y: 0, Z: 0},
		FOV:     0.9,
	}
	ray := cam.RayFor(49, 49, 100, 100)
	assert.InDelta(t, 0, ray.Direction.X, 0.05)
	assert.InDelta(t, 0, ray.Direction.Y, 0.05)
	assert.InDelta(t, 1, ray.Direction.Z, 0.01)
}

func TestCameraRayForLeansLeftForLowXPixels(t *testing.T) {
	cam := Camera{
		Eye:     r3.Vec{X: 0, Y: 0, Z: -5},
		Forward: r3.Vec{X: 0, Y: 0, Z: 1},
		Up:      r3.Vec{X: 0, Y: 1, Z: 0},
		Right:   r3.Vec{X: 1, Y: 0, Z: 0},
		FOV:     0.9,
	}
	ray := cam.RayFor(0, 49, 100, 100)
	assert.Less(t, ray.Direction.X, 0.0)
}

func TestNewFrameAllocatesRowMajorPixels(t *testing.T) {
	f := NewFrame(4, 3)
	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 3, f.Height)
	assert.Len(t, f.Pixels, 12)
}

func TestRenderShadesHitsAndLeavesMissesDark(t *testing.T) {
	skipUnlessAMD64(t)

	var a ast.Ast
	p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
	a.Sphere(p, 1)
	ast.Simplify(&a)
	r, err := compiler.Compile(&a)
	require.NoError(t, err)
	defer r.Close()

	cam := Camera{
		Eye:     r3.Vec{X: 0, Y: 0, Z: -5},
		Forward: r3.Vec{X: 0, Y: 0, Z: 1},
		Up:      r3.Vec{X: 0, Y: 1, Z: 0},
		Right:   r3.Vec{X: 1, Y: 0, Z: 0},
		FOV:     0.5,
	}
	f := NewFrame(32, 32)
	lightDir := r3.Vec{X: 0, Y: 0, Z: 1}
	Render(r.Executor, cam, raymarch.DefaultParams, f, lightDir)

	center := f.Pixels[16*32+16]
	corner := f.Pixels[0*32+0]
	assert.Greater(t, center, 0.0, "a ray through the image center should hit the sphere and shade positively")
	assert.Zero(t, corner, "a ray through the far corner should miss and stay dark")
}

func TestWritePNGProducesDecodablePNG(t *testing.T) {
	f := NewFrame(8, 8)
	for i := range f.Pixels {
		f.Pixels[i] = 0.5
	}

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, f))

	decoded, err := stdimage.Decode(&buf)
	require.NoError(t, err)
	bounds := decoded.Bounds()
	assert.Equal(t, 8, bounds.Dx())
	assert.Equal(t, 8, bounds.Dy())
}

func TestWritePNGClampsOutOfRangeShading(t *testing.T) {
	f := NewFrame(1, 1)
	f.Pixels[0] = 5 // out of [0,1], should clamp to opaque white

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, f))

	decoded, err := stdimage.Decode(&buf)
	require.NoError(t, err)
	r, g, b, a := decoded.At(0, 0).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
	assert.NotZero(t, a)
	assert.Equal(t, uint32(0xFFFF), r)
}
