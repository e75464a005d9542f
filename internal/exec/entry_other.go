//go:build !amd64

package exec

// The compiled function is AVX2/x86-64 machine code (see spec Non-goals: no
// generic backend); on any other architecture there is nothing valid to
// call through.
func callCompiled(entry uintptr, x, y, z, constants, output *float32) {
	panic("sdfjit: compiled SDF functions only run on amd64")
}
