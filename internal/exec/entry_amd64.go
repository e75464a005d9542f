//go:build amd64

package exec

// callCompiled is implemented in entry_amd64.s. The compiled function
// expects its five pointer arguments in RDI, RSI, RDX, RCX, R8 per System V
// AMD64 — exactly the registers Go's own ABI0 assembly calling convention
// does not guarantee, so a small trampoline loads them explicitly before
// calling through entry.
//
//go:noescape
func callCompiled(entry uintptr, x, y, z, constants, output *float32)
