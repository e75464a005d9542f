// Package util holds small, dependency-free helpers shared across the
// compiler pipeline: float/bit conversions, tolerant float comparison, and a
// hex dump used by the constant pool and disassembly listings.
package util

import "math"

// Float32ToBits reinterprets f's bit pattern as a uint32, the form the
// machine-code lowering stage needs before it can stuff a float literal into
// an Immediate register or a constant-pool dword.
func Float32ToBits(f float32) uint32 {
	return math.Float32bits(f)
}

// BitsToFloat32 is the inverse of Float32ToBits.
func BitsToFloat32(bits uint32) float32 {
	return math.Float32frombits(bits)
}
