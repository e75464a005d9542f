// Package exec hosts the compiled function in executable memory and
// invokes it. It owns exactly two mmap'd regions — code and constants — and
// is the only package in this module that calls into the OS page
// primitives, via golang.org/x/sys/unix.
package exec

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Executor owns a page of executable code and a page of read-only
// constants. Once built it is immutable: Call may be invoked concurrently
// by any number of goroutines, provided each supplies its own output
// buffer, since the compiled function only reads its input pointers and
// writes its output pointer.
type Executor struct {
	code      []byte // mmap'd, RX
	constants []byte // mmap'd, RO
	entry     uintptr
	codeLen   int // length of the actual instruction bytes, before page rounding
}

func pageRoundUp(n int) int {
	pageSize := unix.Getpagesize()
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// New maps code (machine instruction bytes) and constants (the constant
// pool's backing bytes) into fresh page-aligned regions, flips the code
// region from RW to RX, and leaves the constants region read-only.
func New(code, constants []byte) (*Executor, error) {
	codeRegion, err := mapRegion(len(code), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return nil, fmt.Errorf("sdfjit: mapping code region: %w", err)
	}
	copy(codeRegion, code)
	if err := unix.Mprotect(codeRegion, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(codeRegion)
		return nil, fmt.Errorf("sdfjit: marking code region executable: %w", err)
	}

	constRegion, err := mapRegion(len(constants), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		unix.Munmap(codeRegion)
		return nil, fmt.Errorf("sdfjit: mapping constant region: %w", err)
	}
	copy(constRegion, constants)
	if err := unix.Mprotect(constRegion, unix.PROT_READ); err != nil {
		unix.Munmap(codeRegion)
		unix.Munmap(constRegion)
		return nil, fmt.Errorf("sdfjit: marking constant region read-only: %w", err)
	}

	return &Executor{
		code:      codeRegion,
		constants: constRegion,
		entry:     uintptr(unsafe.Pointer(&codeRegion[0])),
		codeLen:   len(code),
	}, nil
}

func mapRegion(size int, prot int) ([]byte, error) {
	if size == 0 {
		size = 1
	}
	length := pageRoundUp(size)
	return unix.Mmap(-1, 0, length, prot, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// Close unmaps both regions. An Executor must not be used after Close.
func (x *Executor) Close() error {
	var errs []error
	if err := unix.Munmap(x.code); err != nil {
		errs = append(errs, err)
	}
	if err := unix.Munmap(x.constants); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("sdfjit: unmapping executor regions: %v", errs)
	}
	return nil
}

// Lanes is one bundle of eight float32 lanes, the unit the compiled
// function reads (X, Y, Z) and writes (Output) per call. The compiled
// function's vmovaps loads and stores require each array 32-byte aligned
// (§6); a bare Lanes value has only the natural 4-byte alignment of
// float32; callers must obtain one via NewLaneBuffer rather than a zero
// value, so the alignment is load-bearing and explicit rather than an
// accident of where the Go allocator happens to place a 128-byte struct.
type Lanes struct {
	X, Y, Z, Output [8]float32
}

// laneAlignment is one YMM register's width: the byte alignment §6's
// "aligned heap allocation for 32-byte-aligned float buffers" host
// primitive requires of X, Y, Z, and Output.
const laneAlignment = 32

// LaneBuffer owns the over-sized backing allocation a 32-byte-aligned
// Lanes is carved out of. The raw slice must stay reachable for as long as
// Lanes is in use — Lanes aliases into the middle of it via unsafe.Pointer,
// a relationship the Go garbage collector cannot discover on its own.
type LaneBuffer struct {
	raw []byte
	*Lanes
}

// NewLaneBuffer allocates a Lanes whose four arrays are explicitly
// 32-byte aligned. It over-allocates by less than one alignment unit and
// carves the aligned Lanes out of the rounded-up base address, rather than
// relying on a plain `Lanes{}` value landing on a 32-byte boundary by
// coincidence of heap-span placement (true today only because Lanes is
// small enough to always start at its span's base offset; a future field
// added to Lanes could silently break that).
func NewLaneBuffer() *LaneBuffer {
	raw := make([]byte, unsafe.Sizeof(Lanes{})+laneAlignment-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + laneAlignment - 1) &^ (laneAlignment - 1)
	return &LaneBuffer{raw: raw, Lanes: (*Lanes)(unsafe.Pointer(aligned))}
}

// Call invokes the compiled function with pointers to X, Y, Z, the
// constant pool, and Output, in System V AMD64 argument order. It is
// implemented in entry_amd64.s: Go cannot call an arbitrary raw code
// pointer without dropping into assembly to set up the five-pointer call.
func (x *Executor) Call(lanes *Lanes) {
	callCompiled(x.entry, &lanes.X[0], &lanes.Y[0], &lanes.Z[0], &x.constants[0], &lanes.Output[0])
}

// Entry returns the base address of the mapped code region and the byte
// length of the compiled code in it (not rounded up to a page), the
// (start, size) pair perfmap.Write needs to describe this Executor's single
// compiled function.
func (x *Executor) Entry() (uintptr, int) {
	return x.entry, x.codeLen
}
