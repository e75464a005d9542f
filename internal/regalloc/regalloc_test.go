package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hypersonic/sdfjit/internal/mcode"
)

// dummyUse is a placeholder machine-register operand for positions that
// exist only to give an instruction the right arity; its value is never
// asserted on.
var dummyUse = mcode.YMMReg(mcode.YMM0)

func TestAllocateReusesRegisterAfterDeath(t *testing.T) {
	m := &mcode.MCode{Instructions: []mcode.Instruction{
		{Op: mcode.Vmovaps, Operands: []mcode.Register{mcode.VReg(0), dummyUse}},
		{Op: mcode.Vmovaps, Operands: []mcode.Register{mcode.VReg(1), dummyUse}},
	}}
	var stack mcode.StackInfo
	Allocate(m, &stack)

	v0 := m.Instructions[0].Operands[0]
	v1 := m.Instructions[1].Operands[0]
	require.True(t, v0.IsMachine())
	require.True(t, v1.IsMachine())
	assert.Equal(t, v0.Machine, v1.Machine, "v1's interval starts right after v0 dies, so it should reclaim v0's register")
	assert.Equal(t, int32(0), stack.Size(), "neither virtual should have needed a spill slot")
}

func TestAllocateSpillsFifthSimultaneousVirtual(t *testing.T) {
	// Five virtuals, each born at its own instruction (0..4) and each kept
	// alive until a later, strictly increasing instruction (5..9). With a
	// pool of four machine registers the fifth (v4) must spill.
	var instrs []mcode.Instruction
	for i := 0; i < 5; i++ {
		instrs = append(instrs, mcode.Instruction{
			Op:       mcode.Vmovaps,
			Operands: []mcode.Register{mcode.VReg(mcode.VirtualID(i)), dummyUse},
		})
	}
	for i := 0; i < 5; i++ {
		instrs = append(instrs, mcode.Instruction{
			Op:       mcode.Vsqrtps,
			Operands: []mcode.Register{dummyUse, mcode.VReg(mcode.VirtualID(i))},
		})
	}
	m := &mcode.MCode{Instructions: instrs}
	var stack mcode.StackInfo
	Allocate(m, &stack)

	wantMachine := []mcode.MachineReg{mcode.YMM3, mcode.YMM2, mcode.YMM1, mcode.YMM0}
	for i, want := range wantMachine {
		got := m.Instructions[i].Operands[0]
		require.True(t, got.IsMachine(), "v%d", i)
		assert.Equal(t, want, got.Machine, "v%d", i)
	}

	v4 := m.Instructions[4].Operands[0]
	require.True(t, v4.IsMachine(), "v4 is spilled, so its birth site materializes through a scratch YMM")
	assert.Equal(t, mcode.YMM4, v4.Machine, "first spill temp used for the birth-site store")
	assert.Equal(t, int32(32), stack.Size(), "exactly one spill slot should have been reserved")

	// Spill slots are rsp-relative, positive offsets: rsp (not rbp) is what
	// the prologue's final `and` actually 32-byte-aligns.
	var foundLoad, foundStore bool
	for _, ins := range m.Instructions {
		if ins.Op != mcode.Vmovaps || len(ins.Operands) != 2 {
			continue
		}
		dst, src := ins.Operands[0], ins.Operands[1]
		if dst.IsMachine() && dst.Machine == mcode.YMM4 && src.IsMemory() && src.Base.Machine == mcode.RSP && src.Offset == 0 {
			foundLoad = true
		}
		if src.IsMachine() && src.Machine == mcode.YMM4 && dst.IsMemory() && dst.Base.Machine == mcode.RSP && dst.Offset == 0 {
			foundStore = true
		}
	}
	assert.True(t, foundStore, "expected a store of the spilled value to its stack slot after the birth site")
	assert.True(t, foundLoad, "expected a load of the spilled value back into a scratch register before its later use")
}

func TestLiveIntervalsTrackMemoryBaseReferences(t *testing.T) {
	// A virtual used only as a memory operand's base should still be
	// considered live across the instruction that references it.
	m := &mcode.MCode{Instructions: []mcode.Instruction{
		{Op: mcode.Vmovaps, Operands: []mcode.Register{mcode.VReg(0), dummyUse}},
		{Op: mcode.Vmovaps, Operands: []mcode.Register{dummyUse, mcode.Mem(mcode.VReg(1), 0)}},
	}}
	// VReg(1) never appears as a Base in practice (bases are always GP
	// machine registers post-prologue), but liveIntervals must not panic
	// when walking a memory operand's base field regardless.
	intervals := liveIntervals(m)
	iv, ok := intervals[1]
	require.True(t, ok)
	assert.Equal(t, interval{first: 1, last: 1}, iv)
}
