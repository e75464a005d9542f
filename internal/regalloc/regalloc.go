// Package regalloc implements the linear-scan allocator with spilling
// described in §4.7: live-interval computation over virtual registers,
// slot assignment from a small fixed YMM pool, and insertion-set-staged
// spill materialization.
package regalloc

import (
	"github.com/Hypersonic/sdfjit/internal/mcode"
)

// pool is the four general-purpose YMM registers available to virtual
// registers; the other four low YMMs (spillTemps) are reserved exclusively
// as scratch for loading/storing spilled values and are never placed in
// this free-list.
var pool = []mcode.MachineReg{
	mcode.YMM0, mcode.YMM1, mcode.YMM2, mcode.YMM3,
}

// spillTemps must hold at least as many scratch registers as the maximum
// operand count of any opcode (§4.7 step 3): Vblendvps has four (one set,
// three use), so a single spilled instruction can need all four loaded
// simultaneously before it executes. Four registers is also exactly enough
// headroom that nextTemp's cycling can never reuse a register within one
// instruction's materialization.
//
// Kept to YMM4-7 (register numbers 4-7, not 8-15) deliberately: the
// ModR/M-reg-encoded operand of vblendvps/vcmpps (requireReg8 in the
// encoder) can only name registers 0-7 without a REX/VEX extension bit this
// encoder doesn't emit, and materialize assigns temps by operand position
// without knowing which position that is for a given opcode — so every
// temp must be safe in any operand slot, not just the VEX.vvvv/immediate
// ones that do tolerate 8-15.
var spillTemps = []mcode.MachineReg{mcode.YMM4, mcode.YMM5, mcode.YMM6, mcode.YMM7}

type interval struct {
	first, last int
}

// liveIntervals computes, for every virtual register mentioned in m, the
// first and last instruction index that references it. A single forward
// sweep suffices since every reference is in the same flat list.
func liveIntervals(m *mcode.MCode) map[mcode.VirtualID]interval {
	intervals := make(map[mcode.VirtualID]interval)
	note := func(v mcode.VirtualID, idx int) {
		iv, ok := intervals[v]
		if !ok {
			intervals[v] = interval{first: idx, last: idx}
			return
		}
		if idx < iv.first {
			iv.first = idx
		}
		if idx > iv.last {
			iv.last = idx
		}
		intervals[v] = iv
	}

	for idx, ins := range m.Instructions {
		for _, r := range ins.Operands {
			if r.IsVirtual() {
				note(r.Virtual, idx)
			}
			if r.IsMemory() && r.Base.IsVirtual() {
				note(r.Base.Virtual, idx)
			}
		}
	}
	return intervals
}

// Allocate walks m in order, assigning every virtual register a concrete
// Register (machine or memory spill slot) and materializing spills through
// an insertion set, exactly as §4.7 describes. It mutates m and stack in
// place.
func Allocate(m *mcode.MCode, stack *mcode.StackInfo) {
	intervals := liveIntervals(m)

	free := append([]mcode.MachineReg(nil), pool...)
	assigned := make(map[mcode.VirtualID]mcode.Register)

	var ins mcode.InsertionSet

	// births/deaths, bucketed by instruction index, so slot assignment and
	// reclamation happen in program order without re-scanning intervals.
	birthsAt := make(map[int][]mcode.VirtualID)
	deathsAt := make(map[int][]mcode.VirtualID)
	for v, iv := range intervals {
		birthsAt[iv.first] = append(birthsAt[iv.first], v)
		deathsAt[iv.last] = append(deathsAt[iv.last], v)
	}

	for idx := range m.Instructions {
		for _, v := range birthsAt[idx] {
			if _, ok := assigned[v]; ok {
				continue
			}
			if len(free) > 0 {
				reg := free[len(free)-1]
				free = free[:len(free)-1]
				assigned[v] = mcode.YMMReg(reg)
			} else {
				off := stack.AllocSlot()
				// RSP, not RBP, is what the prologue's AND actually
				// 32-byte-aligns (mcode.InsertPrologueEpilogue runs the
				// align after RBP has already captured the unaligned
				// entry RSP), so spill slots are addressed as positive
				// [rsp+off] offsets, matching the original assembler's
				// own rsp-relative spill addressing.
				assigned[v] = mcode.Mem(mcode.GPReg(mcode.RSP), off)
			}
		}

		materialize(&m.Instructions[idx], idx, assigned, &ins)

		for _, v := range deathsAt[idx] {
			reg, ok := assigned[v]
			if ok && reg.IsMachine() {
				free = append(free, reg.Machine)
			}
		}
	}

	ins.Commit(m)
}

// materialize rewrites every virtual operand of the instruction at idx to
// its assigned concrete Register. Spilled (memory) assignments are staged
// through a temporary YMM: a load before the instruction if it reads the
// operand, a store after if it writes the operand.
func materialize(insn *mcode.Instruction, idx int, assigned map[mcode.VirtualID]mcode.Register, set *mcode.InsertionSet) {
	info := insn.Op.Info()
	isSet := func(pos int) bool { return contains(info.Set, pos) }
	isUse := func(pos int) bool { return contains(info.Use, pos) }

	tempIdx := 0
	nextTemp := func() mcode.MachineReg {
		r := spillTemps[tempIdx%len(spillTemps)]
		tempIdx++
		return r
	}

	for pos := range insn.Operands {
		op := &insn.Operands[pos]
		if !op.IsVirtual() {
			continue
		}
		reg, ok := assigned[op.Virtual]
		if !ok {
			continue
		}
		if reg.IsMachine() {
			*op = reg
			continue
		}

		// Spilled: stage loads/stores through a scratch YMM.
		temp := mcode.YMMReg(nextTemp())
		if isUse(pos) {
			set.Before(idx, mcode.Instruction{Op: mcode.Vmovaps, Operands: []mcode.Register{temp, reg}})
		}
		if isSet(pos) {
			set.After(idx, mcode.Instruction{Op: mcode.Vmovaps, Operands: []mcode.Register{reg, temp}})
		}
		*op = temp
	}
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
