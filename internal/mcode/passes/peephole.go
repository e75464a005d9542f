// Package passes implements the late machine-code optimizer: peepholes
// that run after register allocation has materialized every operand, once
// the instruction stream only contains concrete registers and memory
// operands.
package passes

import "github.com/Hypersonic/sdfjit/internal/mcode"

func sameMemory(a, b mcode.Register) bool {
	if !a.IsMemory() || !b.IsMemory() {
		return false
	}
	if a.Offset != b.Offset {
		return false
	}
	return a.Base.IsMachine() && b.Base.IsMachine() && a.Base.Machine == b.Base.Machine
}

// EliminateRedundantVmovaps implements §4.10: for adjacent vmovaps pairs
// where instruction i stores a register to a memory location and i+1
// reloads that exact location into some register, rewrite i+1's source to
// be the register i stored and, if source and destination then coincide,
// convert i+1 to Nop. Instruction i's store is kept since a later consumer
// may still read the memory.
func EliminateRedundantVmovaps(m *mcode.MCode) {
	for i := 0; i+1 < len(m.Instructions); i++ {
		store := &m.Instructions[i]
		reload := &m.Instructions[i+1]
		if store.Op != mcode.Vmovaps || reload.Op != mcode.Vmovaps {
			continue
		}
		storeDst, storeSrc := store.Operands[0], store.Operands[1]
		reloadDst, reloadSrc := reload.Operands[0], reload.Operands[1]
		if !storeDst.IsMemory() || !reloadSrc.IsMemory() {
			continue
		}
		if !sameMemory(storeDst, reloadSrc) {
			continue
		}

		reload.Operands[1] = storeSrc
		if reloadDst.IsMachine() && storeSrc.IsMachine() &&
			reloadDst.Machine == storeSrc.Machine && reloadDst.Class == storeSrc.Class {
			reload.Op = mcode.Nop
			reload.Operands = nil
		}
	}
}
