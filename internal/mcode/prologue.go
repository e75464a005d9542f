package mcode

// InsertPrologueEpilogue wires a standard frame around m using an
// InsertionSet at the two fixed anchors named in §4.9: Before index 0 for
// the prologue, After the last index for the epilogue. stackSize is the
// number of bytes StackInfo handed out; the frame reserves that much,
// rounded up by the AND-alignment below regardless of the exact value.
func InsertPrologueEpilogue(m *MCode, stackSize int32) {
	var ins InsertionSet

	ins.Before(0, Instruction{Op: Push, Operands: []Register{GPReg(RBP)}})
	ins.Before(0, Instruction{Op: Mov, Operands: []Register{GPReg(RBP), GPReg(RSP)}})
	ins.Before(0, Instruction{Op: Sub, Operands: []Register{GPReg(RSP), Imm(uint64(stackSize))}})
	// Align the stack to 32 bytes so YMM spill slots can use aligned loads
	// and stores.
	ins.Before(0, Instruction{Op: And64, Operands: []Register{GPReg(RSP), Imm(0xFFFFFFFFFFFFFFE0)}})

	last := len(m.Instructions) - 1
	ins.After(last, Instruction{Op: Mov, Operands: []Register{GPReg(RSP), GPReg(RBP)}})
	ins.After(last, Instruction{Op: Pop, Operands: []Register{GPReg(RBP)}})
	ins.After(last, Instruction{Op: Ret})

	ins.Commit(m)
}
