package mcode

// ResolveImmediates implements §4.6: every instruction is scanned, and for
// any instruction whose opcode does not permit immediates, each Immediate
// operand is appended to pool (deduplicated by bit pattern) and rewritten
// to a Memory operand based at the constant-pool argument register with
// the returned byte offset. Shift/round opcodes keep their immediates
// in-band as Imm8, since the encoder accepts them directly.
func ResolveImmediates(m *MCode, pool *ConstPool) {
	for i := range m.Instructions {
		ins := &m.Instructions[i]
		info := ins.Op.Info()
		if info.AllowsImmediate {
			continue
		}
		for j := range ins.Operands {
			op := &ins.Operands[j]
			if !op.IsImmediate() {
				continue
			}
			off := pool.AddFloat32(uint32(op.Immediate))
			base := GPReg(argConstants)
			*op = Mem(base, off)
		}
	}
}
