package bytecode

import "math"

// Eval is a direct, non-JIT interpreter over a fully lowered Bytecode: it
// walks Nodes forward (already topologically ordered, by construction) and
// returns the value the final Store_Result consumed. It shares no code with
// the machine-code lowering path, so it can serve as an independent
// reference for the JIT output; no test in this module calls it (the
// compiler's end-to-end tests check literal expected values instead).
func Eval(bc *Bytecode, x, y, z float32) float32 {
	values := make([]float32, len(bc.Nodes))
	var result float32

	for i, n := range bc.Nodes {
		var v float32
		switch n.Op {
		case LoadArg:
			switch n.ArgIndex {
			case 0:
				v = x
			case 1:
				v = y
			case 2:
				v = z
			default:
				v = 0
			}
		case AssignFloat:
			v = n.Float
		case Add:
			v = values[n.Operands[0]] + values[n.Operands[1]]
		case Subtract:
			v = values[n.Operands[0]] - values[n.Operands[1]]
		case Multiply:
			v = values[n.Operands[0]] * values[n.Operands[1]]
		case Divide:
			v = values[n.Operands[0]] / values[n.Operands[1]]
		case Sqrt:
			v = float32(math.Sqrt(float64(values[n.Operands[0]])))
		case Rsqrt:
			v = float32(1 / math.Sqrt(float64(values[n.Operands[0]])))
		case Abs:
			v = float32(math.Abs(float64(values[n.Operands[0]])))
		case Negate:
			v = -values[n.Operands[0]]
		case Min:
			v = float32(math.Min(float64(values[n.Operands[0]]), float64(values[n.Operands[1]])))
		case Max:
			v = float32(math.Max(float64(values[n.Operands[0]]), float64(values[n.Operands[1]])))
		case Sin:
			v = float32(math.Sin(float64(values[n.Operands[0]])))
		case Cos:
			v = float32(math.Cos(float64(values[n.Operands[0]])))
		case Mod:
			v = float32(math.Mod(float64(values[n.Operands[0]]), float64(values[n.Operands[1]])))
		case Select:
			lhs, rhs := values[n.Operands[0]], values[n.Operands[1]]
			var hold bool
			switch n.Compare {
			case EQ:
				hold = lhs == rhs
			case LT:
				hold = lhs < rhs
			case GT:
				hold = lhs > rhs
			}
			if hold {
				v = values[n.Operands[2]]
			} else {
				v = values[n.Operands[3]]
			}
		case StoreResult:
			result = values[n.Operands[0]]
			continue
		case Nop:
			continue
		case Assign:
			panic("sdfjit: unreachable bytecode op Assign reached Eval")
		default:
			panic("sdfjit: unreachable bytecode op in Eval")
		}
		values[i] = v
	}

	return result
}
