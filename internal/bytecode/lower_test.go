package bytecode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hypersonic/sdfjit/internal/ast"
	"github.com/Hypersonic/sdfjit/internal/compileerr"
)

// eval is a tiny direct interpreter used only by tests: it walks a Bytecode
// forward (already topologically ordered) and returns the value the final
// Store_Result node consumed. It exists purely so lowering can be checked
// without standing up the machine-code backend.
func eval(t *testing.T, bc *Bytecode, x, y, z float32) float32 {
	t.Helper()
	values := make([]float32, len(bc.Nodes))
	var result float32
	var resultSet bool

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
			resultSet = true
			continue
		case Nop:
			continue
		default:
			t.Fatalf("eval: unhandled op %s at @%d", n.Op, i)
		}
		values[i] = v
	}

	require.True(t, resultSet, "bytecode never reached a Store_Result")
	return result
}

func TestFromASTSphere(t *testing.T) {
	var a ast.Ast
	p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
	a.Sphere(p, 1)

	bc, err := FromAST(&a)
	require.NoError(t, err)

	assert.InDelta(t, float32(1), eval(t, bc, 2, 0, 0), 1e-4)
	assert.InDelta(t, float32(0), eval(t, bc, 1, 0, 0), 1e-4)
	assert.InDelta(t, float32(-1), eval(t, bc, 0, 0, 0), 1e-4)
}

func TestFromASTUnionTakesMinimum(t *testing.T) {
	var a ast.Ast
	p1 := a.Pos3(0, 0, 0)
	p2 := a.Pos3(5, 0, 0)
	s1 := a.Sphere(p1, 1)
	s2 := a.Sphere(p2, 1)
	a.Add(s1, s2)

	bc, err := FromAST(&a)
	require.NoError(t, err)

	// at the origin, s1 is -1 and s2 is far positive; union picks the min.
	assert.InDelta(t, float32(-1), eval(t, bc, 0, 0, 0), 1e-4)
}

func TestFromASTTranslateShiftsTheQueryPoint(t *testing.T) {
	var a ast.Ast
	p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
	moved := a.Translate(p, 5, 0, 0)
	a.Sphere(moved, 1)

	bc, err := FromAST(&a)
	require.NoError(t, err)

	assert.InDelta(t, float32(-1), eval(t, bc, 5, 0, 0), 1e-4)
}

func TestFromASTScaleIsRejected(t *testing.T) {
	var a ast.Ast
	p := a.Pos3(0, 0, 0)
	scaled := a.Scale(p, 2, 2, 2)
	a.Sphere(scaled, 1)

	_, err := FromAST(&a)
	require.Error(t, err)

	var ce *compileerr.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, compileerr.MissingOpcodeCoverage, ce.Kind)
}

func TestFromASTSelectChoosesBranchByComparator(t *testing.T) {
	var a ast.Ast
	lhs := a.Float32Const(1)
	rhs := a.Float32Const(2)
	trueCase := a.Float32Const(100)
	falseCase := a.Float32Const(200)
	a.SelectNode(ast.LT, lhs, rhs, trueCase, falseCase)

	bc, err := FromAST(&a)
	require.NoError(t, err)

	assert.Equal(t, float32(100), eval(t, bc, 0, 0, 0))
}

func TestFromASTRotateMatchesReferenceAtQuarterTurn(t *testing.T) {
	var a ast.Ast
	p := a.Pos3V(ast.InX, ast.InY, ast.InZ)
	rotated := a.Rotate(p, 0, 0, float32(math.Pi/2))
	a.Sphere(rotated, 1)

	bc, err := FromAST(&a)
	require.NoError(t, err)

	// rotating the query point 90 degrees about Z moves (1, 0, 0) queries to
	// where (0, 1, 0) would have sampled an un-rotated sphere: still on the
	// surface either way, so the distance is unaffected by a pure rotation.
	assert.InDelta(t, float32(0), eval(t, bc, 1, 0, 0), 1e-3)
}
