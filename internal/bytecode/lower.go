package bytecode

import (
	"github.com/Hypersonic/sdfjit/internal/ast"
	"github.com/Hypersonic/sdfjit/internal/compileerr"
)

// results holds the bytecode ids produced by lowering one ast node: a
// single id for scalar-valued nodes (Sphere, Box, Add, ...), three ids
// (x, y, z) for position-valued nodes (Pos3, Rotate, Translate).
type results []NodeID

// FromAST lowers a fully simplified scene graph into scalar SSA bytecode in
// a single forward pass, implementing the SDF identities named in the
// design: Sphere and Box expand to their standard distance formulas, Add/
// Subtract/Intersect become min/max of their operands, and Rotate/
// Translate thread a running (x, y, z) triple through each transform in
// sequence. The final emitted node is always a Store_Result consuming the
// scene root's value.
func FromAST(a *ast.Ast) (*Bytecode, error) {
	bc := &Bytecode{}

	argX := bc.LoadArg(0)
	argY := bc.LoadArg(1)
	argZ := bc.LoadArg(2)
	argConstants := bc.LoadArg(3)

	astToBC := make(map[ast.NodeID]NodeID, len(a.Nodes))
	astResults := make(map[ast.NodeID]results, len(a.Nodes))

	astToBC[ast.InX] = argX
	astResults[ast.InX] = results{argX}
	astToBC[ast.InY] = argY
	astResults[ast.InY] = results{argY}
	astToBC[ast.InZ] = argZ
	astResults[ast.InZ] = results{argZ}
	astToBC[ast.InConstants] = argConstants
	astResults[ast.InConstants] = results{argConstants}

	for i := range a.Nodes {
		id := ast.NodeID(i)
		n := &a.Nodes[i]

		switch n.Op {
		case ast.Sphere:
			pos := astResults[n.Children[0]]
			px, py, pz := pos[0], pos[1], pos[2]
			radius := astToBC[n.Children[1]]

			xSq := bc.Multiply(px, px)
			ySq := bc.Multiply(py, py)
			zSq := bc.Multiply(pz, pz)
			length := bc.Sqrt(bc.Add(xSq, bc.Add(ySq, zSq)))
			result := bc.Subtract(length, radius)
			astToBC[id] = result
			astResults[id] = results{result}

		case ast.Box:
			pos := astResults[n.Children[0]]
			px, py, pz := pos[0], pos[1], pos[2]
			wx := astToBC[n.Children[1]]
			wy := astToBC[n.Children[2]]
			wz := astToBC[n.Children[3]]

			dx := bc.Subtract(bc.Abs(px), wx)
			dy := bc.Subtract(bc.Abs(py), wy)
			dz := bc.Subtract(bc.Abs(pz), wz)

			zero := bc.AssignFloat(0)
			dxMax := bc.Max(dx, zero)
			dyMax := bc.Max(dy, zero)
			dzMax := bc.Max(dz, zero)
			dxSq := bc.Multiply(dxMax, dxMax)
			dySq := bc.Multiply(dyMax, dyMax)
			dzSq := bc.Multiply(dzMax, dzMax)
			length := bc.Sqrt(bc.Add(dxSq, bc.Add(dySq, dzSq)))

			minmax := bc.Min(bc.Max(dx, bc.Max(dy, dz)), zero)

			result := bc.Add(length, minmax)
			astToBC[id] = result
			astResults[id] = results{result}

		case ast.Float32:
			result := bc.AssignFloat(n.Value)
			astToBC[id] = result
			astResults[id] = results{result}

		case ast.Pos3:
			x := astToBC[n.Children[0]]
			y := astToBC[n.Children[1]]
			z := astToBC[n.Children[2]]
			astResults[id] = results{x, y, z}

		case ast.Noop:
			// contributes nothing.

		case ast.Add:
			lhs, rhs := astToBC[n.Children[0]], astToBC[n.Children[1]]
			result := bc.Min(lhs, rhs)
			astToBC[id] = result
			astResults[id] = results{result}

		case ast.Subtract:
			lhs, rhs := astToBC[n.Children[0]], astToBC[n.Children[1]]
			result := bc.Max(bc.Negate(lhs), rhs)
			astToBC[id] = result
			astResults[id] = results{result}

		case ast.Intersect:
			lhs, rhs := astToBC[n.Children[0]], astToBC[n.Children[1]]
			result := bc.Max(lhs, rhs)
			astToBC[id] = result
			astResults[id] = results{result}

		case ast.Rotate:
			pos := astResults[n.Children[0]]
			x, y, z := pos[0], pos[1], pos[2]
			rot := astResults[n.Children[1]]
			rx, ry, rz := rot[0], rot[1], rot[2]

			sinrx, cosrx := bc.Sin(rx), bc.Cos(rx)
			sinry, cosry := bc.Sin(ry), bc.Cos(ry)
			sinrz, cosrz := bc.Sin(rz), bc.Cos(rz)

			// Rotate about X: x'=x; y'=y*cos-z*sin; z'=y*sin+z*cos
			{
				yPrime := bc.Subtract(bc.Multiply(y, cosrx), bc.Multiply(z, sinrx))
				zPrime := bc.Add(bc.Multiply(y, sinrx), bc.Multiply(z, cosrx))
				y, z = yPrime, zPrime
			}
			// Rotate about Y: x'=x*cos+z*sin; y'=y; z'=-x*sin+z*cos
			{
				xPrime := bc.Add(bc.Multiply(x, cosry), bc.Multiply(z, sinry))
				zPrime := bc.Add(bc.Multiply(x, bc.Negate(sinry)), bc.Multiply(z, cosry))
				x, z = xPrime, zPrime
			}
			// Rotate about Z: x'=x*cos-y*sin; y'=x*sin+y*cos; z'=z
			{
				xPrime := bc.Subtract(bc.Multiply(x, cosrz), bc.Multiply(y, sinrz))
				yPrime := bc.Add(bc.Multiply(x, sinrz), bc.Multiply(y, cosrz))
				x, y = xPrime, yPrime
			}

			astResults[id] = results{x, y, z}

		case ast.Translate:
			pos := astResults[n.Children[0]]
			x, y, z := pos[0], pos[1], pos[2]
			delta := astResults[n.Children[1]]
			dx, dy, dz := delta[0], delta[1], delta[2]

			astResults[id] = results{
				bc.Subtract(x, dx),
				bc.Subtract(y, dy),
				bc.Subtract(z, dz),
			}

		case ast.Scale:
			// Scale is declared in the scene graph but intentionally never
			// lowered (see DESIGN.md open questions).
			return nil, compileerr.New(compileerr.MissingOpcodeCoverage,
				"ast.Scale has no bytecode lowering (node @%d)", i)

		case ast.Select:
			lhs := astToBC[n.Children[0]]
			rhs := astToBC[n.Children[1]]
			trueCase := astToBC[n.Children[2]]
			falseCase := astToBC[n.Children[3]]
			result := bc.SelectNode(CompareType(n.Compare), lhs, rhs, trueCase, falseCase)
			astToBC[id] = result
			astResults[id] = results{result}

		default:
			panic("sdfjit: unreachable ast op in bytecode lowering")
		}
	}

	root := a.RootID()
	bc.StoreResult(astToBC[root])

	return bc, nil
}
