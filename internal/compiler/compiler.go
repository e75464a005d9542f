// Package compiler wires the whole pipeline together: scene AST in,
// executable memory region out. It is the only package that calls every
// pipeline stage in order; everything it touches is otherwise independent
// and pass-local, per the design's ordering guarantee that each pass
// observes the output of the previous pass whole.
package compiler

import (
	"fmt"
	"io"

	"github.com/Hypersonic/sdfjit/internal/ast"
	"github.com/Hypersonic/sdfjit/internal/bytecode"
	bcpasses "github.com/Hypersonic/sdfjit/internal/bytecode/passes"
	"github.com/Hypersonic/sdfjit/internal/encoder"
	"github.com/Hypersonic/sdfjit/internal/exec"
	"github.com/Hypersonic/sdfjit/internal/mcode"
	mcpasses "github.com/Hypersonic/sdfjit/internal/mcode/passes"
	"github.com/Hypersonic/sdfjit/internal/regalloc"
)

// Result is everything a successful Compile produces: the runnable
// Executor plus the intermediate artifacts a caller may want for
// diagnostics (disassembly, perf-map emission) without recompiling.
type Result struct {
	Executor  *exec.Executor
	MCode     *mcode.MCode
	ConstPool *mcode.ConstPool
	Encoder   *encoder.Encoder
}

// Close releases the Executor's mapped memory. Callers that discard a
// Result without calling Compile again should still call Close.
func (r *Result) Close() error {
	return r.Executor.Close()
}

// Compile lowers a (simplifier-ready) scene graph through every stage in
// §2's pipeline and returns a runnable Executor. It does not call
// ast.Simplify itself — callers that want scene-level CSE run it on a
// before handing the Ast to Compile, since some callers (notably tests
// exercising the bytecode passes directly) want an unsimplified tree.
func Compile(a *ast.Ast) (*Result, error) {
	bc, err := bytecode.FromAST(a)
	if err != nil {
		return nil, fmt.Errorf("sdfjit: lowering ast to bytecode: %w", err)
	}

	bcpasses.Optimize(bc)

	m, err := mcode.Lower(bc)
	if err != nil {
		return nil, fmt.Errorf("sdfjit: lowering bytecode to machine ir: %w", err)
	}

	pool := &mcode.ConstPool{}
	mcode.ResolveImmediates(m, pool)

	var stack mcode.StackInfo
	regalloc.Allocate(m, &stack)

	mcode.InsertPrologueEpilogue(m, stack.Size())

	mcpasses.EliminateRedundantVmovaps(m)

	enc := &encoder.Encoder{}
	if err := encoder.Encode(enc, m); err != nil {
		return nil, fmt.Errorf("sdfjit: encoding machine ir: %w", err)
	}

	ex, err := exec.New(enc.Code, pool.Bytes)
	if err != nil {
		return nil, fmt.Errorf("sdfjit: mapping executable memory: %w", err)
	}

	return &Result{Executor: ex, MCode: m, ConstPool: pool, Encoder: enc}, nil
}

// Eval is a convenience wrapper around exec.Executor.Call for callers that
// only want one lane's worth of a scalar distance, e.g. the testable
// end-to-end scenarios in §8, which only ever name a single (x, y, z) point
// per assertion. Lanes 1-7 are filled with the same point so the compiled
// function still receives eight full lanes.
func (r *Result) Eval(x, y, z float32) float32 {
	lanes := exec.NewLaneBuffer()
	for i := 0; i < 8; i++ {
		lanes.X[i], lanes.Y[i], lanes.Z[i] = x, y, z
	}
	r.Executor.Call(lanes.Lanes)
	return lanes.Output[0]
}

// Disassemble writes the diagnostic listing (§6) for a compiled Result to
// w: not a stable API, purely for inspecting a miscompile.
func Disassemble(w io.Writer, r *Result) {
	encoder.Disassemble(w, r.MCode, r.Encoder)
}
