// Command sdfjitc is the reference driver for the SDF JIT compiler: it
// builds one of a handful of demo scenes, compiles it, and either dumps
// diagnostics (disassembly, constant pool, perf-map) or drives the
// raymarcher to render a PNG.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Hypersonic/sdfjit/internal/ast"
	"github.com/Hypersonic/sdfjit/internal/compiler"
	"github.com/Hypersonic/sdfjit/internal/image"
	"github.com/Hypersonic/sdfjit/internal/perfmap"
	"github.com/Hypersonic/sdfjit/internal/raymarch"
	"github.com/Hypersonic/sdfjit/internal/util"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sdfjitc",
		Short: "sdfjitc compiles and drives JIT-compiled signed-distance-field scenes",
	}

	var scene string

	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a demo scene and report its code/constant-pool size",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildScene(scene)
			if err != nil {
				return err
			}
			ast.Simplify(a)
			r, err := compiler.Compile(a)
			if err != nil {
				return err
			}
			defer r.Close()
			fmt.Printf("compiled %q: %d instructions, %d bytes code, %d bytes constants\n",
				scene, len(r.MCode.Instructions), len(r.Encoder.Code), len(r.ConstPool.Bytes))
			return nil
		},
	}
	compileCmd.Flags().StringVar(&scene, "scene", "sphere", "demo scene: sphere, box, csg")

	disasmCmd := &cobra.Command{
		Use:   "disasm",
		Short: "Compile a demo scene and print its disassembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildScene(scene)
			if err != nil {
				return err
			}
			ast.Simplify(a)
			r, err := compiler.Compile(a)
			if err != nil {
				return err
			}
			defer r.Close()
			compiler.Disassemble(os.Stdout, r)
			fmt.Println("\nconstant pool:")
			util.HexDump(os.Stdout, r.ConstPool.Bytes)
			return nil
		},
	}
	disasmCmd.Flags().StringVar(&scene, "scene", "sphere", "demo scene: sphere, box, csg")

	var width, height int
	var outPath string
	var perfMapPath string

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Raymarch a demo scene and write it to a PNG file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildScene(scene)
			if err != nil {
				return err
			}
			ast.Simplify(a)
			r, err := compiler.Compile(a)
			if err != nil {
				return err
			}
			defer r.Close()

			if perfMapPath != "" {
				start, size := r.Executor.Entry()
				if err := writePerfMapFile(perfMapPath, start, size, scene); err != nil {
					return err
				}
			}

			cam := defaultCamera()
			f := image.NewFrame(width, height)
			lightDir := r3.Scale(1/r3.Norm(r3.Vec{X: -0.4, Y: -1, Z: -0.3}), r3.Vec{X: -0.4, Y: -1, Z: -0.3})
			image.Render(r.Executor, cam, raymarch.DefaultParams, f, lightDir)

			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			return image.WritePNG(out, f)
		},
	}
	renderCmd.Flags().StringVar(&scene, "scene", "sphere", "demo scene: sphere, box, csg")
	renderCmd.Flags().IntVar(&width, "width", 256, "image width")
	renderCmd.Flags().IntVar(&height, "height", 256, "image height")
	renderCmd.Flags().StringVar(&outPath, "out", "render.png", "output PNG path")
	renderCmd.Flags().StringVar(&perfMapPath, "perf-map", "", "if set, append a perf-map entry for the compiled function to this path (nothing is written when unset)")

	var iterations int

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Time repeated calls into a compiled demo scene",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildScene(scene)
			if err != nil {
				return err
			}
			ast.Simplify(a)
			r, err := compiler.Compile(a)
			if err != nil {
				return err
			}
			defer r.Close()

			start := time.Now()
			for i := 0; i < iterations; i++ {
				r.Eval(float32(i%100), 0, 0)
			}
			elapsed := time.Since(start)
			fmt.Printf("%d calls in %s (%.1f ns/call, %d CPUs)\n",
				iterations, elapsed, float64(elapsed.Nanoseconds())/float64(iterations), runtime.NumCPU())
			return nil
		},
	}
	benchCmd.Flags().StringVar(&scene, "scene", "sphere", "demo scene: sphere, box, csg")
	benchCmd.Flags().IntVar(&iterations, "iterations", 1_000_000, "number of bundle calls")

	root.AddCommand(compileCmd, disasmCmd, renderCmd, benchCmd)
	return root
}

// buildScene constructs one of a handful of canned demo scenes by name,
// each exercising a different corner of the AST: a bare sphere, a box, and
// a small CSG tree combining both with a translate.
func buildScene(name string) (*ast.Ast, error) {
	var a ast.Ast
	p := a.Pos3V(ast.InX, ast.InY, ast.InZ)

	switch name {
	case "sphere":
		a.Sphere(p, 1)
	case "box":
		a.Box(p, 1, 1, 1)
	case "csg":
		sphere := a.Sphere(p, 1)
		p2 := a.Pos3V(ast.InX, ast.InY, ast.InZ)
		moved := a.Translate(p2, 1.5, 0, 0)
		box := a.Box(moved, 0.5, 0.5, 0.5)
		a.Add(sphere, box)
	default:
		return nil, fmt.Errorf("sdfjitc: unknown scene %q (want sphere, box, or csg)", name)
	}
	return &a, nil
}

func defaultCamera() image.Camera {
	eye := r3.Vec{X: 0, Y: 0, Z: -5}
	forward := r3.Vec{X: 0, Y: 0, Z: 1}
	up := r3.Vec{X: 0, Y: 1, Z: 0}
	right := r3.Cross(forward, up)
	return image.Camera{Eye: eye, Forward: forward, Up: up, Right: right, FOV: 0.9}
}

func writePerfMapFile(path string, start uintptr, size int, symbol string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sdfjit: opening perf map %s: %w", path, err)
	}
	defer f.Close()
	return perfmap.Write(f, start, size, symbol)
}
