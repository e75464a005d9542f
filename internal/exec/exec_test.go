package exec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hypersonic/sdfjit/internal/encoder"
	"github.com/Hypersonic/sdfjit/internal/mcode"
	"github.com/Hypersonic/sdfjit/internal/util"
)

func skipUnlessAMD64(t *testing.T) {
	t.Helper()
	if runtime.GOARCH != "amd64" {
		t.Skip("compiled code only runs on amd64")
	}
}

// buildBroadcastConstant assembles a tiny hand-built function that ignores
// its x/y/z inputs and writes a single constant to every output lane,
// exercising the whole New/Call path without going through the compiler.
func buildBroadcastConstant(t *testing.T, v float32) ([]byte, []byte) {
	t.Helper()

	m := &mcode.MCode{Instructions: []mcode.Instruction{
		{Op: mcode.Vbroadcastss, Operands: []mcode.Register{
			mcode.YMMReg(mcode.YMM0), mcode.Imm(uint64(util.Float32ToBits(v))),
		}},
		{Op: mcode.Vmovaps, Operands: []mcode.Register{
			mcode.Mem(mcode.GPReg(mcode.R8), 0), mcode.YMMReg(mcode.YMM0),
		}},
	}}

	var pool mcode.ConstPool
	mcode.ResolveImmediates(m, &pool)

	var stack mcode.StackInfo
	mcode.InsertPrologueEpilogue(m, stack.Size())

	e := &encoder.Encoder{}
	require.NoError(t, encoder.Encode(e, m))
	return e.Code, pool.Bytes
}

func TestExecutorCallWritesBroadcastConstant(t *testing.T) {
	skipUnlessAMD64(t)

	code, constants := buildBroadcastConstant(t, 3.5)
	x, err := New(code, constants)
	require.NoError(t, err)
	defer x.Close()

	lanes := NewLaneBuffer()
	x.Call(lanes.Lanes)

	for i, got := range lanes.Output {
		require.InDelta(t, 3.5, got, 1e-6, "lane %d", i)
	}
}

func TestExecutorEntryReportsUnroundedCodeLength(t *testing.T) {
	skipUnlessAMD64(t)

	code, constants := buildBroadcastConstant(t, 1)
	x, err := New(code, constants)
	require.NoError(t, err)
	defer x.Close()

	start, size := x.Entry()
	require.NotZero(t, start)
	require.Equal(t, len(code), size)
}

func TestExecutorCloseUnmapsRegions(t *testing.T) {
	skipUnlessAMD64(t)

	code, constants := buildBroadcastConstant(t, 1)
	x, err := New(code, constants)
	require.NoError(t, err)
	require.NoError(t, x.Close())
}
