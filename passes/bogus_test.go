package passes

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/irx"
)

// straightLineFunc builds a single-block function computing (x+1)*2.
func straightLineFunc(m *ir.Module) *ir.Func {
	f := m.NewFunc("calc", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	a := entry.NewAdd(f.Params[0], constant.NewInt(types.I32, 1))
	b := entry.NewMul(a, constant.NewInt(types.I32, 2))
	entry.NewRet(b)
	return f
}

func TestBogusInsertBuildsDiamond(t *testing.T) {
	m := ir.NewModule()
	f := straightLineFunc(m)

	pass := NewBogusInsert()
	st := newTestState(11, pass)
	st.Cfg.BogusRatio = 100
	require.NoError(t, pass.Run(m, st))
	require.NoError(t, irx.VerifyModule(m))

	require.Len(t, f.Blocks, 4)
	entry := f.Blocks[0]

	// Dead slot first, then the opaque condition chain.
	slot, ok := entry.Insts[0].(*ir.InstAlloca)
	require.True(t, ok)
	assert.Equal(t, "ob_tmp", slot.Name())
	assert.IsType(t, &ir.TermCondBr{}, entry.Term)

	// Both arms store into the dead slot and rejoin.
	tt := entry.Term.(*ir.TermCondBr).TargetTrue.(*ir.Block)
	tf := entry.Term.(*ir.TermCondBr).TargetFalse.(*ir.Block)
	for _, arm := range []*ir.Block{tt, tf} {
		last, ok := arm.Insts[len(arm.Insts)-1].(*ir.InstStore)
		require.True(t, ok)
		assert.Equal(t, slot, last.Dst)
		assert.IsType(t, &ir.TermBr{}, arm.Term)
	}

	assert.NotNil(t, irx.FindFunc(m, OpaqueFuncName))
	assert.Equal(t, uint64(2), st.Counters[CounterBogusBlocks])
}

func TestBogusInsertRespectsZeroRatio(t *testing.T) {
	m := ir.NewModule()
	f := straightLineFunc(m)

	pass := NewBogusInsert()
	st := newTestState(11, pass)
	st.Cfg.BogusRatio = 0
	require.NoError(t, pass.Run(m, st))

	assert.Len(t, f.Blocks, 1)
	assert.Zero(t, st.Counters[CounterBogusBlocks])
}

func TestBogusInsertSkipsDeclarations(t *testing.T) {
	m := ir.NewModule()
	m.NewFunc("ext", types.I32, ir.NewParam("x", types.I32))

	pass := NewBogusInsert()
	st := newTestState(5, pass)
	st.Cfg.BogusRatio = 100
	require.NoError(t, pass.Run(m, st))

	assert.Zero(t, st.Counters[CounterBogusBlocks])
}

func TestBogusInsertDeterministic(t *testing.T) {
	build := func() *ir.Module {
		m := ir.NewModule()
		straightLineFunc(m)
		return m
	}
	pass := NewBogusInsert()

	m1, m2 := build(), build()
	st1 := newTestState(21, pass)
	st1.Cfg.BogusRatio = 100
	st2 := newTestState(21, pass)
	st2.Cfg.BogusRatio = 100

	require.NoError(t, pass.Run(m1, st1))
	require.NoError(t, pass.Run(m2, st2))
	assert.Equal(t, m1.String(), m2.String())
}
