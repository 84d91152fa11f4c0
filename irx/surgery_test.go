package irx

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertInsts(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	entry := f.NewBlock("entry")
	a := entry.NewAlloca(types.I32)
	entry.NewRet(nil)

	b := ir.NewAlloca(types.I8)
	InsertInsts(entry, 0, b)

	require.Len(t, entry.Insts, 2)
	assert.Equal(t, ir.Instruction(b), entry.Insts[0])
	assert.Equal(t, ir.Instruction(a), entry.Insts[1])

	c := ir.NewAlloca(types.I64)
	InsertInsts(entry, 2, c)
	assert.Equal(t, ir.Instruction(c), entry.Insts[2])
}

func TestRemoveInst(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	entry := f.NewBlock("entry")
	entry.NewAlloca(types.I32)
	keep := entry.NewAlloca(types.I8)
	entry.NewRet(nil)

	RemoveInst(entry, 0)

	require.Len(t, entry.Insts, 1)
	assert.Equal(t, ir.Instruction(keep), entry.Insts[0])
}

func TestNewBlockAfterAndBefore(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	first := f.NewBlock("first")
	last := f.NewBlock("last")

	mid := NewBlockAfter(f, first, "mid")
	pre := NewBlockBefore(f, first, "pre")

	require.Len(t, f.Blocks, 4)
	assert.Equal(t, []*ir.Block{pre, first, mid, last}, f.Blocks)
	assert.Same(t, f, mid.Parent)
	assert.Same(t, f, pre.Parent)
}

func TestSplitAfter(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	x := f.Params[0]
	entry := f.NewBlock("entry")
	a := entry.NewAdd(x, constant.NewInt(types.I32, 1))
	b := entry.NewMul(a, a)
	c := entry.NewSub(b, x)
	entry.NewRet(c)

	tail := SplitAfter(f, entry, 0, "entry.main")

	assert.Equal(t, []*ir.Block{entry, tail}, f.Blocks)
	require.Len(t, entry.Insts, 1)
	assert.Nil(t, entry.Term)
	require.Len(t, tail.Insts, 2)
	assert.IsType(t, &ir.TermRet{}, tail.Term)

	entry.NewBr(tail)
	assert.NoError(t, VerifyFunc(f))
}

func TestSplitAtRetargetsPhis(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("c", types.I1))
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	join := f.NewBlock("join")

	entry.NewCondBr(f.Params[0], left, right)
	left.NewBr(join)
	right.NewBr(join)
	phi := join.NewPhi(
		ir.NewIncoming(constant.NewInt(types.I32, 1), left),
		ir.NewIncoming(constant.NewInt(types.I32, 2), right),
	)
	join.NewRet(phi)

	tail := SplitAt(f, left, 0, "left.tail")
	left.NewBr(tail)

	// The moved branch now owns the edge into join; the PHI must name the
	// tail, not the truncated block.
	assert.Equal(t, tail, phi.Incs[0].Pred)
	assert.Equal(t, right, phi.Incs[1].Pred)
	assert.NoError(t, VerifyFunc(f))
}

func TestDetachAttachBlock(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	entry := f.NewBlock("entry")
	body := f.NewBlock("body")
	entry.NewBr(body)
	body.NewRet(nil)

	DetachBlock(f, body)
	assert.Equal(t, []*ir.Block{entry}, f.Blocks)

	AttachBlock(f, body)
	assert.Equal(t, []*ir.Block{entry, body}, f.Blocks)
	assert.Same(t, f, body.Parent)
}
