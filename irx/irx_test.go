package irx

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDeclaration(t *testing.T) {
	m := ir.NewModule()
	decl := m.NewFunc("ext", types.Void)
	def := m.NewFunc("f", types.Void)
	def.NewBlock("entry").NewRet(nil)

	assert.True(t, IsDeclaration(decl))
	assert.False(t, IsDeclaration(def))
}

func TestFirstRealIndexSkipsPhisAndIntrinsics(t *testing.T) {
	m := ir.NewModule()
	dbg := m.NewFunc("llvm.dbg.value", types.Void)

	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	body := f.NewBlock("body")
	entry.NewBr(body)

	phi := body.NewPhi(ir.NewIncoming(f.Params[0], entry))
	body.NewCall(dbg)
	sum := body.NewAdd(phi, constant.NewInt(types.I32, 1))
	body.NewRet(sum)

	assert.Equal(t, 2, FirstRealIndex(body))
	assert.Equal(t, 0, FirstRealIndex(entry))
}

func TestFirstRealIndexEmptyBlock(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	entry := f.NewBlock("entry")
	entry.NewRet(nil)

	assert.Equal(t, -1, FirstRealIndex(entry))
}

func TestFindFuncAndEnsureDecl(t *testing.T) {
	m := ir.NewModule()
	i8ptr := types.NewPointer(types.I8)

	assert.Nil(t, FindFunc(m, "__obf_decrypt"))

	first := EnsureDecl(m, "__obf_decrypt", i8ptr, ir.NewParam("str", i8ptr))
	second := EnsureDecl(m, "__obf_decrypt", i8ptr, ir.NewParam("str", i8ptr))

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Same(t, first, FindFunc(m, "__obf_decrypt"))
	assert.Len(t, m.Funcs, 1)
}

func TestPreds(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void, ir.NewParam("c", types.I1))
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	join := f.NewBlock("join")

	entry.NewCondBr(f.Params[0], left, right)
	left.NewBr(join)
	right.NewBr(join)
	join.NewRet(nil)

	assert.Equal(t, []*ir.Block{entry}, Preds(f, left))
	assert.Equal(t, []*ir.Block{left, right}, Preds(f, join))
	assert.Empty(t, Preds(f, entry))
}

func TestUniqueLocal(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	slot := entry.NewAlloca(types.I32)
	slot.SetName("ob_tmp")
	entry.NewRet(constant.NewInt(types.I32, 0))

	assert.Equal(t, "fresh", UniqueLocal(f, "fresh"))
	assert.Equal(t, "x.1", UniqueLocal(f, "x"))
	assert.Equal(t, "entry.1", UniqueLocal(f, "entry"))
	assert.Equal(t, "ob_tmp.1", UniqueLocal(f, "ob_tmp"))
}

func TestReplaceUses(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	x := f.Params[0]
	entry := f.NewBlock("entry")
	a := entry.NewAdd(x, constant.NewInt(types.I32, 1))
	b := entry.NewMul(a, a)
	entry.NewRet(b)

	replacement := constant.NewInt(types.I32, 7)
	n := ReplaceUses(f, a, replacement)

	assert.Equal(t, 2, n)
	assert.Equal(t, replacement, b.X)
	assert.Equal(t, replacement, b.Y)
}

func TestFuncUsesFindsTerminatorOperands(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	a := entry.NewAdd(f.Params[0], constant.NewInt(types.I32, 1))
	entry.NewRet(a)

	uses := FuncUses(f, a)
	require.Len(t, uses, 1)
	assert.True(t, uses[0].IsTerm())
	assert.Equal(t, entry, uses[0].Block)
}

func TestOperandsCoverSelectAndICmp(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	x := f.Params[0]
	entry := f.NewBlock("entry")
	cmp := entry.NewICmp(enum.IPredSGT, x, constant.NewInt(types.I32, 0))
	sel := entry.NewSelect(cmp, x, constant.NewInt(types.I32, 0))
	entry.NewRet(sel)

	assert.Len(t, Operands(cmp), 2)
	assert.Len(t, Operands(sel), 3)
	assert.Len(t, FuncUses(f, cmp), 1)
}
