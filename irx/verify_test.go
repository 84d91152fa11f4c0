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

func TestVerifyCleanModule(t *testing.T) {
	m := ir.NewModule()
	diamondFunc(m)
	m.NewFunc("ext", types.Void)

	assert.NoError(t, VerifyModule(m))
}

func TestVerifyMissingTerminator(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	f.NewBlock("entry")

	err := VerifyFunc(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no terminator")
}

func TestVerifyDetachedBranchTarget(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	entry := f.NewBlock("entry")

	orphan := ir.NewBlock("orphan")
	orphan.NewRet(nil)
	entry.NewBr(orphan)

	err := VerifyFunc(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detached block")
}

func TestVerifyUnreachableBlock(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Void)
	entry := f.NewBlock("entry")
	entry.NewRet(nil)
	island := f.NewBlock("island")
	island.NewRet(nil)

	err := VerifyFunc(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestVerifyPhiPredecessorMismatch(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("c", types.I1))
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")
	join := f.NewBlock("join")

	entry.NewCondBr(f.Params[0], left, right)
	left.NewBr(join)
	right.NewBr(join)

	// Only one incoming value for two predecessors.
	phi := join.NewPhi(ir.NewIncoming(constant.NewInt(types.I32, 1), left))
	join.NewRet(phi)

	err := VerifyFunc(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incoming")
}

func TestVerifyPhiAfterRealInstruction(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	body := f.NewBlock("body")
	entry.NewBr(body)

	sum := body.NewAdd(f.Params[0], constant.NewInt(types.I32, 1))
	phi := ir.NewPhi(ir.NewIncoming(sum, entry))
	body.Insts = append(body.Insts, phi)
	body.NewRet(sum)

	err := VerifyFunc(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PHI node after non-PHI")
}

func TestVerifyUseBeforeDefinition(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32)
	entry := f.NewBlock("entry")

	one := constant.NewInt(types.I32, 1)
	b := ir.NewAdd(one, one)
	a := ir.NewAdd(b, one)
	entry.Insts = append(entry.Insts, a, b)
	entry.NewRet(a)

	err := VerifyFunc(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before definition")
}

func TestVerifyUseNotDominated(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("c", types.I1))
	entry := f.NewBlock("entry")
	left := f.NewBlock("left")
	right := f.NewBlock("right")

	entry.NewCondBr(f.Params[0], left, right)
	sum := left.NewAdd(constant.NewInt(types.I32, 1), constant.NewInt(types.I32, 2))
	left.NewRet(sum)
	// right reads a value only the left arm computes.
	right.NewRet(sum)

	err := VerifyFunc(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not dominated")
}

func TestVerifyDeclarationsAlwaysPass(t *testing.T) {
	m := ir.NewModule()
	decl := m.NewFunc("ext", types.Void)
	assert.NoError(t, VerifyFunc(decl))
}

func TestRoundTrip(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	cmp := entry.NewICmp(enum.IPredEQ, f.Params[0], constant.NewInt(types.I32, 0))
	sel := entry.NewSelect(cmp, constant.NewInt(types.I32, 10), f.Params[0])
	entry.NewRet(sel)

	assert.NoError(t, RoundTrip(m))
}
