package passes

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"go.uber.org/zap"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/irx"
)

// BogusInsert grafts an opaque diamond onto the entry of admitted functions.
// The entry is split after its first real instruction; a call into the
// opaque runtime helper decides between two arms that compute different
// garbage values into a dead stack slot before rejoining.  Either arm may
// execute at runtime, and neither changes observable behavior.
type BogusInsert struct{}

// NewBogusInsert returns the bogus control flow pass.
func NewBogusInsert() *BogusInsert {
	return &BogusInsert{}
}

// Name implements Pass.
func (*BogusInsert) Name() string { return "bogus-insert" }

// Salt implements Pass.
func (*BogusInsert) Salt() uint32 { return SaltBogus }

// Run implements Pass.
func (p *BogusInsert) Run(m *ir.Module, st *State) error {
	opaque := irx.EnsureDecl(m, OpaqueFuncName, types.I32, ir.NewParam("x", types.I32))

	for _, f := range m.Funcs {
		if irx.IsDeclaration(f) || f == opaque {
			continue
		}
		// Admission is drawn per function so the ratio controls density, not
		// an all-or-nothing switch.
		if st.Rand.Intn(100) >= uint32(st.Cfg.BogusRatio) {
			continue
		}
		if p.insertDiamond(f, opaque, st) {
			st.Counters[CounterBogusBlocks] += 2
			st.Log.Debug("inserted bogus diamond", zap.String("func", f.Name()))
		}
	}
	return nil
}

// insertDiamond splits f's entry after its first real instruction and wires
// the opaque diamond between the halves.  Returns false when the entry holds
// nothing to split after.
func (p *BogusInsert) insertDiamond(f *ir.Func, opaque *ir.Func, st *State) bool {
	entry := irx.Entry(f)
	idx := irx.FirstRealIndex(entry)
	if idx < 0 {
		return false
	}

	arg := diamondArg(entry.Insts[idx], st)
	tail := irx.SplitAfter(f, entry, idx, irx.UniqueLocal(f, "entry.main"))

	slot := ir.NewAlloca(types.I32)
	slot.SetName(irx.UniqueLocal(f, "ob_tmp"))
	irx.InsertInsts(entry, 0, slot)

	masked := ir.NewAnd(arg, constant.NewInt(types.I32, 0xFFFF))
	call := ir.NewCall(opaque, masked)
	low := ir.NewAnd(call, constant.NewInt(types.I32, 0xFF))
	cond := ir.NewICmp(enum.IPredEQ, low, constant.NewInt(types.I32, 0))
	irx.AppendInsts(entry, masked, call, low, cond)

	bt := irx.NewBlockAfter(f, entry, irx.UniqueLocal(f, "bogus.true"))
	t1 := ir.NewAdd(arg, constant.NewInt(types.I32, 13))
	t2 := ir.NewMul(t1, constant.NewInt(types.I32, 7))
	irx.AppendInsts(bt, t1, t2, ir.NewStore(t2, slot))
	bt.Term = ir.NewBr(tail)

	bf := irx.NewBlockAfter(f, bt, irx.UniqueLocal(f, "bogus.false"))
	f1 := ir.NewSub(arg, constant.NewInt(types.I32, 3))
	f2 := ir.NewShl(f1, constant.NewInt(types.I32, 2))
	irx.AppendInsts(bf, f1, f2, ir.NewStore(f2, slot))
	bf.Term = ir.NewBr(tail)

	entry.Term = ir.NewCondBr(cond, bt, bf)
	return true
}

// diamondArg picks the i32 value the diamond chews on: the split
// instruction's own result when it yields an i32, otherwise a random
// constant.
func diamondArg(inst ir.Instruction, st *State) value.Value {
	if v, ok := inst.(value.Value); ok && types.Equal(v.Type(), types.I32) {
		return v
	}
	return constant.NewInt(types.I32, int64(st.Rand.Next()&0x7FFFFFFF))
}
