package passes

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"go.uber.org/zap"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/irx"
)

// FakeLoop splices a bounded counting loop into one block of each eligible
// function.  The loop spins a small random number of times over dead
// arithmetic before falling through to the code that was there before, so
// control flow gains a cycle without any observable effect.
type FakeLoop struct{}

// NewFakeLoop returns the fake loop insertion pass.
func NewFakeLoop() *FakeLoop {
	return &FakeLoop{}
}

// Name implements Pass.
func (*FakeLoop) Name() string { return "fake-loop" }

// Salt implements Pass.
func (*FakeLoop) Salt() uint32 { return SaltFakeLoop }

// Run implements Pass.
func (p *FakeLoop) Run(m *ir.Module, st *State) error {
	for _, f := range m.Funcs {
		if irx.IsDeclaration(f) || len(f.Blocks) < 3 {
			continue
		}
		if p.insertLoop(f, st) {
			st.Counters[CounterFakeLoops]++
			st.Log.Debug("inserted fake loop", zap.String("func", f.Name()))
		}
	}
	return nil
}

// insertLoop picks a block at random, splits it at its first real
// instruction, and wires header and body blocks between the halves.  The
// loop counter lives on the stack so the rewrite introduces no new
// cross-block SSA values.
func (p *FakeLoop) insertLoop(f *ir.Func, st *State) bool {
	target := f.Blocks[st.Rand.Intn(uint32(len(f.Blocks)))]

	splitIdx := irx.FirstRealIndex(target)
	if splitIdx < 0 {
		splitIdx = len(target.Insts)
	}
	after := irx.SplitAt(f, target, splitIdx, irx.UniqueLocal(f, "fake.after"))

	header := irx.NewBlockAfter(f, target, irx.UniqueLocal(f, "fake.header"))
	body := irx.NewBlockAfter(f, header, irx.UniqueLocal(f, "fake.body"))

	slot := ir.NewAlloca(types.I32)
	slot.SetName(irx.UniqueLocal(f, "fl.cnt"))
	irx.InsertInsts(irx.Entry(f), 0, slot)

	init := int64(st.Rand.Intn(5) + 3)
	irx.AppendInsts(target, ir.NewStore(constant.NewInt(types.I32, init), slot))
	target.Term = ir.NewBr(header)

	cur := ir.NewLoad(types.I32, slot)
	cmp := ir.NewICmp(enum.IPredSGT, cur, constant.NewInt(types.I32, 0))
	irx.AppendInsts(header, cur, cmp)
	header.Term = ir.NewCondBr(cmp, body, after)

	bcur := ir.NewLoad(types.I32, slot)
	dec := ir.NewSub(bcur, constant.NewInt(types.I32, 1))
	tmp := ir.NewAdd(dec, constant.NewInt(types.I32, 7))
	sh := ir.NewLShr(tmp, constant.NewInt(types.I32, 1))
	irx.AppendInsts(body, bcur, dec, tmp, sh, ir.NewStore(dec, slot))
	body.Term = ir.NewBr(header)

	return true
}
