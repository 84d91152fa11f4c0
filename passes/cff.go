package passes

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"go.uber.org/zap"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/irx"
)

// Flatten rewrites eligible function bodies into dispatcher form: every
// block stores its successor's state number into a stack slot and jumps back
// to a central switch that routes to the next block.  Cross-block SSA values
// are demoted to stack slots first so the rewiring cannot break dominance.
type Flatten struct{}

// NewFlatten returns the control flow flattening pass.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Name implements Pass.
func (*Flatten) Name() string { return "cff" }

// Salt implements Pass.
func (*Flatten) Salt() uint32 { return SaltFlatten }

// Run implements Pass.
func (p *Flatten) Run(m *ir.Module, st *State) error {
	for _, f := range m.Funcs {
		if !flattenable(f) {
			continue
		}
		p.flatten(f, st)
		st.Counters[CounterFlattened]++
		st.Log.Debug("flattened function", zap.String("func", f.Name()))
	}
	return nil
}

// flattenable reports whether f can be rewritten into dispatcher form.
// Functions with fewer than three blocks gain nothing from flattening, and
// exception-flavored terminators carry edge semantics the dispatcher cannot
// reproduce.
func flattenable(f *ir.Func) bool {
	if irx.IsDeclaration(f) || len(f.Blocks) < 3 {
		return false
	}
	if _, ok := irx.Entry(f).Term.(*ir.TermRet); ok {
		return false
	}
	routed := false
	for _, b := range f.Blocks {
		switch b.Term.(type) {
		case *ir.TermRet, *ir.TermBr, *ir.TermCondBr:
			routed = true
		case *ir.TermSwitch, *ir.TermUnreachable:
		default:
			return false
		}
	}
	// Without at least one routed terminator the dispatcher would be
	// unreachable.
	return routed
}

func (p *Flatten) flatten(f *ir.Func, st *State) {
	irx.DemoteFunc(f)

	entry := irx.Entry(f)
	originals := make([]*ir.Block, len(f.Blocks))
	copy(originals, f.Blocks)
	others := originals[1:]

	stateSlot := ir.NewAlloca(types.I32)
	stateSlot.SetName(irx.UniqueLocal(f, "cff_state"))
	prologue := []ir.Instruction{stateSlot}

	retType := f.Sig.RetType
	var retSlot *ir.InstAlloca
	if !types.IsVoid(retType) {
		retSlot = ir.NewAlloca(retType)
		retSlot.SetName(irx.UniqueLocal(f, "cff.ret"))
		prologue = append(prologue, retSlot)
	}
	irx.InsertInsts(entry, 0, prologue...)

	// State numbering: 0 exits through the return block, the entry's
	// successors start at 1 in block order.
	state := make(map[*ir.Block]int64, len(originals))
	state[entry] = 1
	for i, b := range others {
		state[b] = int64(i + 1)
	}

	dispatch := irx.NewBlockAfter(f, entry, irx.UniqueLocal(f, "cff.dispatch"))
	exit := irx.NewBlockAfter(f, dispatch, irx.UniqueLocal(f, "cff.exit"))

	if retSlot != nil {
		rv := ir.NewLoad(retType, retSlot)
		irx.AppendInsts(exit, rv)
		exit.Term = ir.NewRet(rv)
	} else {
		exit.Term = ir.NewRet(nil)
	}

	for _, b := range originals {
		p.routeTerminator(b, dispatch, stateSlot, retSlot, state)
	}

	cur := ir.NewLoad(types.I32, stateSlot)
	irx.AppendInsts(dispatch, cur)
	cases := make([]*ir.Case, 0, len(others))
	for _, b := range others {
		cases = append(cases, ir.NewCase(constant.NewInt(types.I32, state[b]), b))
	}
	dispatch.Term = ir.NewSwitch(cur, exit, cases...)

	// Reassemble the block list with the dispatcher machinery up front and
	// the original blocks shuffled behind it.
	shuffled := make([]*ir.Block, len(others))
	copy(shuffled, others)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := int(st.Rand.Intn(uint32(i + 1)))
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	f.Blocks = append([]*ir.Block{entry, dispatch, exit}, shuffled...)
}

// routeTerminator rewrites b's terminator into state stores plus a jump to
// the dispatcher.  Switch and unreachable terminators are left in place;
// their targets remain valid blocks of the flattened function.
func (p *Flatten) routeTerminator(b, dispatch *ir.Block, stateSlot, retSlot *ir.InstAlloca, state map[*ir.Block]int64) {
	switch t := b.Term.(type) {
	case *ir.TermRet:
		if t.X != nil {
			irx.AppendInsts(b, ir.NewStore(t.X, retSlot))
		}
		irx.AppendInsts(b, ir.NewStore(constant.NewInt(types.I32, 0), stateSlot))
		b.Term = ir.NewBr(dispatch)
	case *ir.TermBr:
		target := t.Target.(*ir.Block)
		irx.AppendInsts(b, ir.NewStore(constant.NewInt(types.I32, state[target]), stateSlot))
		b.Term = ir.NewBr(dispatch)
	case *ir.TermCondBr:
		tt := t.TargetTrue.(*ir.Block)
		tf := t.TargetFalse.(*ir.Block)
		sel := ir.NewSelect(t.Cond,
			constant.NewInt(types.I32, state[tt]),
			constant.NewInt(types.I32, state[tf]))
		irx.AppendInsts(b, sel, ir.NewStore(sel, stateSlot))
		b.Term = ir.NewBr(dispatch)
	}
}
