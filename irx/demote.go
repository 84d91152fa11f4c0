package irx

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// DemoteFunc rewrites f so that no SSA value defined outside the entry block
// is referenced outside its defining block.  PHI nodes become loads from
// entry-block stack slots that every predecessor stores into, and any
// remaining cross-block value defined outside the entry is spilled to its own
// slot after definition and reloaded in front of each remote use; values
// defined in the entry block keep their cross-block uses.  The rewrite trades registers for memory traffic, which is
// exactly what CFG-restructuring passes need: once every cross-block data
// flow goes through a stack slot, blocks can be rewired freely without
// breaking dominance.
func DemoteFunc(f *ir.Func) {
	if IsDeclaration(f) || len(f.Blocks) < 2 {
		return
	}
	demotePhis(f)
	demoteRegs(f)
}

// demotePhis replaces every PHI node with a slot load at the same position.
// Each incoming value is stored into the slot at the end of its predecessor
// block, so the load observes whichever edge actually executed.  Incoming
// values that are themselves PHI nodes are patched up as those are demoted
// in turn.
func demotePhis(f *ir.Func) {
	entry := Entry(f)
	var slots []ir.Instruction

	for _, b := range f.Blocks {
		for i := 0; i < len(b.Insts); i++ {
			phi, ok := b.Insts[i].(*ir.InstPhi)
			if !ok {
				// PHI nodes form a prefix of the block.
				break
			}

			slot := ir.NewAlloca(phi.Typ)
			slot.SetName(UniqueLocal(f, "phi.slot"))
			slots = append(slots, slot)

			load := ir.NewLoad(phi.Typ, slot)
			b.Insts[i] = load

			for _, inc := range phi.Incs {
				pred := inc.Pred.(*ir.Block)
				AppendInsts(pred, ir.NewStore(inc.X, slot))
			}

			ReplaceUses(f, phi, load)
		}
	}

	if len(slots) > 0 {
		InsertInsts(entry, 0, slots...)
	}
}

// demoteRegs spills every non-entry value with a use outside its defining
// block.  Values defined in the entry block are left alone: the entry
// dominates every block a restructuring pass can produce.
func demoteRegs(f *ir.Func) {
	entry := Entry(f)
	var slots []ir.Instruction

	for _, b := range f.Blocks[1:] {
		for i := 0; i < len(b.Insts); i++ {
			inst := b.Insts[i]
			def, ok := inst.(value.Value)
			if !ok || types.IsVoid(def.Type()) {
				continue
			}

			if !usedOutside(f, b, def) {
				continue
			}

			slot := ir.NewAlloca(def.Type())
			slot.SetName(UniqueLocal(f, "reg.slot"))
			slots = append(slots, slot)

			InsertInsts(b, i+1, ir.NewStore(def, slot))
			i++

			reloadUses(f, b, def, slot)
		}
	}

	if len(slots) > 0 {
		InsertInsts(entry, 0, slots...)
	}
}

// usedOutside reports whether def is referenced from any block other than
// its defining block home.
func usedOutside(f *ir.Func, home *ir.Block, def value.Value) bool {
	for _, u := range FuncUses(f, def) {
		if u.Block != home {
			return true
		}
	}
	return false
}

// reloadUses rewrites every use of def outside home to read from slot
// instead, inserting a fresh load in front of each user.  Uses inside home
// keep the register value.
func reloadUses(f *ir.Func, home *ir.Block, def value.Value, slot *ir.InstAlloca) {
	elem := def.Type()

	for _, b := range f.Blocks {
		if b == home {
			continue
		}

		// Walk backwards so inserted loads do not shift unvisited indices.
		for i := len(b.Insts) - 1; i >= 0; i-- {
			inst := b.Insts[i]

			if phi, ok := inst.(*ir.InstPhi); ok {
				// A PHI use is really a use at the end of the incoming edge;
				// the reload belongs in the predecessor.
				for _, inc := range phi.Incs {
					if inc.X == def {
						pred := inc.Pred.(*ir.Block)
						load := ir.NewLoad(elem, slot)
						AppendInsts(pred, load)
						inc.X = load
					}
				}
				continue
			}

			var pending []*value.Value
			for _, slotRef := range Operands(inst) {
				if *slotRef == def {
					pending = append(pending, slotRef)
				}
			}
			if len(pending) > 0 {
				load := ir.NewLoad(elem, slot)
				InsertInsts(b, i, load)
				for _, slotRef := range pending {
					*slotRef = load
				}
			}
		}

		if b.Term != nil {
			var pending []*value.Value
			for _, slotRef := range TermOperands(b.Term) {
				if *slotRef == def {
					pending = append(pending, slotRef)
				}
			}
			if len(pending) > 0 {
				load := ir.NewLoad(elem, slot)
				AppendInsts(b, load)
				for _, slotRef := range pending {
					*slotRef = load
				}
			}
		}
	}
}
