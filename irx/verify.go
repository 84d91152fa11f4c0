package irx

import (
	"fmt"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// VerifyModule checks the structural invariants every pass must preserve:
// each block carries exactly one terminator, branch targets and PHI
// predecessor labels belong to the function, PHI incoming lists match the
// predecessor set, every block is reachable from the entry, and each use of
// an instruction value is dominated by its definition.  The first violation
// is returned as an error naming the function.
func VerifyModule(m *ir.Module) error {
	for _, f := range m.Funcs {
		if err := VerifyFunc(f); err != nil {
			return err
		}
	}
	return nil
}

// VerifyFunc checks the invariants of a single function definition.
// Declarations always verify.
func VerifyFunc(f *ir.Func) error {
	if IsDeclaration(f) {
		return nil
	}

	blockIdx := make(map[*ir.Block]int, len(f.Blocks))
	for i, b := range f.Blocks {
		if b.Term == nil {
			return verifyErr(f, "block %q has no terminator", b.Name())
		}
		blockIdx[b] = i
	}

	// Successor targets must be blocks of this function.
	for _, b := range f.Blocks {
		for _, succ := range b.Term.Succs() {
			if _, ok := blockIdx[succ]; !ok {
				return verifyErr(f, "block %q branches to a detached block", b.Name())
			}
		}
	}

	preds := make(map[*ir.Block][]*ir.Block)
	for _, b := range f.Blocks {
		for _, succ := range b.Term.Succs() {
			preds[succ] = appendUniqueBlock(preds[succ], b)
		}
	}

	if err := checkPhis(f, preds); err != nil {
		return err
	}
	if err := checkReachable(f, blockIdx); err != nil {
		return err
	}
	return checkDominance(f, blockIdx, preds)
}

// RoundTrip prints m and parses the text back, catching syntax- and
// type-level breakage the structural checks cannot see.
func RoundTrip(m *ir.Module) error {
	if _, err := asm.ParseString("module.ll", m.String()); err != nil {
		return fmt.Errorf("module failed print/parse round trip: %w", err)
	}
	return nil
}

// checkPhis verifies PHI placement and that incoming lists mirror the
// predecessor set exactly.
func checkPhis(f *ir.Func, preds map[*ir.Block][]*ir.Block) error {
	for _, b := range f.Blocks {
		seenReal := false
		for _, inst := range b.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				seenReal = true
				continue
			}
			if seenReal {
				return verifyErr(f, "PHI node after non-PHI instruction in block %q", b.Name())
			}

			bpreds := preds[b]
			if len(phi.Incs) != len(bpreds) {
				return verifyErr(f, "PHI node in block %q has %d incoming values for %d predecessors",
					b.Name(), len(phi.Incs), len(bpreds))
			}
			for _, inc := range phi.Incs {
				pred, ok := inc.Pred.(*ir.Block)
				if !ok || !containsBlock(bpreds, pred) {
					return verifyErr(f, "PHI node in block %q names a non-predecessor", b.Name())
				}
			}
		}
	}
	return nil
}

// checkReachable verifies that no block is orphaned from the entry.
func checkReachable(f *ir.Func, blockIdx map[*ir.Block]int) error {
	reached := make(map[*ir.Block]bool, len(f.Blocks))
	work := []*ir.Block{Entry(f)}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		if reached[b] {
			continue
		}
		reached[b] = true
		work = append(work, b.Term.Succs()...)
	}

	for _, b := range f.Blocks {
		if !reached[b] {
			return verifyErr(f, "block %q is unreachable from the entry", b.Name())
		}
	}
	return nil
}

// checkDominance verifies that instruction values are defined before every
// use: same-block uses must follow the definition, cross-block uses must be
// dominated by the defining block, and PHI incoming values must dominate
// their incoming edge.
func checkDominance(f *ir.Func, blockIdx map[*ir.Block]int, preds map[*ir.Block][]*ir.Block) error {
	dom := dominators(f, preds)

	type defSite struct {
		block *ir.Block
		index int
	}
	defs := make(map[value.Value]defSite)
	for _, b := range f.Blocks {
		for i, inst := range b.Insts {
			if v, ok := inst.(value.Value); ok {
				defs[v] = defSite{block: b, index: i}
			}
		}
	}

	dominates := func(a, b *ir.Block) bool {
		return dom[blockIdx[b]][blockIdx[a]]
	}

	checkOp := func(user *ir.Block, userIdx int, op value.Value) error {
		site, ok := defs[op]
		if !ok {
			// Arguments, globals, constants, and other non-instruction
			// values are always available.
			return nil
		}
		if site.block == user {
			if userIdx >= 0 && site.index >= userIdx {
				return verifyErr(f, "value used before definition in block %q", user.Name())
			}
			return nil
		}
		if !dominates(site.block, user) {
			return verifyErr(f, "use in block %q is not dominated by its definition in block %q",
				user.Name(), site.block.Name())
		}
		return nil
	}

	for _, b := range f.Blocks {
		for i, inst := range b.Insts {
			if phi, ok := inst.(*ir.InstPhi); ok {
				for _, inc := range phi.Incs {
					pred := inc.Pred.(*ir.Block)
					if err := checkOp(pred, -1, inc.X); err != nil {
						return err
					}
				}
				continue
			}
			for _, slot := range Operands(inst) {
				if err := checkOp(b, i, *slot); err != nil {
					return err
				}
			}
		}
		for _, slot := range TermOperands(b.Term) {
			if err := checkOp(b, -1, *slot); err != nil {
				return err
			}
		}
	}
	return nil
}

// dominators computes the classic iterative dominator sets: dom[i][j] is
// true when block j dominates block i.
func dominators(f *ir.Func, preds map[*ir.Block][]*ir.Block) []map[int]bool {
	n := len(f.Blocks)
	blockIdx := make(map[*ir.Block]int, n)
	for i, b := range f.Blocks {
		blockIdx[b] = i
	}

	dom := make([]map[int]bool, n)
	dom[0] = map[int]bool{0: true}
	for i := 1; i < n; i++ {
		all := make(map[int]bool, n)
		for j := 0; j < n; j++ {
			all[j] = true
		}
		dom[i] = all
	}

	for changed := true; changed; {
		changed = false
		for i := 1; i < n; i++ {
			b := f.Blocks[i]
			next := make(map[int]bool)
			first := true
			for _, p := range preds[b] {
				pd := dom[blockIdx[p]]
				if first {
					for j := range pd {
						next[j] = true
					}
					first = false
					continue
				}
				for j := range next {
					if !pd[j] {
						delete(next, j)
					}
				}
			}
			next[i] = true
			if !sameSet(next, dom[i]) {
				dom[i] = next
				changed = true
			}
		}
	}
	return dom
}

func sameSet(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func appendUniqueBlock(list []*ir.Block, b *ir.Block) []*ir.Block {
	if containsBlock(list, b) {
		return list
	}
	return append(list, b)
}

func containsBlock(list []*ir.Block, b *ir.Block) bool {
	for _, cand := range list {
		if cand == b {
			return true
		}
	}
	return false
}

func verifyErr(f *ir.Func, format string, args ...interface{}) error {
	return fmt.Errorf("function %q: %s", f.Name(), fmt.Sprintf(format, args...))
}
