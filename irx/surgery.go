package irx

import (
	"github.com/llir/llvm/ir"
)

// InsertInsts splices insts into b.Insts at index idx.  An idx equal to
// len(b.Insts) appends.
func InsertInsts(b *ir.Block, idx int, insts ...ir.Instruction) {
	tail := make([]ir.Instruction, len(b.Insts[idx:]))
	copy(tail, b.Insts[idx:])
	b.Insts = append(b.Insts[:idx], insts...)
	b.Insts = append(b.Insts, tail...)
}

// AppendInsts adds insts at the end of b's instruction list, in front of
// the terminator.
func AppendInsts(b *ir.Block, insts ...ir.Instruction) {
	b.Insts = append(b.Insts, insts...)
}

// RemoveInst deletes the instruction at index idx from b.
func RemoveInst(b *ir.Block, idx int) {
	b.Insts = append(b.Insts[:idx], b.Insts[idx+1:]...)
}

// NewBlockAfter creates a fresh block named name and places it in f
// immediately after the block after.
func NewBlockAfter(f *ir.Func, after *ir.Block, name string) *ir.Block {
	b := ir.NewBlock(name)
	b.Parent = f
	for i, cand := range f.Blocks {
		if cand == after {
			rest := make([]*ir.Block, len(f.Blocks[i+1:]))
			copy(rest, f.Blocks[i+1:])
			f.Blocks = append(f.Blocks[:i+1], b)
			f.Blocks = append(f.Blocks, rest...)
			return b
		}
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewBlockBefore creates a fresh block named name and places it in f
// immediately before the block before.
func NewBlockBefore(f *ir.Func, before *ir.Block, name string) *ir.Block {
	b := ir.NewBlock(name)
	b.Parent = f
	for i, cand := range f.Blocks {
		if cand == before {
			rest := make([]*ir.Block, len(f.Blocks[i:]))
			copy(rest, f.Blocks[i:])
			f.Blocks = append(f.Blocks[:i], b)
			f.Blocks = append(f.Blocks, rest...)
			return b
		}
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// SplitAfter splits b after the instruction at index idx.  Instructions
// following idx, together with the terminator, move into a fresh tail block
// named name which is placed immediately after b.  PHI nodes in successor
// blocks are retargeted to the tail, which now owns the branch.  The
// truncated b is left without a terminator; the caller must install one.
func SplitAfter(f *ir.Func, b *ir.Block, idx int, name string) *ir.Block {
	tail := NewBlockAfter(f, b, name)
	tail.Insts = append(tail.Insts, b.Insts[idx+1:]...)
	tail.Term = b.Term
	b.Insts = b.Insts[:idx+1]
	b.Term = nil
	retargetPhiPreds(tail, b)
	return tail
}

// SplitAt splits b before the instruction at index idx.  The instruction at
// idx, everything after it, and the terminator move into the fresh tail
// block; successor PHI nodes are retargeted accordingly.  The truncated b
// is left without a terminator.
func SplitAt(f *ir.Func, b *ir.Block, idx int, name string) *ir.Block {
	tail := NewBlockAfter(f, b, name)
	tail.Insts = append(tail.Insts, b.Insts[idx:]...)
	tail.Term = b.Term
	b.Insts = b.Insts[:idx]
	b.Term = nil
	retargetPhiPreds(tail, b)
	return tail
}

// retargetPhiPreds rewrites PHI incoming labels in the successors of tail
// that still name oldPred, which no longer owns the terminator.
func retargetPhiPreds(tail *ir.Block, oldPred *ir.Block) {
	if tail.Term == nil {
		return
	}
	for _, succ := range tail.Term.Succs() {
		for _, inst := range succ.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				break
			}
			for _, inc := range phi.Incs {
				if inc.Pred == oldPred {
					inc.Pred = tail
				}
			}
		}
	}
}

// DetachBlock removes b from f's block list without touching its contents.
// The caller retains the pointer and is responsible for reattaching it.
func DetachBlock(f *ir.Func, b *ir.Block) {
	for i, cand := range f.Blocks {
		if cand == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

// AttachBlock appends a previously detached block to the end of f.
func AttachBlock(f *ir.Func, b *ir.Block) {
	b.Parent = f
	f.Blocks = append(f.Blocks, b)
}
