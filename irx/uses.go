package irx

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Operands returns pointers to the value operand slots of inst so that
// callers can inspect or rewrite them in place.  Block references (branch
// targets, PHI predecessor labels) are not operands in this sense and are
// never included.  Instruction kinds outside the builder surface of this
// layer yield nil.
func Operands(inst ir.Instruction) []*value.Value {
	switch v := inst.(type) {
	case *ir.InstAlloca:
		if v.NElems != nil {
			return []*value.Value{&v.NElems}
		}
		return nil
	case *ir.InstLoad:
		return []*value.Value{&v.Src}
	case *ir.InstStore:
		return []*value.Value{&v.Src, &v.Dst}
	case *ir.InstAdd:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstSub:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstMul:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstUDiv:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstSDiv:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstURem:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstSRem:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstShl:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstLShr:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstAShr:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstAnd:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstOr:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstXor:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstICmp:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstFCmp:
		return []*value.Value{&v.X, &v.Y}
	case *ir.InstSelect:
		return []*value.Value{&v.Cond, &v.ValueTrue, &v.ValueFalse}
	case *ir.InstCall:
		ops := []*value.Value{&v.Callee}
		for i := range v.Args {
			ops = append(ops, &v.Args[i])
		}
		return ops
	case *ir.InstGetElementPtr:
		ops := []*value.Value{&v.Src}
		for i := range v.Indices {
			ops = append(ops, &v.Indices[i])
		}
		return ops
	case *ir.InstPhi:
		var ops []*value.Value
		for _, inc := range v.Incs {
			ops = append(ops, &inc.X)
		}
		return ops
	case *ir.InstTrunc:
		return []*value.Value{&v.From}
	case *ir.InstZExt:
		return []*value.Value{&v.From}
	case *ir.InstSExt:
		return []*value.Value{&v.From}
	case *ir.InstPtrToInt:
		return []*value.Value{&v.From}
	case *ir.InstIntToPtr:
		return []*value.Value{&v.From}
	case *ir.InstBitCast:
		return []*value.Value{&v.From}
	case *ir.InstFNeg:
		return []*value.Value{&v.X}
	case *ir.InstExtractValue:
		return []*value.Value{&v.X}
	case *ir.InstInsertValue:
		return []*value.Value{&v.X, &v.Elem}
	}
	return nil
}

// TermOperands returns pointers to the value operand slots of term,
// excluding branch targets.
func TermOperands(term ir.Terminator) []*value.Value {
	switch v := term.(type) {
	case *ir.TermRet:
		if v.X != nil {
			return []*value.Value{&v.X}
		}
		return nil
	case *ir.TermCondBr:
		return []*value.Value{&v.Cond}
	case *ir.TermSwitch:
		return []*value.Value{&v.X}
	}
	return nil
}

// Use is one reference to a value from inside a function body: either an
// instruction operand or a terminator operand of the holding block.
type Use struct {
	// Block holding the user.
	Block *ir.Block

	// Index of the user within Block.Insts, or -1 when the user is the
	// block terminator.
	Index int

	// User is the instruction holding the operand; nil when the user is the
	// terminator.
	User ir.Instruction

	// Slot is the operand slot referencing the value.
	Slot *value.Value
}

// IsTerm reports whether the use sits in a block terminator.
func (u Use) IsTerm() bool {
	return u.Index < 0
}

// FuncUses collects every reference to old inside the body of f, in block
// and instruction order.
func FuncUses(f *ir.Func, old value.Value) []Use {
	var uses []Use
	for _, b := range f.Blocks {
		for i, inst := range b.Insts {
			for _, slot := range Operands(inst) {
				if *slot == old {
					uses = append(uses, Use{Block: b, Index: i, User: inst, Slot: slot})
				}
			}
		}
		if b.Term != nil {
			for _, slot := range TermOperands(b.Term) {
				if *slot == old {
					uses = append(uses, Use{Block: b, Index: -1, Slot: slot})
				}
			}
		}
	}
	return uses
}

// ModuleUses collects every function-body reference to old across m.
func ModuleUses(m *ir.Module, old value.Value) []Use {
	var uses []Use
	for _, f := range m.Funcs {
		uses = append(uses, FuncUses(f, old)...)
	}
	return uses
}

// ReplaceUses rewrites every reference to old inside f with new.  It
// returns the number of slots rewritten.
func ReplaceUses(f *ir.Func, old, new value.Value) int {
	n := 0
	for _, u := range FuncUses(f, old) {
		*u.Slot = new
		n++
	}
	return n
}
