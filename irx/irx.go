// Package irx is a narrow access layer over the llir/llvm IR model.  It
// supplies the pieces the transformation passes need that the library does
// not provide on its own: use scanning and operand replacement (llir keeps
// no use-lists), basic-block surgery, reg2mem-style demotion, and a module
// verifier.  All mutation happens in place on the owning module.
package irx

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// IsDeclaration reports whether f has no body.
func IsDeclaration(f *ir.Func) bool {
	return len(f.Blocks) == 0
}

// Entry returns the entry block of f.  The function must be a definition.
func Entry(f *ir.Func) *ir.Block {
	return f.Blocks[0]
}

// FirstRealIndex returns the index of the first instruction in b that is
// not a PHI node and not a debug or lifetime intrinsic call, or -1 when the
// block holds no such instruction.
func FirstRealIndex(b *ir.Block) int {
	for i, inst := range b.Insts {
		if _, ok := inst.(*ir.InstPhi); ok {
			continue
		}
		if call, ok := inst.(*ir.InstCall); ok {
			if callee, ok := call.Callee.(*ir.Func); ok {
				name := callee.Name()
				if strings.HasPrefix(name, "llvm.dbg.") || strings.HasPrefix(name, "llvm.lifetime.") {
					continue
				}
			}
		}
		return i
	}
	return -1
}

// FindFunc returns the function named name, or nil.
func FindFunc(m *ir.Module, name string) *ir.Func {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// EnsureDecl returns the function named name, creating an external
// declaration with the given signature if the module does not have one yet.
func EnsureDecl(m *ir.Module, name string, ret types.Type, params ...*ir.Param) *ir.Func {
	if f := FindFunc(m, name); f != nil {
		return f
	}
	return m.NewFunc(name, ret, params...)
}

// Preds returns the predecessor blocks of b within f, in block order with
// duplicates removed.
func Preds(f *ir.Func, b *ir.Block) []*ir.Block {
	var preds []*ir.Block
	for _, p := range f.Blocks {
		if p.Term == nil {
			continue
		}
		for _, succ := range p.Term.Succs() {
			if succ == b {
				preds = append(preds, p)
				break
			}
		}
	}
	return preds
}

// UniqueLocal returns a local identifier for f based on base that collides
// with no existing block, parameter, or named instruction.  Block labels and
// value names share one namespace in LLVM, so both are checked.
func UniqueLocal(f *ir.Func, base string) string {
	taken := takenLocalNames(f)
	if _, ok := taken[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%d", base, i)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}

func takenLocalNames(f *ir.Func) map[string]struct{} {
	taken := make(map[string]struct{})
	for _, p := range f.Params {
		if p.Name() != "" {
			taken[p.Name()] = struct{}{}
		}
	}
	for _, b := range f.Blocks {
		if b.Name() != "" {
			taken[b.Name()] = struct{}{}
		}
		for _, inst := range b.Insts {
			if named, ok := inst.(interface{ Name() string }); ok && named.Name() != "" {
				taken[named.Name()] = struct{}{}
			}
		}
	}
	return taken
}
