package passes

import (
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"go.uber.org/zap"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/irx"
)

// StringObf encrypts string literal globals.  Each eligible global is
// replaced by a constant twin holding the XOR-encrypted bytes, and every use
// site is rewritten to read the result of a runtime decryptor call instead.
// The decryptor returns a fresh heap copy, so the plaintext never appears in
// the program image.
type StringObf struct{}

// NewStringObf returns the string encryption pass.
func NewStringObf() *StringObf {
	return &StringObf{}
}

// Name implements Pass.
func (*StringObf) Name() string { return "string-obf" }

// Salt implements Pass.
func (*StringObf) Salt() uint32 { return SaltStringObf }

// Run implements Pass.
func (p *StringObf) Run(m *ir.Module, st *State) error {
	var targets []*ir.Global
	for _, g := range m.Globals {
		if eligibleString(g) {
			targets = append(targets, g)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	decrypt := ensureDecrypt(m)
	for _, g := range targets {
		p.encryptGlobal(m, g, decrypt, st)
	}
	return nil
}

// eligibleString reports whether g is a private constant null-terminated
// string literal that has not already been encrypted.  Non-private and
// mutable globals may have outside observers and are left alone, as are
// single-byte arrays holding only the terminator.
func eligibleString(g *ir.Global) bool {
	if strings.HasSuffix(g.Name(), encSuffix) {
		return false
	}
	if !g.Immutable {
		return false
	}
	if g.Linkage != enum.LinkagePrivate && g.Linkage != enum.LinkageInternal {
		return false
	}
	arr, ok := g.Init.(*constant.CharArray)
	if !ok || len(arr.X) < 2 {
		return false
	}
	return arr.X[len(arr.X)-1] == 0
}

// encryptGlobal builds the encrypted twin of g, rewrites every use to
// decrypt-then-read the twin, and erases g once nothing references it.
func (p *StringObf) encryptGlobal(m *ir.Module, g *ir.Global, decrypt *ir.Func, st *State) {
	arr := g.Init.(*constant.CharArray)
	key := st.Rand.Next()
	kb := byte(key)

	cipher := make([]byte, len(arr.X))
	copy(cipher, arr.X)
	// The terminator stays null so the decrypted twin is a valid C string.
	for i := 0; i < len(cipher)-1; i++ {
		cipher[i] ^= kb
	}

	enc := m.NewGlobalDef(uniqueGlobalName(m, g.Name()+encSuffix), constant.NewCharArray(cipher))
	enc.Immutable = true
	enc.Linkage = enum.LinkagePrivate
	enc.UnnamedAddr = enum.UnnamedAddrUnnamedAddr

	arrTy := enc.Init.Type().(*types.ArrayType)
	zero := constant.NewInt(types.I64, 0)
	lenConst := constant.NewInt(types.I32, int64(len(cipher)-1))
	keyConst := constant.NewInt(types.I32, int64(int32(key)))

	uses := stringUses(m, g)
	rewritten := 0
	for i := len(uses) - 1; i >= 0; i-- {
		u := uses[i]
		if _, ok := u.User.(*ir.InstPhi); ok {
			// The insertion point of a PHI use sits in the predecessor, where
			// the edge may be critical.  Leaving the use on the plaintext
			// global is safe; the global then simply survives the pass.
			continue
		}

		gep := ir.NewGetElementPtr(arrTy, enc, zero, zero)
		gep.InBounds = true
		call := ir.NewCall(decrypt, gep, lenConst, keyConst)
		if u.IsTerm() {
			irx.AppendInsts(u.Block, gep, call)
		} else {
			irx.InsertInsts(u.Block, u.Index, gep, call)
		}
		*u.Slot = call
		rewritten++
	}

	if rewritten == len(uses) && !mentionedByGlobals(m, g) {
		removeGlobal(m, g)
	}

	st.Counters[CounterStringsEncrypted]++
	st.Counters[CounterStringBytes] += uint64(len(cipher) - 1)
	st.Log.Debug("encrypted string global",
		zap.String("global", g.Name()),
		zap.Int("bytes", len(cipher)-1),
		zap.Int("uses", rewritten))
}

// ensureDecrypt returns the declaration of the runtime decryptor, creating
// it on first use.
func ensureDecrypt(m *ir.Module) *ir.Func {
	i8ptr := types.NewPointer(types.I8)
	return irx.EnsureDecl(m, DecryptFuncName, i8ptr,
		ir.NewParam("str", i8ptr),
		ir.NewParam("len", types.I32),
		ir.NewParam("key", types.I32))
}

// stringUses collects every function-body reference to g, including
// references buried inside constant getelementptr expressions.
func stringUses(m *ir.Module, g *ir.Global) []irx.Use {
	var uses []irx.Use
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for i, inst := range b.Insts {
				for _, slot := range irx.Operands(inst) {
					if refersTo(*slot, g) {
						uses = append(uses, irx.Use{Block: b, Index: i, User: inst, Slot: slot})
					}
				}
			}
			if b.Term == nil {
				continue
			}
			for _, slot := range irx.TermOperands(b.Term) {
				if refersTo(*slot, g) {
					uses = append(uses, irx.Use{Block: b, Index: -1, Slot: slot})
				}
			}
		}
	}
	return uses
}

// refersTo reports whether v is g itself or a constant GEP into g.
func refersTo(v value.Value, g *ir.Global) bool {
	if v == g {
		return true
	}
	expr, ok := v.(*constant.ExprGetElementPtr)
	return ok && expr.Src == g
}

// mentionedByGlobals reports whether any other global initializer embeds a
// reference to g.
func mentionedByGlobals(m *ir.Module, g *ir.Global) bool {
	for _, other := range m.Globals {
		if other != g && other.Init != nil && constMentions(other.Init, g) {
			return true
		}
	}
	return false
}

// constMentions walks the aggregate and pointer-cast constants that can
// embed a global address.
func constMentions(c constant.Constant, g *ir.Global) bool {
	switch v := c.(type) {
	case *ir.Global:
		return v == g
	case *constant.Struct:
		for _, field := range v.Fields {
			if constMentions(field, g) {
				return true
			}
		}
	case *constant.Array:
		for _, elem := range v.Elems {
			if constMentions(elem, g) {
				return true
			}
		}
	case *constant.ExprGetElementPtr:
		return constMentions(v.Src, g)
	case *constant.ExprBitCast:
		return constMentions(v.From, g)
	case *constant.ExprPtrToInt:
		return constMentions(v.From, g)
	}
	return false
}

func removeGlobal(m *ir.Module, g *ir.Global) {
	for i, cand := range m.Globals {
		if cand == g {
			m.Globals = append(m.Globals[:i], m.Globals[i+1:]...)
			return
		}
	}
}

func uniqueGlobalName(m *ir.Module, base string) string {
	taken := make(map[string]struct{}, len(m.Globals))
	for _, g := range m.Globals {
		taken[g.Name()] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		name := base + "." + strconv.Itoa(i)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}
