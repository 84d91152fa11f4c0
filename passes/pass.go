// Package passes implements the IR transformations of the obfuscator:
// string encryption, bogus control flow insertion, fake loop insertion, and
// control flow flattening.  Each pass mutates the module in place and
// records what it did in the run counters.
package passes

import (
	"github.com/llir/llvm/ir"
	"go.uber.org/zap"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/config"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/report"
)

// Names of the runtime support routines the passes call into.  The matching
// definitions live in the runtime support library and are linked into the
// obfuscated program afterwards.
const (
	DecryptFuncName = "__obf_decrypt"
	OpaqueFuncName  = "__obf_opaque"
)

// Counter keys emitted by the passes.
const (
	CounterStringsEncrypted = "num_strings_encrypted"
	CounterStringBytes      = "total_string_bytes"
	CounterBogusBlocks      = "bogus_blocks_inserted"
	CounterFakeLoops        = "fake_loops_added"
	CounterFlattened        = "functions_flattened"
)

// Per-pass stream salts.  Each pass draws from its own PRNG stream so that
// reordering or repeating passes never shifts another pass's randomness.
const (
	SaltStringObf = 0x12345678
	SaltBogus     = 0x87654321
	SaltFakeLoop  = 0xFEEDBEEF
	SaltFlatten   = 0x00C0FFEE
)

// Suffix of globals produced by string encryption.  Globals already carrying
// the suffix are never encrypted again, so repeated applications converge.
const encSuffix = ".enc"

// Pass is one module-level transformation.
type Pass interface {
	// Name returns the stable pass name used in reports and pass lists.
	Name() string

	// Salt returns the PRNG stream salt of this pass.
	Salt() uint32

	// Run applies the transformation to m.
	Run(m *ir.Module, st *State) error
}

// State is the per-run context threaded through every pass: the effective
// configuration, the run logger, the pass-local PRNG stream, and the shared
// counter map.
type State struct {
	Cfg      config.Config
	Log      *zap.Logger
	Rand     *config.Stream
	Counters report.Counters
}

// NewState builds a run state with an empty counter map.  The Rand stream is
// installed by the driver in front of each pass application.
func NewState(cfg config.Config, log *zap.Logger) *State {
	return &State{
		Cfg:      cfg,
		Log:      log,
		Counters: make(report.Counters),
	}
}

// StreamFor derives the PRNG stream for the n'th application of p within a
// run.  The first application uses the plain seed/salt pair; repeats fold
// the application index into the salt so every cycle draws fresh values.
func StreamFor(cfg config.Config, p Pass, n int) *config.Stream {
	return config.NewStream(cfg.Seed, p.Salt()+uint32(n)*0x9E3779B9)
}

// All returns the default pass sequence in application order.
func All() []Pass {
	return []Pass{
		NewStringObf(),
		NewBogusInsert(),
		NewFakeLoop(),
		NewFlatten(),
	}
}

// ByName resolves a pass by its stable name.
func ByName(name string) (Pass, bool) {
	for _, p := range All() {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
