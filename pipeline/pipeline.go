// Package pipeline maps preset names to pass sequences and drives them over
// a module: each pass application draws its own PRNG stream, is followed by
// a structural verification of the module, and folds its counters into the
// run reporter.
package pipeline

import (
	"fmt"
	"os"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"go.uber.org/zap"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/config"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/irx"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/passes"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/report"
)

// Preset names accepted by Sequence.
const (
	PresetLight      = "light"
	PresetBalanced   = "balanced"
	PresetAggressive = "aggressive"
	PresetCustom     = "custom"
)

// Sequence resolves a preset name to its ordered pass list.  String
// encryption runs first so it sees the still-clean globals; flattening runs
// last so it rewrites the control flow the earlier passes produced.  The
// custom preset carries no implied sequence; use FromNames for it.
func Sequence(preset string) ([]passes.Pass, error) {
	switch preset {
	case PresetLight:
		return FromNames("string-obf")
	case PresetBalanced:
		return FromNames("string-obf", "bogus-insert", "fake-loop")
	case PresetAggressive:
		return FromNames("string-obf", "bogus-insert", "fake-loop", "cff")
	case PresetCustom:
		return nil, fmt.Errorf("preset %q requires an explicit pass list", preset)
	}
	return nil, fmt.Errorf("unknown preset %q", preset)
}

// FromNames resolves an explicit pass name list.
func FromNames(names ...string) ([]passes.Pass, error) {
	seq := make([]passes.Pass, 0, len(names))
	for _, name := range names {
		p, ok := passes.ByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown pass %q", name)
		}
		seq = append(seq, p)
	}
	return seq, nil
}

// Pipeline applies a pass sequence to modules under one configuration.
type Pipeline struct {
	cfg      config.Config
	log      *zap.Logger
	reporter *report.Reporter
	seq      []passes.Pass

	// OnPassDone, when set, is invoked after each successful pass
	// application with the pass name and the number of changes it recorded.
	OnPassDone func(name string, changed uint64)
}

// New builds a pipeline over the given pass sequence.
func New(seq []passes.Pass, cfg config.Config, log *zap.Logger, reporter *report.Reporter) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		log:      log,
		reporter: reporter,
		seq:      seq,
	}
}

// Reporter returns the run reporter holding the accumulated counters.
func (p *Pipeline) Reporter() *report.Reporter {
	return p.reporter
}

// Run applies the configured sequence to m in place.  The whole sequence
// repeats Cycles times, and string-obf repeats StringIntensity times within
// each sequence.  After every pass application the module is verified; a
// violation aborts the run with an error naming the pass, leaving the
// counters at their pre-abort values.
func (p *Pipeline) Run(m *ir.Module) error {
	st := passes.NewState(p.cfg, p.log)
	apps := make(map[string]int, len(p.seq))

	for cycle := 0; cycle < p.cfg.Cycles; cycle++ {
		for _, ps := range p.seq {
			reps := 1
			if ps.Name() == "string-obf" {
				reps = p.cfg.StringIntensity
			}
			for r := 0; r < reps; r++ {
				if err := p.apply(m, ps, st, apps); err != nil {
					return err
				}
			}
		}
	}

	// Parsed unnamed locals keep their numeric IDs while the passes insert new
	// unnamed values ahead of them; clear the IDs so printing renumbers them.
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			locals := []interface{}{b, b.Term}
			for _, inst := range b.Insts {
				locals = append(locals, inst)
			}
			for _, v := range locals {
				if l, ok := v.(interface {
					IsUnnamed() bool
					SetID(int64)
				}); ok && l.IsUnnamed() {
					l.SetID(0)
				}
			}
		}
	}

	if err := irx.RoundTrip(m); err != nil {
		return fmt.Errorf("pipeline output: %w", err)
	}
	return nil
}

// apply runs one application of ps over m: fresh stream, fresh counter map,
// verification, counter merge, report re-emit.
func (p *Pipeline) apply(m *ir.Module, ps passes.Pass, st *passes.State, apps map[string]int) error {
	n := apps[ps.Name()]
	apps[ps.Name()] = n + 1

	st.Rand = passes.StreamFor(p.cfg, ps, n)
	st.Counters = make(report.Counters)

	p.log.Debug("running pass", zap.String("pass", ps.Name()), zap.Int("application", n))
	if err := ps.Run(m, st); err != nil {
		return fmt.Errorf("pass %s: %w", ps.Name(), err)
	}
	if err := irx.VerifyModule(m); err != nil {
		return fmt.Errorf("pass %s violated module invariants: %w", ps.Name(), err)
	}

	changed := uint64(0)
	for _, v := range st.Counters {
		changed += v
	}
	p.reporter.Merge(st.Counters)
	if err := p.reporter.Emit(); err != nil {
		return fmt.Errorf("pass %s: emitting report: %w", ps.Name(), err)
	}

	if p.OnPassDone != nil {
		p.OnPassDone(ps.Name(), changed)
	}
	return nil
}

// RunFile parses the module at inputPath, runs the sequence over it, and
// writes the transformed assembly to outputPath.  A failing run leaves
// outputPath untouched.
func (p *Pipeline) RunFile(inputPath, outputPath string) error {
	m, err := asm.ParseFile(inputPath)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", inputPath, err)
	}
	if err := p.Run(m); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(m.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	return nil
}
