// Command obfus drives the obfuscation toolkit: it parses LLVM assembly
// (or compiles a C source to assembly first), runs the configured pass
// pipeline over it, writes the transformed assembly, and optionally links
// a native executable against the runtime support library.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/DANGERDEMANDER/SIH-LLVM-2/config"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/passes"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/pipeline"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/report"
	"github.com/DANGERDEMANDER/SIH-LLVM-2/rtsupport"
)

func main() {
	app := &cli.App{
		Name:  "obfus",
		Usage: "LLVM IR obfuscation toolkit",
		Commands: []*cli.Command{
			obfuscateCommand(),
			passesCommand(),
			reportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		report.DisplayFailure(err)
		os.Exit(1)
	}
}

func obfuscateCommand() *cli.Command {
	return &cli.Command{
		Name:  "obfuscate",
		Usage: "run the pass pipeline over a module",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ir", Usage: "input LLVM assembly file (.ll)"},
			&cli.StringFlag{Name: "src", Usage: "input C source file; compiled to IR with clang first"},
			&cli.StringFlag{Name: "out", Usage: "output path for the transformed assembly"},
			&cli.StringFlag{Name: "preset", Value: pipeline.PresetBalanced, Usage: "pass preset: light, balanced, aggressive, custom"},
			&cli.StringFlag{Name: "passes", Usage: "comma-separated pass list for the custom preset"},
			&cli.StringFlag{Name: "profile", Usage: "optional TOML profile file"},
			&cli.UintFlag{Name: "seed", Usage: "base seed; overrides profile and environment"},
			&cli.BoolFlag{Name: "link", Usage: "link a native executable against the runtime support library"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: runObfuscate,
	}
}

func runObfuscate(c *cli.Context) error {
	log := report.NewLogger(c.Bool("debug"))
	defer log.Sync()

	cfg := config.Load(c.String("profile"), log)
	if c.IsSet("seed") {
		cfg.Seed = uint32(c.Uint("seed"))
		cfg.ResolveSeed(log)
	}

	input := c.String("ir")
	src := c.String("src")
	if input == "" && src == "" {
		return fmt.Errorf("one of --ir or --src is required")
	}
	if input != "" && src != "" {
		return fmt.Errorf("--ir and --src are mutually exclusive")
	}

	var clang string
	if src != "" || c.Bool("link") {
		var err error
		if clang, err = pipeline.FindClang(); err != nil {
			return err
		}
	}

	if src != "" {
		input = trimExt(src) + ".ll"
		if err := pipeline.CompileToIR(clang, src, input); err != nil {
			return err
		}
	}

	output := c.String("out")
	if output == "" {
		output = trimExt(input) + ".obf.ll"
	}

	preset := c.String("preset")
	seq, err := resolveSequence(preset, c.String("passes"))
	if err != nil {
		return err
	}

	reporter := report.NewReporter(cfg.ReportFile)
	pl := pipeline.New(seq, cfg, log, reporter)
	pl.OnPassDone = report.DisplayPassDone

	report.DisplayHeader(input, preset, cfg.Seed)
	if err := pl.RunFile(input, output); err != nil {
		return err
	}
	report.DisplayCounters(reporter.Snapshot())
	report.DisplaySuccess(output)

	if c.Bool("link") {
		runtimePath, err := rtsupport.WriteSource(filepath.Dir(output))
		if err != nil {
			return err
		}
		exe := trimExt(output)
		if err := pipeline.LinkNative(clang, output, runtimePath, exe); err != nil {
			return err
		}
		report.DisplaySuccess(exe)
	}
	return nil
}

func resolveSequence(preset, passList string) ([]passes.Pass, error) {
	if preset == pipeline.PresetCustom {
		if passList == "" {
			return nil, fmt.Errorf("the custom preset requires --passes")
		}
		return pipeline.FromNames(splitPassList(passList)...)
	}
	if passList != "" {
		return nil, fmt.Errorf("--passes is only valid with the custom preset")
	}
	return pipeline.Sequence(preset)
}

func splitPassList(list string) []string {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func passesCommand() *cli.Command {
	return &cli.Command{
		Name:  "passes",
		Usage: "list the registered passes",
		Action: func(c *cli.Context) error {
			for _, p := range passes.All() {
				fmt.Printf("%s\n", p.Name())
			}
			return nil
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "pretty-print a counter report file",
		ArgsUsage: "<report.json>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one report file argument")
			}
			data, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			counters, err := report.UnmarshalCounters(data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", c.Args().First(), err)
			}
			report.DisplayCounters(counters)
			return nil
		},
	}
}
