package report

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
)

// Display styles used by the CLI surface.
var (
	headerStyle  = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	successStyle = pterm.NewStyle(pterm.FgLightGreen)
	failStyle    = pterm.NewStyle(pterm.FgRed, pterm.Bold)
)

// DisplayHeader prints the run banner: input path, preset, and the seed in
// use, so a run can be reproduced from its terminal output alone.
func DisplayHeader(input, preset string, seed uint32) {
	headerStyle.Printf("obfuscating %s\n", input)
	pterm.Printf("  preset: %s\n", preset)
	pterm.Printf("  seed:   %d\n", seed)
}

// DisplayPassDone prints a one-line summary after a pass finishes.
func DisplayPassDone(name string, changed uint64) {
	successStyle.Printf("  ✔ %-14s", name)
	pterm.Printf("(%d changes)\n", changed)
}

// DisplayCounters pretty-prints a counter map as an aligned table.
func DisplayCounters(c Counters) {
	names := make([]string, 0, len(c))
	width := 0
	for name := range c {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		pterm.Printf("  %-*s %d\n", width+2, name, c[name])
	}
}

// DisplaySuccess prints the closing success banner.
func DisplaySuccess(output string) {
	successStyle.Printf("wrote %s\n", output)
}

// DisplayFailure prints the closing failure banner.
func DisplayFailure(err error) {
	failStyle.Println(fmt.Sprintf("obfuscation failed: %s", err))
}
