package pipeline

import (
	"bytes"
	"fmt"
	"os/exec"
)

// Names tried, in order, when resolving the C compiler from PATH.
var clangCandidates = []string{"clang", "clang-14"}

// FindClang resolves the C compiler used for the optional front and back
// legs of a run: compiling C sources to IR and linking the obfuscated IR
// with the runtime support library.
func FindClang() (string, error) {
	for _, name := range clangCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no clang binary found in PATH (tried %v)", clangCandidates)
}

// CompileToIR compiles a C source file to textual LLVM assembly at llPath.
// Optimization is disabled so the emitted control flow matches the source
// shape the passes expect to chew on.
func CompileToIR(clang, srcPath, llPath string) error {
	return runTool(clang, "-S", "-emit-llvm", "-O0", "-o", llPath, srcPath)
}

// LinkNative compiles the transformed assembly together with the runtime
// support translation unit into a native executable.
func LinkNative(clang, llPath, runtimePath, outPath string) error {
	return runTool(clang, llPath, runtimePath, "-pthread", "-o", outPath)
}

// runTool invokes an external tool and surfaces its stderr as the error
// text on failure.
func runTool(bin string, args ...string) error {
	cmd := exec.Command(bin, args...)
	stderr := bytes.Buffer{}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s: %s", bin, stderr.String())
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
