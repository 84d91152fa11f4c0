// Package report carries the run-facing output of the obfuscator: the
// structured logger handed to the pipeline, the pterm-based display used by
// the CLI, and the counter reporter that accumulates per-pass statistics
// and serializes them as JSON.
package report

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the zap logger used across the toolkit.  It writes through
// the development console encoder to standard error; debug enables
// debug-level output, otherwise the logger emits Info and above.
func NewLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}
