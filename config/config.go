package config

import (
	"crypto/rand"
	"encoding/binary"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Environment variables recognized by the obfuscator.  Values that fail to
// parse are ignored in favor of the defaults below.
const (
	EnvSeed            = "LLVM_OBF_SEED"
	EnvBogusRatio      = "LLVM_OBF_BOGUS_RATIO"
	EnvStringIntensity = "LLVM_OBF_STRING_INTENSITY"
	EnvCycles          = "LLVM_OBF_CYCLES"
	EnvReportFile      = "OFILE"
)

// Default values used when neither the profile file nor the environment
// provides a setting.
const (
	DefaultBogusRatio      = 20
	DefaultStringIntensity = 1
	DefaultCycles          = 1
)

// Config holds every knob the pipeline and its passes read.  A Config can be
// constructed directly for library and test use; Load builds one from the
// profile file and the environment.
type Config struct {
	// Seed is the base 32-bit seed shared by all pass PRNG streams.  A zero
	// value in the profile or environment means "pick one at random"; by the
	// time Load returns, a zero Seed has been replaced by a random non-zero
	// value and that value logged.  A non-zero Seed is kept as given.
	Seed uint32 `toml:"seed"`

	// BogusRatio is the percent chance (0-100) that a function receives a
	// bogus diamond during bogus-insert.
	BogusRatio int `toml:"bogus_ratio"`

	// StringIntensity multiplies the number of string-obf cycles per
	// pipeline sequence.
	StringIntensity int `toml:"string_intensity"`

	// Cycles is the number of times the whole pass sequence is applied.
	Cycles int `toml:"cycles"`

	// ReportFile is the destination path for the JSON counter report.  Empty
	// means standard out.
	ReportFile string `toml:"report_file"`
}

// Default returns a Config populated with the documented default values.
// The seed is left at zero; call ResolveSeed (or Load) before handing the
// config to a pipeline.
func Default() Config {
	return Config{
		BogusRatio:      DefaultBogusRatio,
		StringIntensity: DefaultStringIntensity,
		Cycles:          DefaultCycles,
	}
}

// Load builds the effective configuration by layering, in order of
// increasing precedence: defaults, the optional TOML profile at
// profilePath (ignored if empty or missing), and the environment.
func Load(profilePath string, log *zap.Logger) Config {
	cfg := Default()

	if profilePath != "" {
		if data, err := os.ReadFile(profilePath); err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				log.Warn("malformed profile file; continuing with defaults",
					zap.String("path", profilePath), zap.Error(err))
				cfg = Default()
			}
		}
	}

	cfg.applyEnv(log)
	cfg.clamp()
	cfg.ResolveSeed(log)
	return cfg
}

// applyEnv overlays recognized environment variables onto the config.
func (c *Config) applyEnv(log *zap.Logger) {
	if v, ok := envUint32(EnvSeed, log); ok {
		c.Seed = v
	}
	if v, ok := envInt(EnvBogusRatio, log); ok {
		c.BogusRatio = v
	}
	if v, ok := envInt(EnvStringIntensity, log); ok {
		c.StringIntensity = v
	}
	if v, ok := envInt(EnvCycles, log); ok {
		c.Cycles = v
	}
	if v := os.Getenv(EnvReportFile); v != "" {
		c.ReportFile = v
	}
}

// clamp forces out-of-range numeric settings back into their valid ranges.
func (c *Config) clamp() {
	if c.BogusRatio < 0 {
		c.BogusRatio = 0
	} else if c.BogusRatio > 100 {
		c.BogusRatio = 100
	}
	if c.StringIntensity < 1 {
		c.StringIntensity = 1
	}
	if c.Cycles < 1 {
		c.Cycles = 1
	}
}

// ResolveSeed replaces a zero seed with a randomly generated one and logs
// the chosen value so the run can be reproduced later.
func (c *Config) ResolveSeed(log *zap.Logger) {
	if c.Seed != 0 {
		return
	}

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err == nil {
		c.Seed = binary.LittleEndian.Uint32(buf[:])
	}
	if c.Seed == 0 {
		// Either the random source failed or it handed back zero; fall back
		// to a fixed non-zero seed rather than loop.
		c.Seed = 0xDEADBEEF
	}

	log.Info("generated random obfuscation seed", zap.Uint32("seed", c.Seed))
}

// envInt reads an integer environment variable.  A malformed value is logged
// once and reported as absent.
func envInt(key string, log *zap.Logger) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("ignoring malformed environment variable",
			zap.String("key", key), zap.String("value", v))
		return 0, false
	}
	return n, true
}

// envUint32 reads a 32-bit unsigned environment variable with the same
// malformed-value policy as envInt.
func envUint32(key string, log *zap.Logger) (uint32, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}

	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		log.Warn("ignoring malformed environment variable",
			zap.String("key", key), zap.String("value", v))
		return 0, false
	}
	return uint32(n), true
}
