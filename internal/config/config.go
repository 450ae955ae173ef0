// Package config holds runtime configuration: defaults, CLI flag parsing,
// JSON engine overrides, and validation. The resolved Config is built once
// at startup and treated as read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// EngineConfig names the binary for one external engine. Args are
// prepended to every invocation, e.g. {"command": "magick"} or a wrapper
// script with its own leading arguments.
type EngineConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// EngineSet holds the four engines of the optimization pipeline. It is a
// plain value: copying it hands out an independent snapshot.
type EngineSet struct {
	ImageMagick EngineConfig `json:"imagemagick"`
	OptiPNG     EngineConfig `json:"optipng"`
	AdvPNG      EngineConfig `json:"advpng"`
	OxiPNG      EngineConfig `json:"oxipng"`
}

// Clone returns a deep copy so callers never share Args backing arrays.
func (s EngineSet) Clone() EngineSet {
	cp := func(e EngineConfig) EngineConfig {
		e.Args = append([]string(nil), e.Args...)
		return e
	}
	return EngineSet{
		ImageMagick: cp(s.ImageMagick),
		OptiPNG:     cp(s.OptiPNG),
		AdvPNG:      cp(s.AdvPNG),
		OxiPNG:      cp(s.OxiPNG),
	}
}

// Config holds all runtime settings. It is populated by [DefaultConfig],
// then by [LoadEngines] and [ParseFlags], and validated by [Config.Validate].
type Config struct {
	// Inputs (set from positional args): files or directories.
	Paths []string

	// Scheduling.
	Jobs int // Default: 0 (one worker per CPU).

	// Convergence: an iteration must save at least Threshold bytes for
	// another iteration to run. Default: 1 (strictly smaller).
	Threshold int64

	// Engine invocation hardening.
	EngineTimeout    time.Duration // Default: 10m. Zero disables the limit.
	BreakerThreshold int           // Default: 5 consecutive failures. Zero disables.

	// Engines and their optional JSON override file (--engines).
	Engines     EngineSet
	EnginesFile string

	// Optional SQLite run ledger (--history) and JSON-lines event
	// journal (--events).
	HistoryDB  string
	EventsFile string

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	CheckOnly bool      // Run --check diagnostics and exit.
}

// DefaultConfig returns a Config with the stock engine binaries and
// conservative hardening limits. Used as the base before overrides apply.
func DefaultConfig() Config {
	return Config{
		Jobs:             0,
		Threshold:        1,
		EngineTimeout:    10 * time.Minute,
		BreakerThreshold: 5,
		Engines: EngineSet{
			ImageMagick: EngineConfig{Command: "convert"},
			OptiPNG:     EngineConfig{Command: "optipng"},
			AdvPNG:      EngineConfig{Command: "advpng"},
			OxiPNG:      EngineConfig{Command: "oxipng"},
		},
		ColorMode: ColorAuto,
	}
}

// NormalizePathArg strips trailing slashes from a path argument.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizePathArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks numeric limits, the color mode and engine commands. When
// not in CheckOnly mode it also requires at least one input path.
func (c *Config) Validate() error {
	if c.Jobs < 0 {
		return fmt.Errorf("invalid jobs %d (use 0 for one worker per CPU)", c.Jobs)
	}
	if c.Threshold < 1 {
		return fmt.Errorf("invalid threshold %d (must be at least 1 byte)", c.Threshold)
	}
	if c.EngineTimeout < 0 {
		return errors.New("engine timeout must not be negative")
	}
	if c.BreakerThreshold < 0 {
		return errors.New("breaker threshold must not be negative")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	for name, e := range map[string]EngineConfig{
		"imagemagick": c.Engines.ImageMagick,
		"optipng":     c.Engines.OptiPNG,
		"advpng":      c.Engines.AdvPNG,
		"oxipng":      c.Engines.OxiPNG,
	} {
		if strings.TrimSpace(e.Command) == "" {
			return fmt.Errorf("engine %s has no command", name)
		}
	}

	if c.CheckOnly {
		return nil
	}
	if len(c.Paths) == 0 {
		return errors.New("need at least one input path")
	}
	return nil
}
