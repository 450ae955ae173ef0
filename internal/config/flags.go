package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into scheduling, engines, output and utility.
// Negated flags (e.g. --no-color) are applied after Parse so Config defaults hold unless set.

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// ParseFlags parses os.Args into cfg. On --help or --version it prints and exits.
// On error it returns non-nil (e.g. unknown flag, missing positional args).
func ParseFlags(cfg *Config, version string) error {
	return parseArgs(cfg, version, os.Args[1:], os.Stdout, os.Exit)
}

// parseArgs is ParseFlags with its inputs and exit hook injected for tests.
func parseArgs(cfg *Config, version string, args []string, stdout io.Writer, exit func(int)) error {
	fs := flag.NewFlagSet("pngcrunch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { printUsage(os.Stderr, version) }

	var n negatedFlags

	defineSchedulingFlags(fs, cfg)
	defineEngineFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &n)
	defineUtilityFlags(fs, &n)

	if err := fs.Parse(args); err != nil {
		return err
	}

	applyNegatedFlags(cfg, &n)

	if n.showHelp {
		printUsage(stdout, version)
		exit(0)
		return nil
	}
	if n.showVersion {
		fmt.Fprintln(stdout, "pngcrunch v"+version)
		exit(0)
		return nil
	}

	cfg.Paths = cfg.Paths[:0]
	for _, a := range fs.Args() {
		cfg.Paths = append(cfg.Paths, NormalizePathArg(a))
	}
	if !cfg.CheckOnly && len(cfg.Paths) == 0 {
		return fmt.Errorf("need at least one input path")
	}
	return nil
}

// negatedFlags holds boolean flags that are applied after Parse.
type negatedFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// defineSchedulingFlags registers -j/--jobs and -t/--threshold.
func defineSchedulingFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Jobs, "jobs", cfg.Jobs, "Parallel workers (0 = one per CPU)")
	fs.IntVar(&cfg.Jobs, "j", cfg.Jobs, "Same as --jobs")
	fs.Int64Var(&cfg.Threshold, "threshold", cfg.Threshold, "Minimum bytes an iteration must save to run another")
	fs.Int64Var(&cfg.Threshold, "t", cfg.Threshold, "Same as --threshold")
}

// defineEngineFlags registers --engines, --timeout and --breaker.
func defineEngineFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.EnginesFile, "engines", "", "JSON file overriding engine commands")
	fs.DurationVar(&cfg.EngineTimeout, "timeout", cfg.EngineTimeout, "Per-invocation engine timeout (0 = none)")
	fs.IntVar(&cfg.BreakerThreshold, "breaker", cfg.BreakerThreshold, "Consecutive failures before an engine is skipped (0 = never)")
}

// defineDisplayFlags registers --color, --no-color, debug/verbose, --check, --log, --history, --events.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "debug", false, "Debug output (per-step outcomes)")
	fs.BoolVar(&cfg.Verbose, "d", false, "Same as --debug")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Same as --debug")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --debug")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run engine diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.StringVar(&cfg.LogFile, "log", "", "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", "", "Same as --log")
	fs.StringVar(&cfg.HistoryDB, "history", "", "Record runs in a SQLite database")
	fs.StringVar(&cfg.EventsFile, "events", "", "Write step and task events as JSON lines")
}

// defineUtilityFlags registers --version and --help (exit after printing).
func defineUtilityFlags(fs *flag.FlagSet, n *negatedFlags) {
	fs.BoolVar(&n.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&n.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&n.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&n.showHelp, "h", false, "Same as --help")
}

// applyNegatedFlags copies negated flag values into cfg.
func applyNegatedFlags(cfg *Config, n *negatedFlags) {
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// printUsage writes the help text. Column-aligned for readability.
func printUsage(w io.Writer, version string) {
	const col1 = 28 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "pngcrunch v" + version + " - lossless PNG shrinker"},
		{"", ""},
		{"  pngcrunch [OPTIONS] <path>...", ""},
		{"", ""},
		{"Scheduling", ""},
		{"  -j, --jobs <n>", "Parallel workers (default: one per CPU)"},
		{"  -t, --threshold <bytes>", "Bytes an iteration must save to repeat (default: 1)"},
		{"", ""},
		{"Engines", ""},
		{"  --engines <file>", "JSON engine command overrides"},
		{"  --timeout <dur>", "Per-invocation timeout (default: 10m)"},
		{"  --breaker <n>", "Skip an engine after n straight failures (default: 5)"},
		{"", ""},
		{"Output", ""},
		{"  -d, --debug", "Per-step outcomes"},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -l, --log <path>", "Append logs to file"},
		{"  --history <db>", "Record runs in a SQLite database"},
		{"  --events <path>", "Write step and task events as JSON lines"},
		{"", ""},
		{"Utility", ""},
		{"  -c, --check", "Engine diagnostics (imagemagick, optipng, advpng, oxipng)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}
