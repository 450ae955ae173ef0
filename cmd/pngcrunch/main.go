// Command pngcrunch losslessly shrinks PNG files by running them through
// imagemagick, optipng, advpng and oxipng until no engine can save more,
// keeping only pixel-identical, strictly smaller results.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backmassage/pngcrunch/internal/check"
	"github.com/backmassage/pngcrunch/internal/config"
	"github.com/backmassage/pngcrunch/internal/display"
	"github.com/backmassage/pngcrunch/internal/engine"
	"github.com/backmassage/pngcrunch/internal/events"
	"github.com/backmassage/pngcrunch/internal/history"
	"github.com/backmassage/pngcrunch/internal/logging"
	"github.com/backmassage/pngcrunch/internal/optimizer"
	"github.com/backmassage/pngcrunch/internal/pipeline"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

// Exit statuses.
const (
	exitOK            = 0
	exitFailure       = 1 // Usage/config error, or at least one aborted file.
	exitMissingPath   = 2
	exitMissingEngine = 3
	exitForced        = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, version); err != nil {
		fmt.Fprintf(os.Stderr, "pngcrunch: %v\n", err)
		return exitFailure
	}
	globalPath, projectPath := config.DefaultEnginePaths()
	if err := config.LoadEngines(&cfg, globalPath, projectPath, cfg.EnginesFile); err != nil {
		fmt.Fprintf(os.Stderr, "pngcrunch: %v\n", err)
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "pngcrunch: %v\n", err)
		return exitFailure
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pngcrunch: %v\n", err)
		return exitFailure
	}
	defer log.Close()

	// Phase 2: Logger available.
	display.PrintBanner()
	specs := engine.Specs(cfg.Engines)

	if cfg.CheckOnly {
		if !check.RunCheck(context.Background(), specs, log) {
			return exitMissingEngine
		}
		return exitOK
	}

	log.Info("=== pngcrunch v%s (%s) ===", version, commit)

	if code := preflight(context.Background(), specs, cfg.Paths, log); code != exitOK {
		return code
	}

	files, err := pipeline.Discover(cfg.Paths)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		return exitFailure
	}

	// Phase 3: Signal handling. The first SIGINT/SIGTERM stops new files
	// from starting; the second kills running engines and exits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	procs := engine.NewProcessManager()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Warn("Received interrupt, finishing files in progress (interrupt again to force)")
		cancel()
		<-sigCh
		log.Error("Forced shutdown, killing %d engine processes", procs.Count())
		if err := procs.KillAll(); err != nil {
			log.Error("%v", err)
		}
		log.Close()
		os.Exit(exitForced)
	}()

	bus := events.NewBus()
	journalDone, err := startJournal(cfg.EventsFile, bus)
	if err != nil {
		log.Error("Cannot open event journal: %v", err)
		return exitFailure
	}

	// Phase 4: Optimize.
	opts := engine.Options{
		Timeout:          cfg.EngineTimeout,
		BreakerThreshold: cfg.BreakerThreshold,
		Processes:        procs,
		Log:              log,
	}
	runner := &pipeline.Runner{
		Optimizer: &optimizer.Optimizer{
			Steps:     engine.Pipeline(cfg.Engines, opts),
			Threshold: cfg.Threshold,
			Log:       log,
			Bus:       bus,
		},
		Jobs: cfg.Jobs,
		Log:  log,
		Bus:  bus,
	}

	started := time.Now()
	stats, reports := runner.Run(ctx, files)
	finished := time.Now()

	bus.Close()
	if err := <-journalDone; err != nil {
		log.Warn("Event journal incomplete: %v", err)
	}

	if cfg.HistoryDB != "" {
		recordHistory(cfg, log, history.Run{
			StartedAt:  started,
			FinishedAt: finished,
			Jobs:       runner.Workers(),
			Threshold:  cfg.Threshold,
			Stats:      stats,
		}, reports)
	}

	if stats.Aborted > 0 {
		return exitFailure
	}
	return exitOK
}

// preflight runs the engine gate, then the input check. Nothing is touched
// unless every engine answers, and a missing engine wins over a missing
// path.
func preflight(ctx context.Context, specs []engine.Spec, paths []string, log *logging.Logger) int {
	if err := check.CheckDeps(ctx, specs); err != nil {
		log.Error("%v", err)
		return exitMissingEngine
	}
	if missing := missingPaths(paths); len(missing) > 0 {
		for _, p := range missing {
			log.Error("Input not found: %s", p)
		}
		return exitMissingPath
	}
	return exitOK
}

// missingPaths returns the inputs that do not exist.
func missingPaths(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, p)
		}
	}
	return missing
}

// startJournal subscribes a JSON-lines writer to bus when path is set. The
// returned channel yields the writer's result once the bus is closed.
func startJournal(path string, bus *events.Bus) (<-chan error, error) {
	done := make(chan error, 1)
	if path == "" {
		done <- nil
		return done, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	ch := bus.SubscribeAll(4096)
	go func() {
		err := events.WriteJournal(f, ch)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		done <- err
	}()
	return done, nil
}

// recordHistory appends the run to the SQLite ledger. Failures are logged;
// they never change the exit status.
func recordHistory(cfg config.Config, log *logging.Logger, run history.Run, reports []optimizer.Report) {
	ctx := context.Background()
	store, err := history.Open(ctx, cfg.HistoryDB)
	if err != nil {
		log.Warn("History disabled: %v", err)
		return
	}
	defer store.Close()

	id, err := store.RecordRun(ctx, run, reports)
	if err != nil {
		log.Warn("Cannot record run: %v", err)
		return
	}
	log.Debug("Recorded run %s in %s", id, cfg.HistoryDB)
}
