package pipeline

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/pngcrunch/internal/display"
	"github.com/backmassage/pngcrunch/internal/events"
	"github.com/backmassage/pngcrunch/internal/optimizer"
	"github.com/backmassage/pngcrunch/internal/verify"
)

// Logger is the logging surface the runner needs.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// Runner schedules one optimizer task per file over at most Jobs workers.
type Runner struct {
	Optimizer *optimizer.Optimizer
	Jobs      int // Zero means runtime.NumCPU().
	Log       Logger
	Bus       *events.Bus // Optional.
}

// Workers returns the effective pool size.
func (r *Runner) Workers() int {
	if r.Jobs > 0 {
		return r.Jobs
	}
	return runtime.NumCPU()
}

// Run optimizes files and returns the aggregate stats plus one report per
// started file, in input order. Cancelling ctx stops new files from
// starting; files already started run to completion.
func (r *Runner) Run(ctx context.Context, files []string) (RunStats, []optimizer.Report) {
	stats := RunStats{Total: len(files)}
	reports := make([]optimizer.Report, len(files))
	started := make([]bool, len(files))

	workers := r.Workers()
	r.Log.Info("Found %d PNG files, %d workers", len(files), workers)

	var completed, aborted atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// A slot may free up after cancellation; don't start new work.
			if ctx.Err() != nil {
				return nil
			}
			started[i] = true
			rep := r.Optimizer.Optimize(ctx, path)
			reports[i] = rep

			n := completed.Add(1)
			if rep.Aborted() {
				aborted.Add(1)
			}
			r.logReport(int(n), len(files), rep)
			r.Bus.Publish(events.TopicRun, events.RunProgressEvent{
				Total:     len(files),
				Completed: int(n),
				Aborted:   int(aborted.Load()),
				Timestamp: time.Now(),
			})
			return nil
		})
	}
	_ = g.Wait()

	out := make([]optimizer.Report, 0, len(files))
	for i, rep := range reports {
		if !started[i] {
			stats.Skipped++
			continue
		}
		stats.Add(rep)
		out = append(out, rep)
	}
	if stats.Skipped > 0 {
		r.Log.Warn("Interrupted: %d files not started", stats.Skipped)
	}

	r.logSummary(&stats, out)
	return stats, out
}

func (r *Runner) logReport(n, total int, rep optimizer.Report) {
	if rep.Aborted() {
		r.Log.Error("[%d/%d] %s: aborted: %v", n, total, rep.Path, rep.Err)
		return
	}
	line := "[%d/%d] %s: %s -> %s (%s, %s) in %d iterations"
	args := []interface{}{n, total, rep.Path,
		display.FormatBytes(rep.OriginalSize),
		display.FormatBytes(rep.FinalSize),
		display.FormatBytesWithSign(rep.Delta()),
		display.FormatPercent(rep.Percent()),
		rep.Iterations,
	}
	if rep.Delta() < 0 {
		r.Log.Success(line, args...)
	} else {
		r.Log.Info(line, args...)
	}
}

func (r *Runner) logSummary(stats *RunStats, reports []optimizer.Report) {
	r.Log.Info("==============================")
	r.Log.Info("Done: %d converged, %d aborted, %d skipped", stats.Converged, stats.Aborted, stats.Skipped)
	for _, t := range TallyEngines(reports) {
		r.Log.Info("  %-12s saved %s: %d improved, %d no gain, %d corrupted, %d invalid, %d failed",
			t.Engine, display.FormatBytes(t.Saved),
			t.Outcomes[verify.Improved], t.Outcomes[verify.NoGain],
			t.Outcomes[verify.Corrupted], t.Outcomes[verify.Invalid], t.Failures)
	}
	if stats.Corrupted > 0 {
		r.Log.Warn("  Rolled back %d corrupting engine steps", stats.Corrupted)
	}
	if stats.EngineFailures > 0 {
		r.Log.Warn("  Engine failures: %d", stats.EngineFailures)
	}

	saved := stats.SpaceSaved()
	if saved > 0 {
		r.Log.Success("  Total space saved: %s (before %s -> after %s, %s)",
			display.FormatBytes(saved),
			display.FormatBytes(stats.TotalOriginalBytes),
			display.FormatBytes(stats.TotalFinalBytes),
			display.FormatPercent(stats.Percent()))
	} else {
		r.Log.Info("  Total space saved: 0 B (before %s -> after %s)",
			display.FormatBytes(stats.TotalOriginalBytes),
			display.FormatBytes(stats.TotalFinalBytes))
	}
}
