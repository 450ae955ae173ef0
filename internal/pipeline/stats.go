package pipeline

import (
	"github.com/backmassage/pngcrunch/internal/optimizer"
)

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	Total              int // Files discovered.
	Converged          int
	Aborted            int
	Skipped            int // Never started because the run was interrupted.
	Corrupted          int // Rolled-back engine steps, all files.
	EngineFailures     int
	TotalOriginalBytes int64
	TotalFinalBytes    int64
}

// Add folds one report into the totals.
func (s *RunStats) Add(rep optimizer.Report) {
	if rep.Aborted() {
		s.Aborted++
	} else {
		s.Converged++
	}
	s.Corrupted += rep.Corrupted
	s.EngineFailures += rep.EngineFailures
	s.TotalOriginalBytes += rep.OriginalSize
	s.TotalFinalBytes += rep.FinalSize
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalOriginalBytes - s.TotalFinalBytes
}

// Percent returns the net change relative to the original total,
// truncated to two decimals.
func (s *RunStats) Percent() float64 {
	return optimizer.TruncPercent(s.TotalFinalBytes-s.TotalOriginalBytes, s.TotalOriginalBytes)
}
