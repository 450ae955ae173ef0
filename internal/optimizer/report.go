package optimizer

import (
	"math"

	"github.com/backmassage/pngcrunch/internal/verify"
)

// Task is the state one worker owns while optimizing a file.
type Task struct {
	Path              string
	WorkingPath       string
	OriginalSize      int64
	LastIterationSize int64 // Canonical size when the current iteration began.
	Iterations        int
}

// StepRecord is the verified result of one engine step.
type StepRecord struct {
	Iteration  int
	Engine     string
	EngineOK   bool
	Outcome    verify.Outcome
	SizeBefore int64
	SizeAfter  int64
}

// Report summarizes one task. Err is non-nil when the task aborted; the
// canonical file then holds the last committed candidate.
type Report struct {
	Path           string
	OriginalSize   int64
	FinalSize      int64
	Iterations     int
	Steps          []StepRecord
	Corrupted      int
	EngineFailures int
	Err            error
}

// Aborted reports whether the task stopped on an error.
func (r Report) Aborted() bool { return r.Err != nil }

// Delta returns FinalSize - OriginalSize. Negative means the file shrank.
func (r Report) Delta() int64 { return r.FinalSize - r.OriginalSize }

// Percent returns Delta as a percentage of OriginalSize, truncated toward
// zero at two decimals.
func (r Report) Percent() float64 {
	return TruncPercent(r.Delta(), r.OriginalSize)
}

// TruncPercent returns delta/base*100 truncated to two decimals; 0 when
// base is 0.
func TruncPercent(delta, base int64) float64 {
	if base == 0 {
		return 0
	}
	pct := float64(delta) / float64(base) * 100
	return math.Trunc(pct*100) / 100
}
