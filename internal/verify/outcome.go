package verify

import (
	"errors"
	"fmt"
)

// Outcome classifies one verified engine step.
type Outcome int

const (
	// Improved: pixels identical and strictly smaller. The candidate is committed.
	Improved Outcome = iota + 1
	// NoGain: pixels identical, not smaller. The candidate is discarded.
	NoGain
	// Corrupted: pixels changed but smaller. The candidate is rolled back.
	Corrupted
	// Invalid: pixels changed and not smaller. Fatal for the task.
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Improved:
		return "improved"
	case NoGain:
		return "no-gain"
	case Corrupted:
		return "corrupted"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps the two independent checks onto an Outcome.
func Classify(pixelIdentical, gotSmaller bool) Outcome {
	switch {
	case pixelIdentical && gotSmaller:
		return Improved
	case pixelIdentical:
		return NoGain
	case gotSmaller:
		return Corrupted
	default:
		return Invalid
	}
}

// InvalidOutcomeError reports an engine that altered pixels without making
// the file smaller. It aborts the task it happened in and nothing else.
type InvalidOutcomeError struct {
	Engine     string
	Path       string
	SizeBefore int64
	SizeAfter  int64
	DecodeErr  error // Set when the engine output could not be decoded at all.
}

func (e *InvalidOutcomeError) Error() string {
	msg := fmt.Sprintf("engine %s altered pixels of %q without shrinking it (%d -> %d bytes)",
		e.Engine, e.Path, e.SizeBefore, e.SizeAfter)
	if e.DecodeErr != nil {
		msg += ": " + e.DecodeErr.Error()
	}
	return msg
}

func (e *InvalidOutcomeError) Unwrap() error { return e.DecodeErr }

// IsInvalidOutcome reports whether err is (or wraps) an InvalidOutcomeError.
func IsInvalidOutcome(err error) bool {
	var e *InvalidOutcomeError
	return errors.As(err, &e)
}
