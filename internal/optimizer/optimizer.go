package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/backmassage/pngcrunch/internal/engine"
	"github.com/backmassage/pngcrunch/internal/events"
	"github.com/backmassage/pngcrunch/internal/fsx"
	"github.com/backmassage/pngcrunch/internal/verify"
)

// Logger is the logging surface the optimizer needs.
type Logger interface {
	Warn(string, ...interface{})
	Corrupt(string, ...interface{})
	Debug(string, ...interface{})
}

// Optimizer applies Steps to one file at a time. It holds no per-task
// state, so a single value serves every worker.
type Optimizer struct {
	Steps     []engine.Step
	Threshold int64       // Minimum bytes an iteration must save to continue; <1 means 1.
	Log       Logger
	Bus       *events.Bus // Optional.
}

// Optimize drives path to convergence. It never panics on task errors and
// never returns them: they end up in Report.Err.
func (o *Optimizer) Optimize(ctx context.Context, path string) Report {
	start := time.Now()
	rep := Report{Path: path}

	size, err := fsx.Size(path)
	if err != nil {
		return o.abort(rep, start, err)
	}
	task := Task{
		Path:         path,
		WorkingPath:  fsx.WorkingPath(path),
		OriginalSize: size,
	}
	rep.OriginalSize = size
	rep.FinalSize = size
	o.Bus.Publish(events.TopicTask, events.TaskStartedEvent{Path: path, Size: size, Timestamp: start})

	if err := o.createWorking(path, task.WorkingPath); err != nil {
		return o.abort(rep, start, fmt.Errorf("create working copy: %w", err))
	}
	defer o.removeWorking(task.WorkingPath)

	threshold := o.Threshold
	if threshold < 1 {
		threshold = 1
	}

	for {
		task.LastIterationSize = rep.FinalSize
		if err := o.iterate(ctx, &task, &rep); err != nil {
			rep.Iterations = task.Iterations + 1
			return o.abort(rep, start, err)
		}
		task.Iterations++
		rep.Iterations = task.Iterations

		saved := task.LastIterationSize - rep.FinalSize
		o.Log.Debug("%s: iteration %d saved %d bytes", path, task.Iterations-1, saved)
		if saved < threshold {
			break
		}
	}

	o.Bus.Publish(events.TopicTask, events.TaskCompletedEvent{
		Path:         path,
		OriginalSize: rep.OriginalSize,
		FinalSize:    rep.FinalSize,
		Iterations:   rep.Iterations,
		Duration:     time.Since(start),
		Timestamp:    time.Now(),
	})
	return rep
}

// iterate runs every step once. It returns an error only for conditions
// that end the task.
func (o *Optimizer) iterate(ctx context.Context, task *Task, rep *Report) error {
	for _, step := range o.Steps {
		id := step.ID()
		res := step.Run(ctx, task.Path, task.WorkingPath)
		if !res.Succeeded {
			rep.EngineFailures++
			o.Log.Warn("%s: %s failed: %v", task.Path, id, res.Err)
			if res.Stderr != "" {
				o.Log.Debug("%s: %s stderr: %s", task.Path, id, res.Stderr)
			}
		}

		// Output of a failed engine is verified like any other; whatever
		// it left behind is either committed, discarded or rolled back.
		v, err := verify.Check(task.Path, task.WorkingPath)
		if err != nil {
			return err
		}

		rep.Steps = append(rep.Steps, StepRecord{
			Iteration:  task.Iterations,
			Engine:     id,
			EngineOK:   res.Succeeded,
			Outcome:    v.Outcome,
			SizeBefore: v.SizeBefore,
			SizeAfter:  v.SizeAfter,
		})
		o.Bus.Publish(events.TopicStep, events.StepVerifiedEvent{
			Path:       task.Path,
			Iteration:  task.Iterations,
			Engine:     id,
			EngineOK:   res.Succeeded,
			Outcome:    v.Outcome,
			SizeBefore: v.SizeBefore,
			SizeAfter:  v.SizeAfter,
			Timestamp:  time.Now(),
		})

		switch v.Outcome {
		case verify.Corrupted:
			rep.Corrupted++
			if v.DecodeErr != nil {
				o.Log.Corrupt("%s: %s produced an unreadable PNG, rolled back: %v", task.Path, id, v.DecodeErr)
			} else {
				o.Log.Corrupt("%s: %s changed pixels, rolled back", task.Path, id)
			}
		case verify.Improved:
			o.Log.Debug("%s: %s %d -> %d bytes", task.Path, id, v.SizeBefore, v.SizeAfter)
		case verify.NoGain:
			o.Log.Debug("%s: %s no gain", task.Path, id)
		}

		if err := verify.Settle(v, id, task.Path, task.WorkingPath); err != nil {
			return err
		}
		if v.Outcome == verify.Improved {
			rep.FinalSize = v.SizeAfter
		}
	}
	return nil
}

func (o *Optimizer) abort(rep Report, start time.Time, err error) Report {
	rep.Err = err
	o.Bus.Publish(events.TopicTask, events.TaskAbortedEvent{
		Path:      rep.Path,
		Err:       err,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	return rep
}

// createWorking makes a fresh working copy. A file already sitting at the
// working path is reused only when it decodes to the canonical pixels, as a
// copy left by an interrupted run would; anything else is left alone.
func (o *Optimizer) createWorking(path, working string) error {
	err := fsx.CreateWorkingCopy(path, working)
	if !errors.Is(err, fsx.ErrWorkingCopyExists) {
		return err
	}

	want, derr := verify.DecodeFile(path)
	if derr != nil {
		return err
	}
	got, derr := verify.DecodeFile(working)
	if derr != nil || !verify.PixelsEqual(want, got) {
		return err
	}
	o.Log.Warn("%s: reusing leftover working copy %s", path, working)
	return fsx.CopyFile(path, working)
}

func (o *Optimizer) removeWorking(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		o.Log.Warn("Cannot remove working copy %s: %v", path, err)
	}
}
