// Package events carries progress notifications from the optimizer and
// the scheduler to whoever is listening (the CLI trace, tests).
package events

import (
	"time"

	"github.com/backmassage/pngcrunch/internal/verify"
)

// Event is the base interface for all events. TaskID is the canonical
// file path, or "" for run-wide events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topics.
const (
	TopicTask = "task"
	TopicStep = "step"
	TopicRun  = "run"
)

// Event types.
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskAborted   = "task.aborted"
	EventTypeStepVerified  = "step.verified"
	EventTypeRunProgress   = "run.progress"
)

// TaskStartedEvent is published when a worker picks up a file.
type TaskStartedEvent struct {
	Path      string
	Size      int64
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.Path }

// StepVerifiedEvent is published after every verified engine step.
type StepVerifiedEvent struct {
	Path       string
	Iteration  int
	Engine     string
	EngineOK   bool
	Outcome    verify.Outcome
	SizeBefore int64
	SizeAfter  int64
	Timestamp  time.Time
}

func (e StepVerifiedEvent) EventType() string { return EventTypeStepVerified }
func (e StepVerifiedEvent) TaskID() string    { return e.Path }

// TaskCompletedEvent is published when a file converged.
type TaskCompletedEvent struct {
	Path         string
	OriginalSize int64
	FinalSize    int64
	Iterations   int
	Duration     time.Duration
	Timestamp    time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.Path }

// TaskAbortedEvent is published when a file's task stopped on an error.
type TaskAbortedEvent struct {
	Path      string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskAbortedEvent) EventType() string { return EventTypeTaskAborted }
func (e TaskAbortedEvent) TaskID() string    { return e.Path }

// RunProgressEvent is published by the scheduler after every finished task.
type RunProgressEvent struct {
	Total     int
	Completed int
	Aborted   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }
