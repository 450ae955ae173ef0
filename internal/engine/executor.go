package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/backmassage/pngcrunch/internal/config"
	"github.com/backmassage/pngcrunch/internal/fsx"
)

// breakerOpenTimeout is how long a tripped engine stays skipped before a
// trial invocation is let through.
const breakerOpenTimeout = 30 * time.Second

// Result holds the outcome of one engine step. It says nothing about
// whether the output is kept.
type Result struct {
	Engine    string
	Succeeded bool
	Err       error  // First failing invocation, nil on success.
	Stderr    string // Stderr of the first failing invocation.
	Duration  time.Duration
}

// Step is one stage of an optimization iteration. Implementations must be
// safe for concurrent use: every worker shares the same steps.
type Step interface {
	ID() string
	Run(ctx context.Context, canonical, working string) Result
}

// Logger is the minimal logging interface the adapter needs.
type Logger interface {
	Warn(string, ...interface{})
}

// Options tunes how Commands run their processes.
type Options struct {
	Timeout          time.Duration   // Per-invocation limit; zero means none.
	BreakerThreshold int             // Consecutive failures that trip an engine; zero disables.
	Processes        *ProcessManager // Optional; tracks live processes for forced shutdown.
	Log              Logger          // Optional; receives breaker state changes.
}

// Command runs one external engine as a Step.
type Command struct {
	spec    Spec
	opts    Options
	breaker *gobreaker.CircuitBreaker
}

// NewCommand wraps spec with the given options.
func NewCommand(spec Spec, opts Options) *Command {
	c := &Command{spec: spec, opts: opts}
	if opts.BreakerThreshold > 0 {
		threshold := uint32(opts.BreakerThreshold)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        spec.ID,
			MaxRequests: 1,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if opts.Log != nil {
					opts.Log.Warn("Engine %s: circuit %s -> %s", name, from, to)
				}
			},
		})
	}
	return c
}

// Pipeline returns the four configured engines as Steps, in order.
func Pipeline(set config.EngineSet, opts Options) []Step {
	specs := Specs(set)
	steps := make([]Step, 0, len(specs))
	for _, s := range specs {
		steps = append(steps, NewCommand(s, opts))
	}
	return steps
}

// ID returns the engine identifier.
func (c *Command) ID() string { return c.spec.ID }

// Spec returns the engine description.
func (c *Command) Spec() Spec { return c.spec }

// Run applies the engine to working. Every invocation runs even if an
// earlier one failed; the step succeeds only if all of them did.
//
// Invocations are detached from ctx cancellation: once a task has started,
// its engines run to completion (bounded by Options.Timeout).
func (c *Command) Run(ctx context.Context, canonical, working string) Result {
	start := time.Now()
	res := Result{Engine: c.spec.ID, Succeeded: true}

	if c.spec.FreshCopy {
		if err := fsx.CopyFile(canonical, working); err != nil {
			res.Succeeded = false
			res.Err = fmt.Errorf("refresh working copy: %w", err)
			res.Duration = time.Since(start)
			return res
		}
	}

	for _, argv := range c.spec.Invocations(canonical, working) {
		stderr, err := c.invoke(ctx, argv)
		if err != nil && res.Succeeded {
			res.Succeeded = false
			res.Err = err
			res.Stderr = strings.TrimSpace(stderr)
		}
	}

	res.Duration = time.Since(start)
	return res
}

func (c *Command) invoke(ctx context.Context, argv []string) (string, error) {
	if c.breaker == nil {
		return c.exec(ctx, argv)
	}
	var stderr string
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var err error
		stderr, err = c.exec(ctx, argv)
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%s skipped: %w", c.spec.ID, err)
	}
	return stderr, err
}

func (c *Command) exec(ctx context.Context, argv []string) (string, error) {
	runCtx := context.WithoutCancel(ctx)
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.opts.Timeout)
		defer cancel()
	}
	cmd := newCommand(runCtx, argv[0], argv[1:]...)
	stderr, err := run(cmd, c.opts.Processes)
	if err != nil && runCtx.Err() == context.DeadlineExceeded {
		return stderr, fmt.Errorf("%s timed out after %s: %w", c.spec.ID, c.opts.Timeout, err)
	}
	return stderr, err
}
