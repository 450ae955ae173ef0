// Package check provides the engine availability gate (CheckDeps) and the
// informational --check diagnostics (RunCheck).
package check

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/backmassage/pngcrunch/internal/engine"
)

// Probe retry policy. A spawn can fail transiently (ETXTBSY right after an
// install, EAGAIN under process pressure); a probe that ran and exited
// non-zero is not retried.
const (
	probeTimeout     = 10 * time.Second
	retryInitial     = 100 * time.Millisecond
	retryMaxInterval = time.Second
	retryMaxElapsed  = 3 * time.Second
)

// MissingEngineError names the first engine that cannot be invoked.
type MissingEngineError struct {
	Engine  string
	Command string
	Err     error
}

func (e *MissingEngineError) Error() string {
	return fmt.Sprintf("required engine %s (%s) is not invocable: %v", e.Engine, e.Command, e.Err)
}

func (e *MissingEngineError) Unwrap() error { return e.Err }

// IsMissingEngine reports whether err is (or wraps) a MissingEngineError.
func IsMissingEngine(err error) bool {
	var e *MissingEngineError
	return errors.As(err, &e)
}

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Error(string, ...interface{})
}

// CheckDeps verifies, in pipeline order, that every engine is on PATH and
// answers its probe. It returns a *MissingEngineError for the first one
// that does not. Nothing is optimized before this passes.
func CheckDeps(ctx context.Context, specs []engine.Spec) error {
	for _, s := range specs {
		if _, err := Probe(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// RunCheck prints every engine's version line. It is informational only:
// it probes all engines even after a failure and reports whether all of
// them are available.
func RunCheck(ctx context.Context, specs []engine.Spec, log Logger) bool {
	log.Info("=== Engine Check ===")
	ok := true
	for _, s := range specs {
		version, err := Probe(ctx, s)
		if err != nil {
			log.Error("%s: %v", s.ID, err)
			ok = false
			continue
		}
		log.Success("%s: %s", s.ID, version)
	}
	return ok
}

// Probe resolves the engine's command and runs its version probe. It
// returns the first non-empty output line.
func Probe(ctx context.Context, s engine.Spec) (string, error) {
	argv := s.ProbeArgv()
	missing := func(err error) error {
		return &MissingEngineError{Engine: s.ID, Command: argv[0], Err: err}
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return "", missing(err)
	}

	var out []byte
	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, path, argv[1:]...)
		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		err := cmd.Run()
		if err == nil {
			out = buf.Bytes()
			return nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || runCtx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("%s: %w", strings.Join(argv, " "), err))
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitial
	policy.MaxInterval = retryMaxInterval
	policy.MaxElapsedTime = retryMaxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", missing(err)
	}
	return firstLine(out), nil
}

func firstLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "(no version output)"
}
