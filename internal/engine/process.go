package engine

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// waitDelay bounds how long Wait keeps draining stderr after the process
// was killed.
const waitDelay = 5 * time.Second

// run starts cmd, registers it with pm while it runs, and returns its
// stderr. stdout is discarded; engines report through exit status only.
func run(cmd *exec.Cmd, pm *ProcessManager) (stderr string, err error) {
	var stderrBuf bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	if pm != nil {
		pm.Track(cmd)
		defer pm.Untrack(cmd)
	}

	if err := cmd.Wait(); err != nil {
		return stderrBuf.String(), fmt.Errorf("%s failed: %w", cmd.Path, err)
	}
	return stderrBuf.String(), nil
}

// ProcessManager tracks running engine processes so a forced shutdown can
// terminate them all.
type ProcessManager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewProcessManager creates an empty ProcessManager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{procs: make(map[int]*exec.Cmd)}
}

// Track registers a started process.
func (pm *ProcessManager) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.procs[cmd.Process.Pid] = cmd
}

// Untrack removes a process after Wait returned.
func (pm *ProcessManager) Untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.procs, cmd.Process.Pid)
}

// KillAll terminates every tracked process (and its process group where
// supported).
func (pm *ProcessManager) KillAll() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var errs []error
	for pid, cmd := range pm.procs {
		if err := killProcess(cmd); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill process %d: %w", pid, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors killing processes: %v", errs)
	}
	return nil
}

// Count returns the number of currently tracked processes.
func (pm *ProcessManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.procs)
}
