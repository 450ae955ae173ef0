//go:build unix

package engine

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
)

// newCommand creates a command in its own process group so that a timeout
// or forced shutdown kills the engine together with any children it spawned.
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killProcess(cmd) }
	cmd.WaitDelay = waitDelay
	return cmd
}

// killProcess sends SIGKILL to the command's whole process group.
func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process group: %w", err)
	}
	return nil
}
