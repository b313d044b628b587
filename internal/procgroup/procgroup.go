// Package procgroup runs external tools in their own process group so that a
// cancelled run never leaves orphaned children behind.
package procgroup

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultGrace is the time a process group gets between SIGTERM and SIGKILL.
const DefaultGrace = 2 * time.Second

// ErrNotStarted is returned by Terminate for a command that never started.
var ErrNotStarted = errors.New("process not started")

// Set configures the command to start in a new process group.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Run starts cmd in its own process group and waits for it.
// If ctx ends first, the whole group is terminated and ctx.Err() is returned.
func Run(ctx context.Context, cmd *exec.Cmd, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}

	Set(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	select {
	case err := <-waitCh:
		return err
	case <-ctx.Done():
		slog.Debug("terminating process group",
			"pid", cmd.Process.Pid,
			"path", cmd.Path,
			"reason", ctx.Err(),
		)
		_ = Terminate(cmd, waitCh, grace)
		return ctx.Err()
	}
}

// Terminate sends SIGTERM to the group, waits up to grace for waitCh,
// then sends SIGKILL and drains waitCh. It returns the error from waitCh.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}

	if err := interrupt(cmd); err != nil {
		slog.Debug("interrupt process group", "pid", cmd.Process.Pid, "error", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		return err
	case <-timer.C:
	}

	slog.Warn("grace period exceeded, killing process group", "pid", cmd.Process.Pid)
	if err := kill(cmd); err != nil {
		slog.Debug("kill process group", "pid", cmd.Process.Pid, "error", err)
	}
	return <-waitCh
}

// ExitCode returns the exit status carried by err, or -1 if there is none.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
