package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/caevv/buildtime/internal/buildtimer"
)

// cancelledExitCode is reported for a build stopped by an interrupt.
const cancelledExitCode = 130

// waitDelay bounds how long an interrupted build may take to exit before
// it is killed.
const waitDelay = 10 * time.Second

// buildRunner executes one build command between the timer's start and
// finish signals.
type buildRunner struct {
	timer  *buildtimer.Timer
	logger *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newBuildRunner(timer *buildtimer.Timer, logger *slog.Logger) *buildRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &buildRunner{
		timer:  timer,
		logger: logger,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Run executes argv and records the build. It returns the exit status to
// propagate. An error is returned only when the command could not be
// started at all; such a build is still recorded as failed.
func (r *buildRunner) Run(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty command")
	}

	r.logger.Info("starting build", "command", argv)
	r.timer.NotifyBuildStarted()

	exitCode, execErr := r.executeCommand(ctx, argv)

	// The child shares our terminal, so a Ctrl-C can end it before ctx is
	// cancelled.
	cancelled := ctx.Err() != nil || interrupted(execErr)
	succeeded := execErr == nil && exitCode == 0 && !cancelled

	event, err := r.timer.NotifyBuildFinished(succeeded, cancelled)
	if err != nil {
		r.logger.Error("failed to record build", "error", err)
	} else {
		r.logger.Info("build finished",
			"outcome", event.Outcome.String(),
			"duration", event.Duration,
			"exit_code", exitCode)
	}

	if cancelled {
		return cancelledExitCode, nil
	}

	var exitErr *exec.ExitError
	if execErr != nil && !errors.As(execErr, &exitErr) {
		return -1, fmt.Errorf("failed to start build: %w", execErr)
	}
	return exitCode, nil
}

// executeCommand runs argv with the runner's standard streams attached.
func (r *buildRunner) executeCommand(ctx context.Context, argv []string) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Env = os.Environ()

	// Give the build a chance to clean up before it is killed.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = waitDelay

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return exitCode, err
}

// interrupted reports whether err is the exit of a command stopped by
// SIGINT or SIGTERM, either killed by the signal or exiting with the shell
// convention status 128+SIGINT.
func interrupted(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	if exitErr.ExitCode() == cancelledExitCode {
		return true
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return false
	}
	return status.Signal() == syscall.SIGINT || status.Signal() == syscall.SIGTERM
}
