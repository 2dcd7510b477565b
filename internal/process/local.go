package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// TimeoutExitCode is reported when a command is terminated for exceeding its
// timeout, matching the convention of timeout(1).
const TimeoutExitCode = 124

// LocalExecutor executes commands directly on the local system.
type LocalExecutor struct {
	logger *zap.Logger
}

// NewLocalExecutor creates a LocalExecutor. A nil logger disables logging.
func NewLocalExecutor(logger *zap.Logger) *LocalExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalExecutor{logger: logger.Named("process")}
}

// Run executes args locally.
//
// When opts.Timeout expires the process is killed and the outcome reports
// exit code 124, Killed and SIGKILL. A process terminated by any other signal
// reports 128+signo, Killed and the signal name.
func (e *LocalExecutor) Run(ctx context.Context, args []string, opts Opts) (Outcome, error) {
	if len(args) == 0 {
		return Outcome{}, fmt.Errorf("%w: %w", ErrExecution, ErrEmptyCommand)
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)

	if opts.Dir != "" {
		if _, err := os.Stat(opts.Dir); err != nil {
			return Outcome{}, fmt.Errorf("%w: working directory %s: %w", ErrExecution, opts.Dir, err)
		}
		cmd.Dir = opts.Dir
	}

	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	outcome := Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		return outcome, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		e.logger.Debug("command failed to run",
			zap.Strings("args", args),
			zap.Error(err))
		return outcome, fmt.Errorf("%w: %s: %w", ErrExecution, args[0], err)
	}

	outcome.ExitCode = exitErr.ExitCode()
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		sig := status.Signal()
		outcome.Killed = true
		outcome.Signal = signalName(sig)
		outcome.ExitCode = 128 + int(sig)
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		outcome.Killed = true
		outcome.Signal = signalName(syscall.SIGKILL)
		outcome.ExitCode = TimeoutExitCode
		e.logger.Debug("command timed out",
			zap.Strings("args", args),
			zap.Duration("timeout", opts.Timeout))
	}

	return outcome, nil
}

func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGABRT:
		return "SIGABRT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	default:
		return fmt.Sprintf("signal %d", int(sig))
	}
}
