// Package process provides the process-execution capability consumed by the
// strategy engine, plus a local implementation built on os/exec.
package process

import (
	"context"
	"errors"
	"time"
)

// ErrExecution marks an I/O-level failure to run a command, as opposed to a
// command that ran and exited non-zero.
var ErrExecution = errors.New("process execution failed")

// ErrEmptyCommand is returned when no command arguments are given.
var ErrEmptyCommand = errors.New("command cannot be empty")

// Executor runs a command and reports how it ended.
//
// A non-zero exit is not an error: implementations return the Outcome and a
// nil error. Errors are reserved for failures to run the command at all and
// wrap ErrExecution.
type Executor interface {
	Run(ctx context.Context, args []string, opts Opts) (Outcome, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, args []string, opts Opts) (Outcome, error)

// Run calls f.
func (f ExecutorFunc) Run(ctx context.Context, args []string, opts Opts) (Outcome, error) {
	return f(ctx, args, opts)
}

// Opts contains options for command execution.
type Opts struct {
	// Dir is the working directory for the command.
	Dir string

	// Env contains additional environment variables (KEY=VALUE format).
	Env []string

	// Timeout is the maximum duration for the command. Zero means no limit.
	Timeout time.Duration
}

// Outcome describes how a command ended.
type Outcome struct {
	ExitCode int           `json:"exit_code"`
	Signal   string        `json:"signal,omitempty"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
	Killed   bool          `json:"killed"`
}
