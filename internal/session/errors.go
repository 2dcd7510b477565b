package session

import "errors"

var (
	// ErrExecution indicates the executor could not run a unit at all.
	ErrExecution = errors.New("execution failure")

	// ErrNoTargets indicates a session was started without targets.
	ErrNoTargets = errors.New("no targets to run")
)
