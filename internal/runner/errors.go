package runner

import (
	"errors"
	"fmt"
)

// ErrPanic wraps a panic raised by an item function.
var ErrPanic = errors.New("item function panicked")

// AbortError is returned by ExecuteParallel in fail-fast mode. It carries the
// lowest-index failure of the group that stopped the run.
type AbortError struct {
	Index int
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("aborted at item %d: %v", e.Index, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}
