// Package classify maps raw process outcomes onto semantic exit classifications.
package classify

import (
	"fmt"

	"github.com/fyrsmithlabs/gotestctl/internal/process"
)

// Well-known exit codes.
const (
	ExitSuccess     = 0
	ExitTestFailure = 1
	ExitBuildError  = 2
	ExitTimeout     = 124
)

// Kind tags the classification variant.
type Kind string

const (
	KindSuccess     Kind = "success"
	KindTestFailure Kind = "test_failure"
	KindBuildError  Kind = "build_error"
	KindTimeout     Kind = "timeout"
	KindKilled      Kind = "killed"
	KindUnknown     Kind = "unknown"
)

// Classification is the semantic interpretation of a process exit.
type Classification interface {
	Kind() Kind
	// ExitCode returns the exit code the classification was derived from.
	ExitCode() int
	String() string

	isClassification()
}

// Success is a zero exit.
type Success struct{}

// TestFailure is an exit code 1 from a process that was not killed.
type TestFailure struct{}

// BuildError is an exit code 2: the package set did not compile.
type BuildError struct {
	Code int
}

// Timeout is an exit code 124.
type Timeout struct {
	Code int
}

// Killed is a process terminated by a recorded signal.
type Killed struct {
	Code   int
	Signal string
}

// Unknown is any exit outside the known set.
type Unknown struct {
	Code int
}

func (Success) Kind() Kind     { return KindSuccess }
func (TestFailure) Kind() Kind { return KindTestFailure }
func (BuildError) Kind() Kind  { return KindBuildError }
func (Timeout) Kind() Kind     { return KindTimeout }
func (Killed) Kind() Kind      { return KindKilled }
func (Unknown) Kind() Kind     { return KindUnknown }

func (Success) ExitCode() int      { return ExitSuccess }
func (TestFailure) ExitCode() int  { return ExitTestFailure }
func (c BuildError) ExitCode() int { return c.Code }
func (c Timeout) ExitCode() int    { return c.Code }
func (c Killed) ExitCode() int     { return c.Code }
func (c Unknown) ExitCode() int    { return c.Code }

func (Success) String() string      { return "success" }
func (TestFailure) String() string  { return "test failure" }
func (c BuildError) String() string { return fmt.Sprintf("build error (exit %d)", c.Code) }
func (c Timeout) String() string    { return fmt.Sprintf("timeout (exit %d)", c.Code) }
func (c Killed) String() string     { return fmt.Sprintf("killed by %s (exit %d)", c.Signal, c.Code) }
func (c Unknown) String() string    { return fmt.Sprintf("unknown exit %d", c.Code) }

func (Success) isClassification()     {}
func (TestFailure) isClassification() {}
func (BuildError) isClassification()  {}
func (Timeout) isClassification()     {}
func (Killed) isClassification()      {}
func (Unknown) isClassification()     {}

// Classify maps (exitCode, killed, signal) to exactly one classification.
// An empty signal means no signal was recorded. Rules are evaluated in order
// and the first match wins.
func Classify(exitCode int, killed bool, signal string) Classification {
	switch {
	case exitCode == ExitSuccess:
		return Success{}
	case exitCode == ExitTestFailure && !killed:
		return TestFailure{}
	case exitCode == ExitBuildError:
		return BuildError{Code: exitCode}
	case exitCode == ExitTimeout:
		return Timeout{Code: exitCode}
	case killed && signal != "":
		return Killed{Code: exitCode, Signal: signal}
	default:
		return Unknown{Code: exitCode}
	}
}

// FromOutcome classifies a process outcome.
func FromOutcome(o process.Outcome) Classification {
	return Classify(o.ExitCode, o.Killed, o.Signal)
}

// IsFailure reports whether c is anything other than Success.
func IsFailure(c Classification) bool {
	_, ok := c.(Success)
	return !ok
}
