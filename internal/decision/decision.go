// Package decision turns a classified outcome and the accumulated round state
// into the next step for a session: continue, stop, or fall back.
package decision

import (
	"fmt"

	"github.com/fyrsmithlabs/gotestctl/internal/classify"
	"github.com/fyrsmithlabs/gotestctl/internal/fallback"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
)

// ErrorThreshold is the failure rate above which a round degrades to the
// next strategy on the ladder.
const ErrorThreshold = 0.5

// MinExecutedForThreshold is the number of executed targets required before
// ErrorThreshold is applied.
const MinExecutedForThreshold = 3

// Kind tags the decision variant.
type Kind string

const (
	KindContinue Kind = "continue"
	KindStop     Kind = "stop"
	KindFallback Kind = "fallback"
)

// Decision is the outcome of Decide.
type Decision interface {
	Kind() Kind
	String() string

	isDecision()
}

// Continue keeps the current strategy.
type Continue struct {
	Reason string
}

// Stop ends the session with ExitCode.
type Stop struct {
	Reason   string
	ExitCode int
}

// Fallback asks the coordinator to move to NewStrategy.
type Fallback struct {
	NewStrategy strategy.Strategy
	Trigger     fallback.Trigger
}

func (Continue) Kind() Kind { return KindContinue }
func (Stop) Kind() Kind     { return KindStop }
func (Fallback) Kind() Kind { return KindFallback }

func (Continue) isDecision() {}
func (Stop) isDecision()     {}
func (Fallback) isDecision() {}

func (d Continue) String() string { return "continue: " + d.Reason }
func (d Stop) String() string     { return fmt.Sprintf("stop (exit %d): %s", d.ExitCode, d.Reason) }
func (d Fallback) String() string { return fmt.Sprintf("fallback to %s: %s", d.NewStrategy, d.Trigger) }

const (
	reasonSuccess      = "target succeeded"
	reasonBuildError   = "build error"
	reasonTimeout      = "timeout"
	reasonFirstError   = "first error in file-by-file mode"
	reasonTolerated    = "failure tolerated under current strategy"
	reasonSignal       = "terminated by signal"
	reasonUnrecognised = "unrecognised exit code"
	reasonUnclassified = "unclassified outcome"
)

// Decide returns the next step for a session. It has no side effects and
// the same arguments always yield the same Decision.
func Decide(c classify.Classification, ec ErrorContext, cfg fallback.Config) Decision {
	switch v := c.(type) {
	case classify.Success:
		return Continue{Reason: reasonSuccess}

	case classify.BuildError:
		return Stop{Reason: reasonBuildError, ExitCode: v.Code}

	case classify.Timeout:
		if _, ok := ec.Strategy.(strategy.AllAtOnce); ok && cfg.Enabled {
			return Fallback{
				NewStrategy: strategy.DirectoryByDirectory{MaxConcurrency: 3},
				Trigger:     fallback.TimeoutExceeded{Duration: ec.Duration, Limit: ec.Timeout},
			}
		}
		return Stop{Reason: reasonTimeout, ExitCode: v.Code}

	case classify.TestFailure:
		return decideTestFailure(ec)

	case classify.Killed:
		return Stop{Reason: reasonSignal, ExitCode: v.Code}

	case classify.Unknown:
		return Stop{Reason: fmt.Sprintf("%s %d", reasonUnrecognised, v.Code), ExitCode: v.Code}

	default:
		code := classify.ExitTestFailure
		if c != nil {
			code = c.ExitCode()
		}
		return Stop{Reason: reasonUnclassified, ExitCode: code}
	}
}

// decideTestFailure applies the failure-rate rules. Whether a fallback it
// asks for is taken is decided by the coordinator.
func decideTestFailure(ec ErrorContext) Decision {
	rate := ec.ErrorRate()
	_, allAtOnce := ec.Strategy.(strategy.AllAtOnce)

	if rate == 1 && allAtOnce {
		return Fallback{
			NewStrategy: strategy.DirectoryByDirectory{MaxConcurrency: 5},
			Trigger:     fallback.AllFailed{TotalPackages: ec.TotalTargets},
		}
	}
	if rate > ErrorThreshold && ec.TargetsExecuted >= MinExecutedForThreshold {
		if next, ok := strategy.Next(ec.Strategy); ok {
			return Fallback{
				NewStrategy: next,
				Trigger:     fallback.ErrorThresholdExceeded{ErrorRate: rate, Threshold: ErrorThreshold},
			}
		}
	}

	if s, ok := ec.Strategy.(strategy.FileByFile); ok && s.StopOnFirstError {
		return Stop{Reason: reasonFirstError, ExitCode: classify.ExitTestFailure}
	}
	return Continue{Reason: reasonTolerated}
}
