package decision

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/gotestctl/internal/classify"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
	"github.com/fyrsmithlabs/gotestctl/internal/target"
)

// ErrorContext is the execution state of one round as seen by Decide. It is
// built by the caller and passed by value.
type ErrorContext struct {
	Strategy        strategy.Strategy
	TargetsExecuted int
	TargetsFailed   int
	TotalTargets    int
	// Duration is the wall-clock time of the current round.
	Duration time.Duration
	// Timeout is the per-unit limit in force, reported in timeout triggers.
	Timeout      time.Duration
	ErrorHistory []ErrorRecord
}

// ErrorRate is TargetsFailed / TargetsExecuted, or 0 before anything ran.
func (c ErrorContext) ErrorRate() float64 {
	if c.TargetsExecuted == 0 {
		return 0
	}
	return float64(c.TargetsFailed) / float64(c.TargetsExecuted)
}

// ErrorRecord is one entry in the append-only failure log of a session.
type ErrorRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Target    string        `json:"target"`
	ExitCode  int           `json:"exit_code"`
	ErrorType classify.Kind `json:"error_type"`
	Message   string        `json:"message,omitempty"`
}

// NewErrorRecord builds a record for a failed unit covering targets.
func NewErrorRecord(at time.Time, targets []target.Target, c classify.Classification, message string) ErrorRecord {
	return ErrorRecord{
		Timestamp: at,
		Target:    describeTargets(targets),
		ExitCode:  c.ExitCode(),
		ErrorType: c.Kind(),
		Message:   message,
	}
}

func describeTargets(targets []target.Target) string {
	switch len(targets) {
	case 0:
		return ""
	case 1:
		return targets[0].String()
	default:
		return fmt.Sprintf("%s (+%d more)", targets[0], len(targets)-1)
	}
}
