package session

import (
	"fmt"

	"github.com/fyrsmithlabs/gotestctl/internal/fallback"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
)

// Status tags the session state variant.
type Status string

const (
	StatusRunning   Status = "running"
	StatusDegrading Status = "degrading"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// State is a node of the session state machine. Stopped and Completed are
// terminal.
type State interface {
	Status() Status
	String() string

	isState()
}

// Running executes rounds with Strategy.
type Running struct {
	Strategy strategy.Strategy
}

// Degrading waits for the coordinator to grant a fallback caused by Trigger.
type Degrading struct {
	Trigger fallback.Trigger
}

// Stopped ended the session with ExitCode.
type Stopped struct {
	ExitCode int
	Reason   string
}

// Completed ran a full round without failures.
type Completed struct{}

func (Running) Status() Status   { return StatusRunning }
func (Degrading) Status() Status { return StatusDegrading }
func (Stopped) Status() Status   { return StatusStopped }
func (Completed) Status() Status { return StatusCompleted }

func (Running) isState()   {}
func (Degrading) isState() {}
func (Stopped) isState()   {}
func (Completed) isState() {}

func (s Running) String() string   { return fmt.Sprintf("running %s", s.Strategy) }
func (s Degrading) String() string { return fmt.Sprintf("degrading: %s", s.Trigger) }
func (s Stopped) String() string   { return fmt.Sprintf("stopped (exit %d): %s", s.ExitCode, s.Reason) }
func (Completed) String() string   { return "completed" }

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s State) bool {
	switch s.(type) {
	case Stopped, Completed:
		return true
	default:
		return false
	}
}
