package session

import (
	"time"

	"github.com/fyrsmithlabs/gotestctl/internal/classify"
	"github.com/fyrsmithlabs/gotestctl/internal/decision"
	"github.com/fyrsmithlabs/gotestctl/internal/fallback"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
)

// Report summarises a finished session.
type Report struct {
	SessionID string        `json:"session_id"`
	State     State         `json:"-"`
	Status    Status        `json:"status"`
	ExitCode  int           `json:"exit_code"`
	Reason    string        `json:"reason"`
	Rounds    []RoundReport `json:"rounds"`
	// Fallbacks holds the trigger of every granted fallback, oldest first.
	Fallbacks []fallback.Trigger     `json:"fallbacks"`
	Errors    []decision.ErrorRecord `json:"errors"`
	// Trail lists every state the session passed through.
	Trail     []string      `json:"trail"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RoundReport describes one pass over the targets under a single strategy.
type RoundReport struct {
	Number   int               `json:"number"`
	Strategy strategy.Strategy `json:"-"`
	Name     string            `json:"strategy"`
	Units    []UnitReport      `json:"units"`
	Duration time.Duration     `json:"duration"`
}

// UnitReport is the evaluated outcome of one executed unit.
type UnitReport struct {
	Index          int           `json:"index"`
	Targets        []string      `json:"targets"`
	Args           []string      `json:"args"`
	ExitCode       int           `json:"exit_code"`
	Classification classify.Kind `json:"classification"`
	Decision       decision.Kind `json:"decision,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Failed reports whether any evaluated unit in the round failed.
func (r RoundReport) Failed() bool {
	for _, u := range r.Units {
		if u.Classification != classify.KindSuccess {
			return true
		}
	}
	return false
}
