// Package fallback owns the degradation history of one orchestration session
// and grants or refuses requests to move to a more conservative strategy.
package fallback

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
)

// State is the fallback history of one session.
//
// FallbackCount never exceeds the configured MaxRetries and always equals
// len(Triggers).
type State struct {
	OriginalStrategy strategy.Strategy `json:"original_strategy"`
	CurrentStrategy  strategy.Strategy `json:"current_strategy"`
	FallbackCount    int               `json:"fallback_count"`
	Triggers         []Trigger         `json:"triggers"`
	StartTime        time.Time         `json:"start_time"`
}

// Result is the answer to a fallback request.
type Result struct {
	Executed    bool
	NewStrategy strategy.Strategy
	Reason      string
}

// Coordinator grants or refuses fallbacks for a single session.
//
// A Coordinator carries no locking and must not be shared between sessions
// or used from multiple goroutines.
type Coordinator struct {
	cfg       Config
	sessionID string
	observer  Observer
	logger    *zap.Logger
	metrics   *Metrics
	now       func() time.Time

	state *State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver sets the sink notified of granted transitions.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l.Named("fallback")
		}
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSessionID tags transitions with the owning session.
func WithSessionID(id string) Option {
	return func(c *Coordinator) {
		c.sessionID = id
	}
}

// NewCoordinator creates a Coordinator. Call Initialize before requesting
// fallbacks.
func NewCoordinator(cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize starts a fresh history with original as the current strategy.
func (c *Coordinator) Initialize(original strategy.Strategy) {
	c.state = &State{
		OriginalStrategy: original,
		CurrentStrategy:  original,
		Triggers:         []Trigger{},
		StartTime:        c.now(),
	}
	c.logger.Debug("fallback coordinator initialized",
		zap.String("session_id", c.sessionID),
		zap.Stringer("strategy", original),
		zap.Int("max_retries", c.cfg.MaxRetries))
}

// ExecuteFallback records a move to next caused by trigger. The request is
// refused without touching the state when the coordinator is uninitialized or
// has already granted MaxRetries fallbacks. Enabled is not checked here;
// callers gate on CanFallback.
func (c *Coordinator) ExecuteFallback(ctx context.Context, trigger Trigger, next strategy.Strategy) Result {
	if reason, ok := c.refusal(); !ok {
		c.metrics.recordDenied(ctx, reason)
		c.logger.Info("fallback refused",
			zap.String("session_id", c.sessionID),
			zap.String("reason", reason),
			zap.Stringer("trigger", trigger))
		return Result{Executed: false, Reason: reason}
	}

	from := c.state.CurrentStrategy
	c.state.FallbackCount++
	c.state.Triggers = append(c.state.Triggers, trigger)
	c.state.CurrentStrategy = next

	c.metrics.recordGranted(ctx, trigger.Kind())
	c.logger.Info("fallback granted",
		zap.String("session_id", c.sessionID),
		zap.Stringer("from", from),
		zap.Stringer("to", next),
		zap.Stringer("trigger", trigger),
		zap.Int("count", c.state.FallbackCount))

	if c.observer != nil {
		c.observer.OnTransition(ctx, Transition{
			SessionID: c.sessionID,
			From:      from,
			To:        next,
			Trigger:   trigger,
			Count:     c.state.FallbackCount,
			At:        c.now(),
		})
	}

	return Result{
		Executed:    true,
		NewStrategy: next,
		Reason:      fmt.Sprintf("fallback from %s to %s", from, next),
	}
}

func (c *Coordinator) refusal() (string, bool) {
	switch {
	case c.state == nil:
		return ReasonNotInitialized, false
	case c.state.FallbackCount >= c.cfg.MaxRetries:
		return ReasonMaxRetriesExceeded, false
	default:
		return "", true
	}
}

// CanFallback reports whether another fallback would be granted.
func (c *Coordinator) CanFallback() bool {
	count := 0
	if c.state != nil {
		count = c.state.FallbackCount
	}
	return c.cfg.Enabled && count < c.cfg.MaxRetries
}

// History returns a copy of the recorded triggers, oldest first.
func (c *Coordinator) History() []Trigger {
	if c.state == nil {
		return nil
	}
	history := make([]Trigger, len(c.state.Triggers))
	copy(history, c.state.Triggers)
	return history
}

// State returns a copy of the current state. The boolean is false before
// Initialize and after Reset.
func (c *Coordinator) State() (State, bool) {
	if c.state == nil {
		return State{}, false
	}
	s := *c.state
	s.Triggers = c.History()
	return s, true
}

// Reset discards the state. Initialize must be called again before the next
// fallback request.
func (c *Coordinator) Reset() {
	c.state = nil
}
