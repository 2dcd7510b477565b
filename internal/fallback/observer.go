package fallback

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
)

// Transition describes one granted fallback.
type Transition struct {
	SessionID string            `json:"session_id"`
	From      strategy.Strategy `json:"from"`
	To        strategy.Strategy `json:"to"`
	Trigger   Trigger           `json:"trigger"`
	Count     int               `json:"count"`
	At        time.Time         `json:"at"`
}

// Observer is notified of every granted fallback. Implementations must not
// block for long; they run on the session goroutine.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

// OnTransition calls f.
func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}

// Observers fans a transition out to each member in order.
type Observers []Observer

// OnTransition notifies every non-nil observer.
func (o Observers) OnTransition(ctx context.Context, t Transition) {
	for _, obs := range o {
		if obs != nil {
			obs.OnTransition(ctx, t)
		}
	}
}

// LogObserver writes transitions to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a LogObserver. A nil logger discards output.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

// OnTransition logs the from and to strategies.
func (o *LogObserver) OnTransition(_ context.Context, t Transition) {
	o.logger.Warn("degrading execution strategy",
		zap.String("session_id", t.SessionID),
		zap.String("from", describe(t.From)),
		zap.String("to", describe(t.To)),
		zap.String("trigger", describe(t.Trigger)),
		zap.Int("fallback_count", t.Count))
}

func describe(v interface{ String() string }) string {
	if v == nil {
		return "none"
	}
	return v.String()
}
