// Package events publishes session lifecycle events to NATS.
//
// Events are published to subjects:
//   - {prefix}.sessions.{session_id}.fallback
//   - {prefix}.sessions.{session_id}.finished
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/fallback"
	"github.com/fyrsmithlabs/gotestctl/internal/session"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "gotestctl"

// FallbackEvent is the payload of a fallback transition.
type FallbackEvent struct {
	SessionID   string               `json:"session_id"`
	From        string               `json:"from"`
	FromKind    string               `json:"from_kind"`
	To          string               `json:"to"`
	ToKind      string               `json:"to_kind"`
	Trigger     string               `json:"trigger"`
	TriggerKind fallback.TriggerKind `json:"trigger_kind"`
	Count       int                  `json:"count"`
	At          time.Time            `json:"at"`
}

// FinishedEvent is the payload published when a session ends.
type FinishedEvent struct {
	SessionID string         `json:"session_id"`
	Status    session.Status `json:"status"`
	ExitCode  int            `json:"exit_code"`
	Reason    string         `json:"reason"`
	Rounds    int            `json:"rounds"`
	Fallbacks int            `json:"fallbacks"`
	Errors    int            `json:"errors"`
	Duration  time.Duration  `json:"duration"`
}

// Publisher sends session events over a NATS connection. It implements
// fallback.Observer.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect opens a NATS connection named for this tool.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("gotestctl"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// NewPublisher creates a Publisher. An empty prefix uses DefaultSubjectPrefix.
func NewPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger.Named("events")}
}

// FallbackSubject returns the subject fallback events for sessionID go to.
func (p *Publisher) FallbackSubject(sessionID string) string {
	return fmt.Sprintf("%s.sessions.%s.fallback", p.prefix, sessionID)
}

// FinishedSubject returns the subject the final summary for sessionID goes to.
func (p *Publisher) FinishedSubject(sessionID string) string {
	return fmt.Sprintf("%s.sessions.%s.finished", p.prefix, sessionID)
}

// OnTransition publishes t. Observers cannot fail a session, so publish
// errors are logged and dropped.
func (p *Publisher) OnTransition(_ context.Context, t fallback.Transition) {
	ev := FallbackEvent{
		SessionID: t.SessionID,
		Count:     t.Count,
		At:        t.At,
	}
	if t.From != nil {
		ev.From, ev.FromKind = t.From.String(), string(t.From.Kind())
	}
	if t.To != nil {
		ev.To, ev.ToKind = t.To.String(), string(t.To.Kind())
	}
	if t.Trigger != nil {
		ev.Trigger, ev.TriggerKind = t.Trigger.String(), t.Trigger.Kind()
	}

	if err := p.publish(p.FallbackSubject(t.SessionID), ev); err != nil {
		p.logger.Warn("failed to publish fallback event",
			zap.String("session_id", t.SessionID),
			zap.Error(err))
	}
}

// PublishFinished publishes the summary of a finished session.
func (p *Publisher) PublishFinished(r *session.Report) error {
	if r == nil {
		return fmt.Errorf("publish finished event: nil report")
	}
	return p.publish(p.FinishedSubject(r.SessionID), FinishedEvent{
		SessionID: r.SessionID,
		Status:    r.Status,
		ExitCode:  r.ExitCode,
		Reason:    r.Reason,
		Rounds:    len(r.Rounds),
		Fallbacks: len(r.Fallbacks),
		Errors:    len(r.Errors),
		Duration:  r.Duration,
	})
}

func (p *Publisher) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Flush waits until published events reach the server.
func (p *Publisher) Flush() error {
	return p.nc.Flush()
}
