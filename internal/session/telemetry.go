package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/gotestctl/internal/decision"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/gotestctl/internal/session"

// Metrics provides OpenTelemetry metrics for sessions.
type Metrics struct {
	// Counters
	sessionsTotal  metric.Int64Counter
	roundsTotal    metric.Int64Counter
	decisionsTotal metric.Int64Counter

	// Histograms
	sessionDuration metric.Float64Histogram
	unitDuration    metric.Float64Histogram

	initialized bool
}

// NewMetrics creates a new Metrics instance with the provided meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.sessionsTotal, err = meter.Int64Counter(
		"session.finished.total",
		metric.WithDescription("Total number of finished sessions by final status"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	m.roundsTotal, err = meter.Int64Counter(
		"session.rounds.total",
		metric.WithDescription("Total number of execution rounds by strategy"),
		metric.WithUnit("{round}"),
	)
	if err != nil {
		return nil, err
	}

	m.decisionsTotal, err = meter.Int64Counter(
		"session.decisions.total",
		metric.WithDescription("Total number of decisions by kind"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	m.sessionDuration, err = meter.Float64Histogram(
		"session.duration.seconds",
		metric.WithDescription("Duration of a session in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600),
	)
	if err != nil {
		return nil, err
	}

	m.unitDuration, err = meter.Float64Histogram(
		"session.unit.duration.seconds",
		metric.WithDescription("Duration of a unit invocation in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// Session IDs are kept out of metric attributes to bound cardinality; they
// are available on spans and logs.

func (m *Metrics) recordRound(ctx context.Context, strategyKind string) {
	if m == nil || !m.initialized {
		return
	}
	m.roundsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategyKind)))
}

func (m *Metrics) recordDecision(ctx context.Context, kind decision.Kind) {
	if m == nil || !m.initialized {
		return
	}
	m.decisionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", string(kind))))
}

func (m *Metrics) recordUnit(ctx context.Context, classification string, d time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	m.unitDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("classification", classification)))
}

func (m *Metrics) recordSession(ctx context.Context, status Status, d time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	m.sessionsTotal.Add(ctx, 1, attrs)
	m.sessionDuration.Record(ctx, d.Seconds(), attrs)
}
