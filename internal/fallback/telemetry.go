package fallback

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/gotestctl/internal/fallback"

// Metrics provides OpenTelemetry metrics for fallback decisions.
type Metrics struct {
	grantedTotal metric.Int64Counter
	deniedTotal  metric.Int64Counter

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

	m.grantedTotal, err = meter.Int64Counter(
		"fallback.granted.total",
		metric.WithDescription("Total number of fallbacks granted"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, err
	}

	m.deniedTotal, err = meter.Int64Counter(
		"fallback.denied.total",
		metric.WithDescription("Total number of fallback requests refused"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

func (m *Metrics) recordGranted(ctx context.Context, kind TriggerKind) {
	if m == nil || !m.initialized {
		return
	}
	m.grantedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", string(kind)),
	))
}

func (m *Metrics) recordDenied(ctx context.Context, reason string) {
	if m == nil || !m.initialized {
		return
	}
	m.deniedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
