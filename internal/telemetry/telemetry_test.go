package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/gotestctl/internal/config"
)

// restoreGlobals puts back the process-wide providers New replaces.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_EnabledInstallsProviders(t *testing.T) {
	restoreGlobals(t)

	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.ServiceVersion = "v0.3.0"

	ctx := context.Background()
	tel, err := New(ctx, cfg, WithSpanExporter(exporter), WithMetricReader(reader))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	_, span := otel.Tracer("gotestctl/test").Start(ctx, "session.run")
	span.End()

	counter, err := otel.Meter("gotestctl/test").Int64Counter("session.rounds.total")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	require.NoError(t, tel.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "session.run", spans[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.version", "v0.3.0"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	var rounds *metricdata.Metrics
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == "session.rounds.total" {
				rounds = &sm.Metrics[i]
			}
		}
	}
	require.NotNil(t, rounds)
	sum, ok := rounds.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.IsEnabled())
}

func TestNew_MetricsDisabled(t *testing.T) {
	restoreGlobals(t)

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.Enabled = false

	tel, err := New(context.Background(), cfg, WithSpanExporter(tracetest.NewInMemoryExporter()))
	require.NoError(t, err)
	assert.Nil(t, tel.meterProvider)
	assert.NotNil(t, tel.tracerProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_ShutdownUsesConfiguredTimeout(t *testing.T) {
	tt := NewTestTelemetry()
	tt.config.Shutdown.Timeout = config.Duration(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, tt.Shutdown(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, tt.Health().Healthy)
}

func TestTelemetry_Degraded(t *testing.T) {
	tel := &Telemetry{config: NewDefaultConfig()}
	tel.healthy.Store(true)
	tel.setDegraded("meter provider failed: %v", "boom")

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.True(t, health.Degraded)
	assert.Equal(t, []string{"meter provider failed: boom"}, health.Reasons)
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: false, Degraded: true}, tel.Health())
}

func TestTestTelemetry_Spans(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "runner.execute_item")
	span.SetAttributes(
		attribute.String("runner.mode", "parallel"),
		attribute.Int("runner.index", 3),
		attribute.Bool("runner.failed", true),
	)
	span.End()

	tt.AssertSpanExists(t, "runner.execute_item")
	tt.AssertSpanAttribute(t, "runner.execute_item", "runner.mode", "parallel")
	tt.AssertSpanAttribute(t, "runner.execute_item", "runner.index", int64(3))
	tt.AssertSpanAttribute(t, "runner.execute_item", "runner.failed", true)
	assert.Nil(t, tt.SpanByName("missing"))
	assert.Equal(t, []string{"runner.execute_item"}, tt.spanNames())
}

func TestTestTelemetry_Metrics(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	hist, err := tt.Meter("test").Float64Histogram("session.duration.seconds")
	require.NoError(t, err)
	hist.Record(ctx, 1.5)

	m, ok := tt.MetricByName(ctx, "session.duration.seconds")
	require.True(t, ok)
	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Equal(t, uint64(1), data.DataPoints[0].Count)

	_, ok = tt.MetricByName(ctx, "missing")
	assert.False(t, ok)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4317", stripScheme("otel:4317"))
}
