// Package telemetry sets up OpenTelemetry tracing and metrics for gotestctl.
//
// When enabled, spans (session.run, runner.execute_item) and the session and
// fallback instruments are exported over OTLP, via gRPC or HTTP/protobuf, to
// a collector. Export failures never fail a test run: the instance degrades
// and the process-wide providers stay no-op.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Testing
//
// NewTestTelemetry records spans in memory and collects metrics through a
// manual reader:
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	tt.AssertSpanExists(t, "session.run")
package telemetry
