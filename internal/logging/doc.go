// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stderr + OpenTelemetry log bridge)
//   - Automatic context field injection (trace_id, span_id, session.id)
//   - Optional level-aware sampling (errors never sampled)
//
// Logs go to stderr so that the session report on stdout stays machine
// readable with --json.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "session finished", zap.Int("exit_code", code))
//
// Domain packages take a plain *zap.Logger; pass Underlying() to them.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Warn(ctx, "degrading execution strategy")
//	tl.AssertLogged(t, zapcore.WarnLevel, "degrading")
package logging
