// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - dual output (stdout and OpenTelemetry)
//   - request and trace correlation taken from the context
//   - redaction of backend API keys and authorization values
//   - per-level sampling, errors never sampled
//
// Create a logger from the service settings:
//
//	cfg, err := logging.FromSettings(settings.Logging, otelEnabled)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithRequestID(ctx, "9b2f...")
//	logger.Info(ctx, "embedded batch", zap.Int("count", n))
//
// Use TestLogger in tests:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//
// Logger is safe for concurrent use. Child loggers (With, Named) do not
// affect the parent.
package logging
