// Package telemetry provides OpenTelemetry tracing and metrics for embedd.
//
// New installs tracer and meter providers globally, so instruments created
// with otel.Meter and otel.Tracer elsewhere export over OTLP (gRPC or
// HTTP/protobuf) once telemetry is enabled:
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// When disabled, or when a provider cannot be built, instruments are no-ops
// and the service keeps running. Health reports the reason.
//
// Tests use TestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "pipeline.Embed")
//	span.End()
//	tt.AssertSpanExists(t, "pipeline.Embed")
package telemetry
