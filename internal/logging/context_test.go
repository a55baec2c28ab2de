package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func fieldValue(fields []zap.Field, key string) (zap.Field, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return zap.Field{}, false
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Trace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	fields := ContextFields(ctx)
	f, ok := fieldValue(fields, "trace_id")
	assert.True(t, ok)
	assert.Equal(t, traceID.String(), f.String)
	f, ok = fieldValue(fields, "span_id")
	assert.True(t, ok)
	assert.Equal(t, spanID.String(), f.String)
	_, ok = fieldValue(fields, "trace_sampled")
	assert.True(t, ok)
}

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		kept bool
	}{
		{"uuid", "3f0c2a4e-8d1b-4a47-9c55-0a1b2c3d4e5f", true},
		{"dotted", "req.42:a", true},
		{"empty", "", false},
		{"spaces", "has space", false},
		{"newline", "inject\nline", false},
		{"too long", strings.Repeat("a", maxIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithRequestID(context.Background(), tt.id)
			if tt.kept {
				assert.Equal(t, tt.id, RequestIDFromContext(ctx))
				f, ok := fieldValue(ContextFields(ctx), "request.id")
				assert.True(t, ok)
				assert.Equal(t, tt.id, f.String)
			} else {
				assert.Empty(t, RequestIDFromContext(ctx))
			}
		})
	}
}

func TestLogger_InContext(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func TestLogger_FromContextMissing(t *testing.T) {
	logger := FromContext(context.Background())
	assert.NotNil(t, logger)
	logger.Info(context.Background(), "discarded")
}
