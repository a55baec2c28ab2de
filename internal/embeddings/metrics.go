package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/embedd/internal/embeddings"

// Metrics holds all embedding-related metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	tokens    metric.Int64Counter
	fallbacks metric.Int64Counter
	errors    metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for embeddings.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(embeddingsInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"embedd.embedding.inference_duration_seconds",
		metric.WithDescription("Duration of a single text embedding in seconds, labeled by model and path (pooled when the backend pooled the output, raw when pooling ran locally)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.tokens, err = m.meter.Int64Counter(
		"embedd.embedding.tokens_total",
		metric.WithDescription("Total input tokens consumed by embedding requests, labeled by model"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		m.logger.Warn("failed to create tokens counter", zap.Error(err))
	}

	m.fallbacks, err = m.meter.Int64Counter(
		"embedd.embedding.fallbacks_total",
		metric.WithDescription("Number of times the backend could not return pooled output and the raw tensor was pooled locally"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		m.logger.Warn("failed to create fallbacks counter", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"embedd.embedding.errors_total",
		metric.WithDescription("Total embedding failures by model and path. Includes backend faults and unexpected tensor shapes."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordExtraction records one embedding attempt.
func (m *Metrics) RecordExtraction(ctx context.Context, model, path string, duration time.Duration, tokens int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("path", path),
	}

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	if err != nil {
		if m.errors != nil {
			m.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
		return
	}

	if tokens > 0 && m.tokens != nil {
		m.tokens.Add(ctx, int64(tokens), metric.WithAttributes(attribute.String("model", model)))
	}
}

// RecordFallback records a switch from the pooled path to the raw path.
func (m *Metrics) RecordFallback(ctx context.Context, model string) {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
}
