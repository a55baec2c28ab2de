package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/embedd/internal/telemetry"
)

func newTestMetrics(t *testing.T) (*Metrics, *telemetry.TestTelemetry) {
	t.Helper()
	tt := telemetry.NewTestTelemetry()
	m := &Metrics{
		meter:  tt.Meter(embeddingsInstrumentationName),
		logger: zap.NewNop(),
	}
	m.init()
	return m, tt
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordExtraction(t *testing.T) {
	m, tt := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExtraction(ctx, "BAAI/bge-small-en-v1.5", "pooled", 10*time.Millisecond, 4, nil)
	m.RecordExtraction(ctx, "BAAI/bge-small-en-v1.5", "raw", 30*time.Millisecond, 6, nil)
	m.RecordExtraction(ctx, "BAAI/bge-small-en-v1.5", "pooled", 5*time.Millisecond, 0, errors.New("boom"))

	got := tt.Metrics(t)

	duration, ok := got["embedd.embedding.inference_duration_seconds"]
	if !ok {
		t.Fatal("duration histogram not found")
	}
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration is %T", duration.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("expected 3 duration recordings, got %d", count)
	}
	if len(hist.DataPoints) != 2 {
		t.Errorf("expected pooled and raw data points, got %d", len(hist.DataPoints))
	}

	if total := sumInt64(t, got["embedd.embedding.tokens_total"]); total != 10 {
		t.Errorf("expected 10 tokens, got %d", total)
	}
	if total := sumInt64(t, got["embedd.embedding.errors_total"]); total != 1 {
		t.Errorf("expected 1 error, got %d", total)
	}
}

func TestMetrics_RecordFallback(t *testing.T) {
	m, tt := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFallback(ctx, "intfloat/e5-small-v2")
	m.RecordFallback(ctx, "intfloat/e5-small-v2")

	got := tt.Metrics(t)
	if total := sumInt64(t, got["embedd.embedding.fallbacks_total"]); total != 2 {
		t.Errorf("expected 2 fallbacks, got %d", total)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordExtraction(context.Background(), "m", "pooled", time.Millisecond, 1, nil)
	m.RecordFallback(context.Background(), "m")
}
