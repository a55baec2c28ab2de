package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/embedd/internal/http"

// unmatchedEndpoint labels requests that hit no registered route, so
// clients requesting random paths cannot grow the label set.
const unmatchedEndpoint = "unmatched"

// HTTPMetrics records request counts, latency and response size per
// registered endpoint.
type HTTPMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// endpoints is filled by Track before the server starts and only read
	// while serving.
	endpoints map[string]struct{}

	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTPMetrics on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	m.endpoints = make(map[string]struct{})

	var err error
	m.requestsTotal, err = m.meter.Int64Counter(
		"embedd.http.requests_total",
		metric.WithDescription("HTTP requests by method, endpoint and status code"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	// Buckets span a cached health check up to a full batch on CPU.
	m.requestDur, err = m.meter.Float64Histogram(
		"embedd.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, endpoint and status code"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	// A 384 float vector is about 8KB of JSON; a 2048 input batch of 1024
	// floats approaches 40MB.
	m.responseSize, err = m.meter.Int64Histogram(
		"embedd.http.response_size_bytes",
		metric.WithDescription("HTTP response body size by method, endpoint and status code"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 1024, 8192, 65536, 262144, 1048576, 8388608, 41943040),
	)
	if err != nil {
		m.logger.Warn("failed to create response size histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"embedd.http.active_requests",
		metric.WithDescription("HTTP requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}
}

// Track adds registered routes to the endpoint label set.
func (m *HTTPMetrics) Track(routes ...string) {
	for _, r := range routes {
		m.endpoints[r] = struct{}{}
	}
}

// endpointLabel maps the matched route to a metric label.
func (m *HTTPMetrics) endpointLabel(route string) string {
	if _, ok := m.endpoints[route]; ok {
		return route
	}
	return unmatchedEndpoint
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
				defer m.activeRequests.Add(ctx, -1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", m.endpointLabel(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}

			return err
		}
	}
}
