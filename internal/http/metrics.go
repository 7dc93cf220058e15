package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const meterName = "github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/http"

// apiMetrics records per-route traffic and the size of query answers.
type apiMetrics struct {
	requests     metric.Int64Counter
	latency      metric.Float64Histogram
	inflight     metric.Int64UpDownCounter
	queryResults metric.Int64Histogram
}

func newAPIMetrics(meter metric.Meter, logger *zap.Logger) *apiMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := noop.NewMeterProvider().Meter(meterName)
	warn := func(name string, err error) {
		logger.Warn("api metric unavailable", zap.String("metric", name), zap.Error(err))
	}

	m := &apiMetrics{}
	var err error
	if m.requests, err = meter.Int64Counter("ragctl.http.requests",
		metric.WithDescription("API requests by method, route and status"),
		metric.WithUnit("{request}")); err != nil {
		warn("requests", err)
		m.requests, _ = fallback.Int64Counter("requests")
	}
	// upper buckets cover whole ingest runs
	if m.latency, err = meter.Float64Histogram("ragctl.http.request_seconds",
		metric.WithDescription("API request latency by method and route"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600)); err != nil {
		warn("request_seconds", err)
		m.latency, _ = fallback.Float64Histogram("request_seconds")
	}
	if m.inflight, err = meter.Int64UpDownCounter("ragctl.http.inflight",
		metric.WithDescription("API requests being served"),
		metric.WithUnit("{request}")); err != nil {
		warn("inflight", err)
		m.inflight, _ = fallback.Int64UpDownCounter("inflight")
	}
	if m.queryResults, err = meter.Int64Histogram("ragctl.http.query_results",
		metric.WithDescription("Chunks returned per query; zero means nothing was under the threshold"),
		metric.WithUnit("{chunk}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10, 20)); err != nil {
		warn("query_results", err)
		m.queryResults, _ = fallback.Int64Histogram("query_results")
	}
	return m
}

// middleware records every request under its registered route, so
// unmatched paths all count as "unmatched".
func (m *apiMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			m.inflight.Add(ctx, 1)
			defer m.inflight.Add(ctx, -1)

			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			route := attribute.String("route", path)
			method := attribute.String("method", c.Request().Method)
			m.requests.Add(ctx, 1, metric.WithAttributes(method, route, attribute.String("status", strconv.Itoa(statusOf(c, err)))))
			m.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(method, route))
			return err
		}
	}
}

// statusOf returns the status the echo error handler will write for err.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func (m *apiMetrics) recordQuery(ctx context.Context, results int) {
	m.queryResults.Record(ctx, int64(results))
}

func defaultAPIMetrics(logger *zap.Logger) *apiMetrics {
	return newAPIMetrics(otel.Meter(meterName), logger)
}
