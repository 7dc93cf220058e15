package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			out[md.Name] = md
		}
	}
	return out
}

func TestAPIMetrics_RequestsByRouteAndStatus(t *testing.T) {
	reader := metric.NewManualReader()
	m := newAPIMetrics(metric.NewMeterProvider(metric.WithReader(reader)).Meter("test"), nil)

	e := echo.New()
	e.Use(m.middleware())
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/api/v1/query", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	})

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/query", nil),
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
	} {
		e.ServeHTTP(httptest.NewRecorder(), r)
	}

	metrics := collect(t, reader)
	requests, ok := metrics["ragctl.http.requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	byStatus := map[string]int64{}
	for _, dp := range requests.DataPoints {
		route, _ := dp.Attributes.Value("route")
		status, _ := dp.Attributes.Value("status")
		counts[route.AsString()+" "+status.AsString()] += dp.Value
		byStatus[status.AsString()] += dp.Value
	}
	assert.Equal(t, int64(2), counts["/health 200"])
	assert.Equal(t, int64(1), counts["/api/v1/query 400"])
	assert.Equal(t, int64(1), byStatus["404"])

	latency, ok := metrics["ragctl.http.request_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var observed uint64
	for _, dp := range latency.DataPoints {
		observed += dp.Count
	}
	assert.Equal(t, uint64(4), observed)

	inflight, ok := metrics["ragctl.http.inflight"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var active int64
	for _, dp := range inflight.DataPoints {
		active += dp.Value
	}
	assert.Zero(t, active)
}

func TestAPIMetrics_QueryResults(t *testing.T) {
	reader := metric.NewManualReader()
	m := newAPIMetrics(metric.NewMeterProvider(metric.WithReader(reader)).Meter("test"), nil)

	m.recordQuery(context.Background(), 3)
	m.recordQuery(context.Background(), 0)

	hist, ok := collect(t, reader)["ragctl.http.query_results"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, int64(3), hist.DataPoints[0].Sum)
}
