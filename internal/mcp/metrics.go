package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/embeddings"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/ingestion"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/retrieval"
	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/vectorstore"
)

const meterName = "github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/mcp"

// Outcomes recorded per tool call.
const (
	outcomeOK            = "ok"
	outcomeInvalidInput  = "invalid_input"
	outcomeBusy          = "ingest_busy"
	outcomeNotDirectory  = "not_directory"
	outcomeCanceled      = "canceled"
	outcomeModelMismatch = "model_mismatch"
	outcomeEmbedding     = "embedding_error"
	outcomeStore         = "store_error"
	outcomeInternal      = "internal_error"
)

// Metrics counts tool calls by outcome and tracks how much context each
// rag_query hands back.
type Metrics struct {
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
	inflight metric.Int64UpDownCounter
	hits     metric.Int64Histogram
}

// NewMetrics registers the tool instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(meterName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := noop.NewMeterProvider().Meter(meterName)
	warn := func(name string, err error) {
		logger.Warn("tool metric unavailable", zap.String("metric", name), zap.Error(err))
	}

	m := &Metrics{}
	var err error
	if m.calls, err = meter.Int64Counter("ragctl.mcp.tool.calls",
		metric.WithDescription("Tool calls by tool and outcome"),
		metric.WithUnit("{call}")); err != nil {
		warn("calls", err)
		m.calls, _ = fallback.Int64Counter("calls")
	}
	if m.latency, err = meter.Float64Histogram("ragctl.mcp.tool.seconds",
		metric.WithDescription("Tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600)); err != nil {
		warn("seconds", err)
		m.latency, _ = fallback.Float64Histogram("seconds")
	}
	if m.inflight, err = meter.Int64UpDownCounter("ragctl.mcp.tool.inflight",
		metric.WithDescription("Tool calls being served"),
		metric.WithUnit("{call}")); err != nil {
		warn("inflight", err)
		m.inflight, _ = fallback.Int64UpDownCounter("inflight")
	}
	if m.hits, err = meter.Int64Histogram("ragctl.mcp.query.hits",
		metric.WithDescription("Chunks returned by rag_query"),
		metric.WithUnit("{chunk}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 10, 20)); err != nil {
		warn("hits", err)
		m.hits, _ = fallback.Int64Histogram("hits")
	}
	return m
}

// start marks a call in flight. The returned func records its outcome.
func (m *Metrics) start(ctx context.Context, tool string) func(error) {
	begin := time.Now()
	toolAttr := attribute.String("tool", tool)
	m.inflight.Add(ctx, 1, metric.WithAttributes(toolAttr))
	return func(err error) {
		m.inflight.Add(ctx, -1, metric.WithAttributes(toolAttr))
		m.latency.Record(ctx, time.Since(begin).Seconds(), metric.WithAttributes(toolAttr))
		m.calls.Add(ctx, 1, metric.WithAttributes(toolAttr, attribute.String("outcome", outcome(err))))
	}
}

func (m *Metrics) recordHits(ctx context.Context, n int) {
	m.hits.Record(ctx, int64(n))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, errInvalidInput), errors.Is(err, retrieval.ErrEmptyQuery):
		return outcomeInvalidInput
	case errors.Is(err, errIngestBusy):
		return outcomeBusy
	case errors.Is(err, ingestion.ErrNotDirectory):
		return outcomeNotDirectory
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	case errors.Is(err, vectorstore.ErrEmbeddingMismatch):
		return outcomeModelMismatch
	case errors.Is(err, embeddings.ErrEmbeddingFailed), errors.Is(err, vectorstore.ErrEmbeddingFailed):
		return outcomeEmbedding
	case errors.Is(err, vectorstore.ErrCollectionNotFound), errors.Is(err, vectorstore.ErrConnectionFailed):
		return outcomeStore
	default:
		return outcomeInternal
	}
}
