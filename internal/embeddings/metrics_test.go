package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type constProvider struct {
	err error
}

func (c constProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), c.err
}
func (c constProvider) EmbedQuery(context.Context, string) ([]float32, error) { return nil, c.err }
func (c constProvider) Dimension() int                                        { return 2 }
func (c constProvider) ModelName() string                                     { return "const" }
func (c constProvider) Close() error                                          { return nil }

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestInstrument_RecordsCalls(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter(instrumentationName), nil)

	ctx := context.Background()
	ok := Instrument(constProvider{}, m)
	_, _ = ok.EmbedDocuments(ctx, []string{"a", "b", "c"})
	_, _ = ok.EmbedQuery(ctx, "q")

	failing := Instrument(constProvider{err: errors.New("boom")}, m)
	_, _ = failing.EmbedQuery(ctx, "q")

	data := collect(t, reader)

	hist, found := data["ragctl.embedding.duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, found)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.EqualValues(t, 3, count)

	errs, found := data["ragctl.embedding.errors_total"].(metricdata.Sum[int64])
	require.True(t, found)
	var total int64
	for _, dp := range errs.DataPoints {
		total += dp.Value
	}
	assert.EqualValues(t, 1, total)

	assert.Equal(t, "const", ok.ModelName())
	assert.Equal(t, 2, ok.Dimension())
}

func TestInstrument_NilMetrics(t *testing.T) {
	p := constProvider{}
	assert.Equal(t, Provider(p), Instrument(p, nil))
}
