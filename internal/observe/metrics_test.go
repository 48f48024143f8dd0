package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumWhere returns the value of the first int64 sum data point carrying the
// attribute key=value.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	require.NotNil(t, met, "metric %q not found", name)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %q is not a sum", name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	assert.NotNil(t, m)
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"mtgctx.upstream.duration", m.UpstreamDuration},
		{"mtgctx.tool_execution.duration", m.ToolExecutionDuration},
		{"mtgctx.ratelimit.wait", m.RateLimitWait},
		{"mtgctx.http.request.duration", m.HTTPRequestDuration},
	}
	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			require.NotNil(t, met)
			hist, ok := met.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			require.NotEmpty(t, hist.DataPoints)
			assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
		})
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUpstreamRequest(ctx, "scryfall", "200", 40*time.Millisecond)
	m.RecordUpstreamRequest(ctx, "scryfall", "200", 60*time.Millisecond)
	m.RecordUpstreamRequest(ctx, "scryfall", "404", 10*time.Millisecond)

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumWhere(t, rm, "mtgctx.upstream.requests", "status", "200"))
	assert.Equal(t, int64(1), sumWhere(t, rm, "mtgctx.upstream.requests", "status", "404"))

	met := findMetric(rm, "mtgctx.upstream.duration")
	require.NotNil(t, met)
	hist := met.Data.(metricdata.Histogram[float64])
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(3), total)
}

func TestRecordUpstreamError(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordUpstreamError(context.Background(), "moxfield", "transport_error")

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumWhere(t, rm, "mtgctx.upstream.errors", "kind", "transport_error"))
}

func TestRecordToolCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "mtg.rules.search", "ok")
	m.RecordToolCall(ctx, "mtg.rules.search", "error")

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumWhere(t, rm, "mtgctx.tool.calls", "status", "ok"))
	assert.Equal(t, int64(1), sumWhere(t, rm, "mtgctx.tool.calls", "status", "error"))
}

func TestRecordCacheLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, "banned_cards", CacheMiss)
	m.RecordCacheLookup(ctx, "banned_cards", CacheFill)
	m.RecordCacheLookup(ctx, "banned_cards", CacheHit)
	m.RecordCacheLookup(ctx, "banned_cards", CacheHit)

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumWhere(t, rm, "mtgctx.cache.lookups", "result", CacheHit))
	assert.Equal(t, int64(1), sumWhere(t, rm, "mtgctx.cache.lookups", "result", CacheMiss))
	assert.Equal(t, int64(1), sumWhere(t, rm, "mtgctx.cache.lookups", "result", CacheFill))
}

func TestRecordRateLimitWait(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRateLimitWait(context.Background(), "archidekt", 100*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "mtgctx.ratelimit.wait")
	require.NotNil(t, met)
	hist := met.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 0.1, hist.DataPoints[0].Sum, 1e-9)
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, DefaultMetrics(), DefaultMetrics())
}
