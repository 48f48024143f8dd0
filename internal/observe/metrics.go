// Package observe provides application-wide observability primitives for
// mtgctx: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all mtgctx metrics.
const meterName = "github.com/MrWong99/mtgctx"

// Cache lookup outcomes recorded by [Metrics.RecordCacheLookup].
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
	CacheFill = "fill"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// UpstreamDuration tracks the latency of a single upstream HTTP request.
	UpstreamDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// RateLimitWait tracks time spent sleeping in the per-API rate limiter.
	// Use with attribute:
	//   attribute.String("api", ...)
	RateLimitWait metric.Float64Histogram

	// --- Counters ---

	// UpstreamRequests counts upstream API calls. Use with attributes:
	//   attribute.String("api", ...), attribute.String("status", ...)
	UpstreamRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// CacheLookups counts dataset cache lookups. Use with attributes:
	//   attribute.String("dataset", ...), attribute.String("result", ...)
	CacheLookups metric.Int64Counter

	// --- Error counters ---

	// UpstreamErrors counts failed upstream calls. Use with attributes:
	//   attribute.String("api", ...), attribute.String("kind", ...)
	UpstreamErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// upstream and tool latencies. Deck gathering fans out to dozens of rate
// limited calls, hence the long tail.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// waitBuckets covers rate limiter sleeps, which are bounded by queue depth
// times the configured interval.
var waitBuckets = []float64{
	0, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.UpstreamDuration, err = m.Float64Histogram("mtgctx.upstream.duration",
		metric.WithDescription("Latency of upstream API requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("mtgctx.tool_execution.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RateLimitWait, err = m.Float64Histogram("mtgctx.ratelimit.wait",
		metric.WithDescription("Time spent waiting for the per-API rate limiter."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(waitBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.UpstreamRequests, err = m.Int64Counter("mtgctx.upstream.requests",
		metric.WithDescription("Total upstream API requests by api and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("mtgctx.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("mtgctx.cache.lookups",
		metric.WithDescription("Total dataset cache lookups by dataset and result."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.UpstreamErrors, err = m.Int64Counter("mtgctx.upstream.errors",
		metric.WithDescription("Total upstream errors by api and error kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("mtgctx.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUpstreamRequest records one finished upstream request: the request
// counter and the latency histogram.
func (m *Metrics) RecordUpstreamRequest(ctx context.Context, api, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("api", api),
		attribute.String("status", status),
	)
	m.UpstreamRequests.Add(ctx, 1, attrs)
	m.UpstreamDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordUpstreamError records an upstream failure of the given kind.
func (m *Metrics) RecordUpstreamError(ctx context.Context, api, kind string) {
	m.UpstreamErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("api", api),
			attribute.String("kind", kind),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordCacheLookup records a dataset cache lookup. result is one of
// [CacheHit], [CacheMiss] or [CacheFill].
func (m *Metrics) RecordCacheLookup(ctx context.Context, dataset, result string) {
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("dataset", dataset),
			attribute.String("result", result),
		),
	)
}

// RecordRateLimitWait records the time a caller slept in the rate limiter.
// It has the signature expected by ratelimit.WithObserver.
func (m *Metrics) RecordRateLimitWait(ctx context.Context, api string, waited time.Duration) {
	m.RateLimitWait.Record(ctx, waited.Seconds(),
		metric.WithAttributes(attribute.String("api", api)),
	)
}
