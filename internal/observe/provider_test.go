package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

func TestInitProvider_ServesPrometheusMetrics(t *testing.T) {
	origMP := otel.GetMeterProvider()
	origTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	p, err := InitProvider(context.Background(), ProviderConfig{
		ServiceName: "mtgctx-test",
		Registry:    prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	require.NoError(t, err)
	m.RecordToolCall(context.Background(), "mtg.export.format", "ok")

	rec := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mtgctx_tool_calls")
	assert.Contains(t, rec.Body.String(), `tool="mtg.export.format"`)
}

func TestInitProvider_DefaultResourceSchemaMatches(t *testing.T) {
	origMP := otel.GetMeterProvider()
	origTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	assert.Equal(t, resource.Default().SchemaURL(), semconv.SchemaURL)

	p, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "1.2.3"})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}
