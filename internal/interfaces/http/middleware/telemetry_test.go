package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// =============================================================================
// Tracing
// =============================================================================

func TestTracing_SpanEnricher(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(RequestID(), otelgin.Middleware("test", otelgin.WithTracerProvider(tp)), SpanEnricher())
	router.GET("/boom", func(c *gin.Context) {
		c.Set(AdminUsernameKey, "admin")
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	serve(router, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "req-42", attrs["request_id"])
	assert.Equal(t, "admin", attrs["admin.username"])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(Tracing("test", false), SpanEnricher())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest("GET", "/ok", nil)).Code)
}

// =============================================================================
// Profiling
// =============================================================================

func TestProfiling(t *testing.T) {
	router := gin.New()
	router.Use(Profiling(true))
	var sawCtx bool
	router.GET("/api/v1/orders/:id", func(c *gin.Context) {
		sawCtx = c.Request.Context() != nil
		c.Status(http.StatusOK)
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest("GET", "/api/v1/orders/1", nil)).Code)
	assert.True(t, sawCtx)
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest("GET", "/health", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, httptest.NewRequest("GET", "/missing", nil)).Code)

	assert.True(t, skipProfiling("/swagger/*any"))
	assert.True(t, skipProfiling("/health"))
	assert.False(t, skipProfiling("/api/v1/orders"))
}

// =============================================================================
// Metrics
// =============================================================================

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mw, err := HTTPMetrics(provider.Meter("test"))
	require.NoError(t, err)

	router := gin.New()
	router.Use(mw)
	router.GET("/api/v1/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, httptest.NewRequest("GET", "/api/v1/orders/1", nil))
	serve(router, httptest.NewRequest("GET", "/api/v1/orders/2", nil))
	serve(router, httptest.NewRequest("GET", "/nope", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byRoute := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.requests" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				byRoute[route.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"/api/v1/orders/:id": 2, "unmatched": 1}, byRoute)
}
