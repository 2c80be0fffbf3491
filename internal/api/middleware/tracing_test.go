package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/lungbuddy/lungbuddy/internal/api/middleware"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func TestTracing_ServerSpan(t *testing.T) {
	sr := installRecorder(t)

	h := middleware.Tracing("lungbuddy-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusNotFound)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/air-quality?city=Delhi", http.NoBody)
	req.Header.Set("User-Agent", "lungbuddy-android/3.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	span := onlySpan(t, sr)
	assert.Equal(t, "GET /v1/air-quality", span.Name(), "no router, so the raw path is kept")
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())

	a := attrs(span)
	assert.Equal(t, "lungbuddy-api", a["service.name"].AsString())
	assert.Equal(t, "GET", a["http.request.method"].AsString())
	assert.Equal(t, "/v1/air-quality", a["url.path"].AsString())
	assert.Equal(t, "http", a["url.scheme"].AsString())
	assert.Equal(t, "lungbuddy-android/3.0", a["user_agent.original"].AsString())
	assert.Equal(t, int64(404), a["http.response.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code, "4xx is not a server error")
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	sr := installRecorder(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/assessments", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	req.Header.Set("X-Forwarded-Proto", "https")
	middleware.Tracing("lungbuddy-api")(okHandler).ServeHTTP(httptest.NewRecorder(), req)

	span := onlySpan(t, sr)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", span.Parent().SpanID().String())
	assert.Equal(t, "https", attrs(span)["url.scheme"].AsString())
}

func TestTracing_ServerErrorStatus(t *testing.T) {
	sr := installRecorder(t)

	h := middleware.Tracing("lungbuddy-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/rooms", http.NoBody))

	status := onlySpan(t, sr).Status()
	assert.Equal(t, codes.Error, status.Code)
	assert.Equal(t, "Bad Gateway", status.Description)
}

func TestTracing_RequestIDAttribute(t *testing.T) {
	sr := installRecorder(t)

	rec := httptest.NewRecorder()
	middleware.RequestID(middleware.Tracing("lungbuddy-api")(okHandler)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms", http.NoBody))

	assert.Equal(t, rec.Header().Get("X-Request-Id"), attrs(onlySpan(t, sr))["request.id"].AsString())
}

func TestTracing_RenamesToRoutePattern(t *testing.T) {
	sr := installRecorder(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing("lungbuddy-api"))
	r.Get("/v1/rooms/{roomId}/leaderboard", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/rooms/room_123/leaderboard", http.NoBody))

	span := onlySpan(t, sr)
	assert.Equal(t, "GET /v1/rooms/{roomId}/leaderboard", span.Name())
	assert.Equal(t, "/v1/rooms/{roomId}/leaderboard", attrs(span)["http.route"].AsString())
}
