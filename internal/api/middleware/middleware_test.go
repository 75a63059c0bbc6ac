package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCORSMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("wildcard", func(t *testing.T) {
		handler := CORSMiddleware(nil)(ok)
		req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		req.Header.Set("Origin", "https://desk.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("listed origin is echoed", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://desk.example.com"})(ok)
		req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		req.Header.Set("Origin", "https://desk.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "https://desk.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("other origin gets no allow header", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://desk.example.com"})(ok)
		req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		handler := CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		req := httptest.NewRequest(http.MethodOptions, "/api/appointments", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/appointments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := LoggingMiddleware(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/appt-9", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "GET /api/appointments/{id}", entry["route"])
	assert.Equal(t, "/api/appointments/appt-9", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.Equal(t, "http request", entry["message"])
}

func TestObservabilityMiddleware_NilMetrics(t *testing.T) {
	handler := ObservabilityMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/patients", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func bookingMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/appointments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /api/appointments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /api/stream/appointments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestObservabilityMiddleware_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	handler := ObservabilityMiddleware(nil)(LoggingMiddleware(bookingMux()))

	t.Run("named after the matched route with the booking id", func(t *testing.T) {
		exporter.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/appointments/a1?department=ip", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		spans := exporter.GetSpans().Snapshots()
		require.Len(t, spans, 1)
		assert.Equal(t, "GET /api/appointments/{id}", spans[0].Name())

		attrs := spanAttributes(spans[0])
		assert.Equal(t, "GET /api/appointments/{id}", attrs["http.route"].AsString())
		assert.Equal(t, "a1", attrs["booking.appointment_id"].AsString())
		assert.Equal(t, "ip", attrs["booking.department"].AsString())
		assert.Equal(t, int64(http.StatusNotFound), attrs["http.status_code"].AsInt64())
		assert.Equal(t, codes.Unset, spans[0].Status().Code)
	})

	t.Run("server errors mark the span", func(t *testing.T) {
		exporter.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/appointments?state=booked", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		spans := exporter.GetSpans().Snapshots()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, "booked", spanAttributes(spans[0])["booking.state"].AsString())
	})

	t.Run("unmatched paths share one route", func(t *testing.T) {
		exporter.Reset()
		req := httptest.NewRequest(http.MethodGet, "/no/such/path/123", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		spans := exporter.GetSpans().Snapshots()
		require.Len(t, spans, 1)
		assert.Equal(t, "unmatched", spans[0].Name())
	})
}

func TestObservabilityMiddleware_StreamsStayOutOfRequestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	metrics, err := observability.InitMetrics()
	require.NoError(t, err)
	handler := ObservabilityMiddleware(metrics)(bookingMux())

	for _, path := range []string{"/api/appointments/a1", "/api/stream/appointments"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var routes []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "http.server.request.count" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				routes = append(routes, route.AsString())
			}
		}
	}
	assert.Equal(t, []string{"GET /api/appointments/{id}"}, routes)
}
