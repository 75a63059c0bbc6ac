package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const streamRoute = "GET /api/stream/appointments"

// resourceIDAttributes maps a route prefix to the span attribute carrying its {id}
var resourceIDAttributes = []struct {
	prefix    string
	attribute string
}{
	{"/api/appointments/", "booking.appointment_id"},
	{"/api/patients/", "booking.patient_id"},
	{"/api/doctor-appointments/", "booking.doctor_appointment_id"},
}

// ObservabilityMiddleware adds OpenTelemetry tracing and metrics to HTTP requests
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Renamed to the matched route once the mux has run
			ctx, span := observability.StartSpan(r.Context(), "HTTP "+r.Method)
			defer span.End()

			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.user_agent", r.UserAgent()),
			)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			req := r.WithContext(ctx)

			start := time.Now()
			next.ServeHTTP(rw, req)
			duration := time.Since(start)

			// Use route pattern instead of raw path to avoid high cardinality
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			span.SetName(route)
			observability.SetSpanAttributes(span, attribute.String("http.route", route))
			observability.SetSpanAttributes(span, bookingAttributes(req, route)...)
			observability.SetSpanAttributes(span, attribute.Int("http.status_code", rw.statusCode))
			if rw.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			}

			// A stream stays open until the client leaves; its duration is not a latency
			if route == streamRoute {
				return
			}
			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, duration)
		})
	}
}

// bookingAttributes describes which booking resource a request touched
func bookingAttributes(r *http.Request, route string) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	if id := r.PathValue("id"); id != "" {
		path := strings.TrimPrefix(route, r.Method+" ")
		for _, res := range resourceIDAttributes {
			if strings.HasPrefix(path, res.prefix) {
				attrs = append(attrs, attribute.String(res.attribute, id))
				break
			}
		}
	}
	if department := r.URL.Query().Get("department"); department != "" {
		attrs = append(attrs, attribute.String("booking.department", department))
	}
	if state := r.URL.Query().Get("state"); state != "" {
		attrs = append(attrs, attribute.String("booking.state", state))
	}
	return attrs
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Flush lets the SSE handler push frames through the wrapper
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
