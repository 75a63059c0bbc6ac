package routes

import (
	"net/http"

	"github.com/zatekoja/clinicbooking/internal/api/handlers"
	"github.com/zatekoja/clinicbooking/internal/api/middleware"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	appointmentHandler *handlers.AppointmentHandler
	patientHandler     *handlers.PatientHandler
	sseHandler         *handlers.SSEHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. sseHandler may be nil when no event bus is
// configured.
func NewRouter(
	appointmentHandler *handlers.AppointmentHandler,
	patientHandler *handlers.PatientHandler,
	sseHandler *handlers.SSEHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		appointmentHandler: appointmentHandler,
		patientHandler:     patientHandler,
		sseHandler:         sseHandler,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Patient endpoints
	r.mux.HandleFunc("POST /api/patients", r.patientHandler.RegisterPatient)
	r.mux.HandleFunc("GET /api/patients/{id}", r.patientHandler.GetPatient)
	r.mux.HandleFunc("GET /api/patients/{id}/appointments", r.appointmentHandler.ListPatientAppointments)

	// Appointment endpoints
	r.mux.HandleFunc("POST /api/appointments", r.appointmentHandler.BookAppointment)
	r.mux.HandleFunc("POST /api/appointments/prefill", r.appointmentHandler.PrefillAppointment)
	r.mux.HandleFunc("GET /api/appointments", r.appointmentHandler.ListAppointments)
	r.mux.HandleFunc("GET /api/appointments/search", r.appointmentHandler.SearchAppointments)
	r.mux.HandleFunc("GET /api/appointments/{id}", r.appointmentHandler.GetAppointment)
	r.mux.HandleFunc("PATCH /api/appointments/{id}", r.appointmentHandler.UpdateAppointment)
	r.mux.HandleFunc("POST /api/appointments/{id}/cancel", r.appointmentHandler.CancelAppointment)
	r.mux.HandleFunc("POST /api/appointments/{id}/duplicate", r.appointmentHandler.DuplicateAppointment)
	r.mux.HandleFunc("GET /api/appointments/{id}/history", r.appointmentHandler.GetAppointmentHistory)

	r.mux.HandleFunc("GET /api/doctor-appointments/{id}", r.appointmentHandler.GetDoctorAppointment)
	r.mux.HandleFunc("GET /api/doctors", r.appointmentHandler.ListDoctors)

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/appointments", r.sseHandler.StreamBookings)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
