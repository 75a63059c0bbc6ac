package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/clinicbooking/internal/application/services"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
)

// BookingService defines the booking operations exposed over HTTP
type BookingService interface {
	Create(ctx context.Context, input *services.BookingInput) (*entities.Appointment, error)
	Get(ctx context.Context, id string) (*entities.Appointment, error)
	List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
	Update(ctx context.Context, id string, patch *services.BookingPatch) (*entities.Appointment, error)
	Cancel(ctx context.Context, id string) (*entities.Appointment, error)
	Duplicate(ctx context.Context, id string) (*entities.Appointment, error)
	PrefillFromPatient(ctx context.Context, draft *services.Draft) (*services.Draft, error)
	History(ctx context.Context, id string) ([]*entities.StateChange, error)
	Search(ctx context.Context, query string, limit int) ([]providers.BookingHit, error)
	GetDoctorAppointment(ctx context.Context, id string) (*entities.DoctorAppointment, error)
	ListDoctors(ctx context.Context) ([]*entities.Doctor, error)
}

// AppointmentHandler handles booking requests
type AppointmentHandler struct {
	service BookingService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(service BookingService) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
	}
}

type bookingRequest struct {
	PatientID            string                    `json:"patient_id"`
	ReferenceID          string                    `json:"reference_id"`
	Gender               entities.Gender           `json:"gender"`
	DateOfBirth          *Date                     `json:"date_of_birth"`
	Phone                string                    `json:"phone"`
	Email                string                    `json:"email"`
	AppointmentDate      *Date                     `json:"appointment_date"`
	OpNumber             string                    `json:"op_number"`
	Department           entities.Department       `json:"department"`
	ConsultationDoctorID *string                   `json:"consultation_doctor_id"`
	ConsultationMode     entities.ConsultationMode `json:"consultation_mode"`
	IfOnline             string                    `json:"if_online"`
	Referral             string                    `json:"referral"`
	Priority             string                    `json:"priority"`
	Notes                string                    `json:"notes"`
}

func (req *bookingRequest) toInput() *services.BookingInput {
	input := &services.BookingInput{
		PatientID:            strings.TrimSpace(req.PatientID),
		ReferenceID:          req.ReferenceID,
		Gender:               req.Gender,
		DateOfBirth:          req.DateOfBirth.Time(),
		Phone:                req.Phone,
		Email:                strings.TrimSpace(req.Email),
		OpNumber:             strings.TrimSpace(req.OpNumber),
		Department:           req.Department,
		ConsultationDoctorID: req.ConsultationDoctorID,
		ConsultationMode:     req.ConsultationMode,
		IfOnline:             req.IfOnline,
		Referral:             req.Referral,
		Priority:             req.Priority,
		Notes:                req.Notes,
	}
	if t := req.AppointmentDate.Time(); t != nil {
		input.AppointmentDate = *t
	}
	return input
}

type patchRequest struct {
	PatientID            *string                    `json:"patient_id"`
	ReferenceID          *string                    `json:"reference_id"`
	Gender               *entities.Gender           `json:"gender"`
	DateOfBirth          *Date                      `json:"date_of_birth"`
	Phone                *string                    `json:"phone"`
	Email                *string                    `json:"email"`
	AppointmentDate      *Date                      `json:"appointment_date"`
	OpNumber             *string                    `json:"op_number"`
	Department           *entities.Department       `json:"department"`
	ConsultationDoctorID *string                    `json:"consultation_doctor_id"`
	ConsultationMode     *entities.ConsultationMode `json:"consultation_mode"`
	IfOnline             *string                    `json:"if_online"`
	Referral             *string                    `json:"referral"`
	Priority             *string                    `json:"priority"`
	Notes                *string                    `json:"notes"`
	State                *entities.AppointmentState `json:"state"`
}

func (req *patchRequest) toPatch() *services.BookingPatch {
	return &services.BookingPatch{
		PatientID:            req.PatientID,
		ReferenceID:          req.ReferenceID,
		Gender:               req.Gender,
		DateOfBirth:          req.DateOfBirth.Time(),
		Phone:                req.Phone,
		Email:                req.Email,
		AppointmentDate:      req.AppointmentDate.Time(),
		OpNumber:             req.OpNumber,
		Department:           req.Department,
		ConsultationDoctorID: req.ConsultationDoctorID,
		ConsultationMode:     req.ConsultationMode,
		IfOnline:             req.IfOnline,
		Referral:             req.Referral,
		Priority:             req.Priority,
		Notes:                req.Notes,
		State:                req.State,
	}
}

type appointmentResponse struct {
	ID                   string                    `json:"id"`
	OpNumber             string                    `json:"op_number"`
	PatientID            string                    `json:"patient_id"`
	Name                 string                    `json:"name"`
	ReferenceID          string                    `json:"reference_id,omitempty"`
	Gender               entities.Gender           `json:"gender,omitempty"`
	DateOfBirth          *Date                     `json:"date_of_birth,omitempty"`
	Age                  int                       `json:"age"`
	PatientType          entities.PatientType      `json:"patient_type"`
	Phone                string                    `json:"phone,omitempty"`
	Email                string                    `json:"email,omitempty"`
	AppointmentDate      *Date                     `json:"appointment_date"`
	Department           entities.Department       `json:"department,omitempty"`
	ConsultationDoctorID *string                   `json:"consultation_doctor_id,omitempty"`
	ConsultationMode     entities.ConsultationMode `json:"consultation_mode,omitempty"`
	IfOnline             string                    `json:"if_online,omitempty"`
	Referral             string                    `json:"referral,omitempty"`
	Priority             string                    `json:"priority,omitempty"`
	Notes                string                    `json:"notes,omitempty"`
	State                entities.AppointmentState `json:"state"`
	DoctorAppointmentID  *string                   `json:"doctor_appointment_id,omitempty"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
}

func toAppointmentResponse(a *entities.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                   a.ID,
		OpNumber:             a.OpNumber,
		PatientID:            a.PatientID,
		Name:                 a.Name,
		ReferenceID:          a.ReferenceID,
		Gender:               a.Gender,
		DateOfBirth:          dateOf(a.DateOfBirth),
		Age:                  a.Age,
		PatientType:          a.PatientType,
		Phone:                a.Phone,
		Email:                a.Email,
		AppointmentDate:      dateOf(&a.AppointmentDate),
		Department:           a.Department,
		ConsultationDoctorID: a.ConsultationDoctorID,
		ConsultationMode:     a.ConsultationMode,
		IfOnline:             a.IfOnline,
		Referral:             a.Referral,
		Priority:             a.Priority,
		Notes:                a.Notes,
		State:                a.State,
		DoctorAppointmentID:  a.DoctorAppointmentID,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toAppointmentResponses(appointments []*entities.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type doctorAppointmentResponse struct {
	ID              string                    `json:"id"`
	BookingID       string                    `json:"booking_id"`
	PatientID       string                    `json:"patient_id"`
	AppointmentDate *Date                     `json:"appointment_date"`
	ReferenceID     string                    `json:"reference_id,omitempty"`
	State           entities.AppointmentState `json:"state"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appointment, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toAppointmentResponse(appointment))
}

// PrefillAppointment handles POST /api/appointments/prefill
func (h *AppointmentHandler) PrefillAppointment(w http.ResponseWriter, r *http.Request) {
	var draft services.Draft
	if err := decodeJSON(r, &draft); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	filled, err := h.service.PrefillFromPatient(r.Context(), &draft)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, filled)
}

// GetAppointment handles GET /api/appointments/{id}
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toAppointmentResponse(appointment))
}

// ListAppointments handles GET /api/appointments
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appointments, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": toAppointmentResponses(appointments),
		"count":        len(appointments),
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

// ListPatientAppointments handles GET /api/patients/{id}/appointments
func (h *AppointmentHandler) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appointments, err := h.service.ListByPatient(r.Context(), patientID, filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": toAppointmentResponses(appointments),
		"count":        len(appointments),
	})
}

func parseFilter(r *http.Request) (repositories.AppointmentFilter, error) {
	query := r.URL.Query()
	filter := repositories.AppointmentFilter{
		State:      entities.AppointmentState(query.Get("state")),
		Department: entities.Department(query.Get("department")),
	}

	var err error
	if filter.From, err = queryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// UpdateAppointment handles PATCH /api/appointments/{id}
func (h *AppointmentHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	appointment, err := h.service.Update(r.Context(), id, req.toPatch())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toAppointmentResponse(appointment))
}

// CancelAppointment handles POST /api/appointments/{id}/cancel
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toAppointmentResponse(appointment))
}

// DuplicateAppointment handles POST /api/appointments/{id}/duplicate
func (h *AppointmentHandler) DuplicateAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.service.Duplicate(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toAppointmentResponse(appointment))
}

// GetAppointmentHistory handles GET /api/appointments/{id}/history
func (h *AppointmentHandler) GetAppointmentHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	history, err := h.service.History(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
	})
}

// SearchAppointments handles GET /api/appointments/search?q=
func (h *AppointmentHandler) SearchAppointments(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondWithError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	hits, err := h.service.Search(r.Context(), query, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": hits,
		"count":   len(hits),
	})
}

// GetDoctorAppointment handles GET /api/doctor-appointments/{id}
func (h *AppointmentHandler) GetDoctorAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "doctor appointment ID is required")
		return
	}

	da, err := h.service.GetDoctorAppointment(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, doctorAppointmentResponse{
		ID:              da.ID,
		BookingID:       da.BookingID,
		PatientID:       da.PatientID,
		AppointmentDate: dateOf(&da.AppointmentDate),
		ReferenceID:     da.ReferenceID,
		State:           da.State,
		CreatedAt:       da.CreatedAt,
		UpdatedAt:       da.UpdatedAt,
	})
}

// ListDoctors handles GET /api/doctors
func (h *AppointmentHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.service.ListDoctors(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctors": doctors,
	})
}
