package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/clinicbooking/internal/application/services"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
)

// PatientService defines the patient directory operations exposed over HTTP
type PatientService interface {
	Register(ctx context.Context, input *services.RegisterPatientInput) (*entities.Patient, error)
	Get(ctx context.Context, id string) (*entities.Patient, error)
}

// PatientHandler handles patient requests
type PatientHandler struct {
	service PatientService
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(service PatientService) *PatientHandler {
	return &PatientHandler{service: service}
}

// RegisterPatient handles POST /api/patients
func (h *PatientHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterPatientInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	patient, err := h.service.Register(r.Context(), &input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, patient)
}

// GetPatient handles GET /api/patients/{id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	patient, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}
