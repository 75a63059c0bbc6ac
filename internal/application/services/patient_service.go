package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
	"github.com/zatekoja/clinicbooking/pkg/phone"
)

// RegisterPatientInput holds the details of a new patient
type RegisterPatientInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"max=32"`
	Email string `json:"email" validate:"omitempty,email"`
}

// PatientService manages the patient directory
type PatientService struct {
	repo     repositories.PatientRepository
	validate *validator.Validate
	phone    *phone.Normalizer
}

// NewPatientService creates a new patient service
func NewPatientService(repo repositories.PatientRepository, phoneRegion string) *PatientService {
	return &PatientService{
		repo:     repo,
		validate: newValidator(),
		phone:    phone.NewNormalizer(phoneRegion),
	}
}

// Register creates a patient
func (s *PatientService) Register(ctx context.Context, input *RegisterPatientInput) (*entities.Patient, error) {
	if input == nil {
		input = &RegisterPatientInput{}
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	patient := &entities.Patient{
		Name:  input.Name,
		Phone: s.phone.Normalize(input.Phone),
		Email: strings.TrimSpace(input.Email),
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Str("patient_id", patient.ID).Msg("patient registered")
	return patient, nil
}

// Get retrieves a patient by ID
func (s *PatientService) Get(ctx context.Context, id string) (*entities.Patient, error) {
	return s.repo.GetByID(ctx, id)
}
