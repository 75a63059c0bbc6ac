package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	db *sqlx.DB
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{db: sqlx.NewDb(client.DB(), "postgres")}
}

// Create registers a patient
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	patient.CreatedAt = time.Now().UTC()

	query, args, err := dialect.Insert("patients").Prepared(true).Rows(goqu.Record{
		"id":         patient.ID,
		"name":       patient.Name,
		"phone":      patient.Phone,
		"email":      patient.Email,
		"created_at": patient.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := conn(ctx, a.db).ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to create patient", err)
	}
	return nil
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	patient := &entities.Patient{}
	err := sqlx.GetContext(ctx, conn(ctx, a.db), patient,
		`SELECT id, name, phone, email, created_at FROM patients WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return patient, nil
}

// DoctorAdapter implements the DoctorRepository interface
type DoctorAdapter struct {
	db *sqlx.DB
}

// NewDoctorAdapter creates a new consultation doctor adapter
func NewDoctorAdapter(client *postgres.Client) repositories.DoctorRepository {
	return &DoctorAdapter{db: sqlx.NewDb(client.DB(), "postgres")}
}

// GetByID retrieves a consultation doctor by ID
func (a *DoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	doctor := &entities.Doctor{}
	err := sqlx.GetContext(ctx, conn(ctx, a.db), doctor,
		`SELECT id, name FROM consultation_doctors WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}
	return doctor, nil
}

// List returns every consultation doctor ordered by name
func (a *DoctorAdapter) List(ctx context.Context) ([]*entities.Doctor, error) {
	doctors := []*entities.Doctor{}
	if err := sqlx.SelectContext(ctx, conn(ctx, a.db), &doctors,
		`SELECT id, name FROM consultation_doctors ORDER BY name`); err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	return doctors, nil
}
