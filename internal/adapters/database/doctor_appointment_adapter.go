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

const doctorAppointmentsTable = "doctor_appointments"

// DoctorAppointmentAdapter implements the DoctorAppointmentRepository interface
type DoctorAppointmentAdapter struct {
	db *sqlx.DB
}

// NewDoctorAppointmentAdapter creates a new doctor appointment adapter
func NewDoctorAppointmentAdapter(client *postgres.Client) repositories.DoctorAppointmentRepository {
	return &DoctorAppointmentAdapter{db: sqlx.NewDb(client.DB(), "postgres")}
}

// Create inserts a doctor appointment
func (a *DoctorAppointmentAdapter) Create(ctx context.Context, da *entities.DoctorAppointment) error {
	if da.ID == "" {
		da.ID = uuid.NewString()
	}
	if da.CreatedAt.IsZero() {
		da.CreatedAt = time.Now().UTC()
	}
	da.UpdatedAt = da.CreatedAt

	query, args, err := dialect.Insert(doctorAppointmentsTable).Prepared(true).Rows(goqu.Record{
		"id":               da.ID,
		"booking_id":       da.BookingID,
		"patient_id":       da.PatientID,
		"appointment_date": da.AppointmentDate,
		"reference_id":     da.ReferenceID,
		"state":            da.State,
		"created_at":       da.CreatedAt,
		"updated_at":       da.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := conn(ctx, a.db).ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to create doctor appointment", err)
	}
	return nil
}

// GetByID retrieves a doctor appointment by ID
func (a *DoctorAppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.DoctorAppointment, error) {
	query, args, err := dialect.From(doctorAppointmentsTable).Prepared(true).
		Select("id", "booking_id", "patient_id", "appointment_date", "reference_id", "state", "created_at", "updated_at").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	da := &entities.DoctorAppointment{}
	err = sqlx.GetContext(ctx, conn(ctx, a.db), da, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor appointment", err)
	}
	return da, nil
}

// SetState writes only the state column
func (a *DoctorAppointmentAdapter) SetState(ctx context.Context, id string, state entities.AppointmentState) error {
	query, args, err := dialect.Update(doctorAppointmentsTable).Prepared(true).
		Set(goqu.Record{"state": state, "updated_at": time.Now().UTC()}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build state query", err)
	}

	result, err := conn(ctx, a.db).ExecContext(ctx, query, args...)
	if err != nil {
		return writeError("failed to set doctor appointment state", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor appointment with id %s not found", id))
	}
	return nil
}
