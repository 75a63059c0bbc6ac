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
	"github.com/zatekoja/clinicbooking/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

const appointmentsTable = "appointments"

var appointmentColumns = []interface{}{
	"id", "patient_id", "name", "reference_id", "gender", "date_of_birth",
	"phone", "email", "appointment_date", "op_number", "department",
	"consultation_doctor_id", "consultation_mode", "if_online", "referral",
	"priority", "notes", "state", "doctor_appointment_id",
	"created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	db      *sqlx.DB
	metrics *observability.Metrics
}

// NewAppointmentAdapter creates a new appointment adapter. metrics may be nil.
func NewAppointmentAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		db:      sqlx.NewDb(client.DB(), "postgres"),
		metrics: metrics,
	}
}

func (a *AppointmentAdapter) observe(ctx context.Context, operation string, start time.Time) {
	observability.RecordDBMetric(ctx, a.metrics, "appointments."+operation, time.Since(start))
}

// Create inserts a booking
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	defer a.observe(ctx, "create", time.Now())

	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	record := goqu.Record{
		"id":                     appointment.ID,
		"patient_id":             appointment.PatientID,
		"name":                   appointment.Name,
		"reference_id":           appointment.ReferenceID,
		"gender":                 appointment.Gender,
		"date_of_birth":          appointment.DateOfBirth,
		"phone":                  appointment.Phone,
		"email":                  appointment.Email,
		"appointment_date":       appointment.AppointmentDate,
		"op_number":              appointment.OpNumber,
		"department":             appointment.Department,
		"consultation_doctor_id": appointment.ConsultationDoctorID,
		"consultation_mode":      appointment.ConsultationMode,
		"if_online":              appointment.IfOnline,
		"referral":               appointment.Referral,
		"priority":               appointment.Priority,
		"notes":                  appointment.Notes,
		"state":                  appointment.State,
		"doctor_appointment_id":  appointment.DoctorAppointmentID,
		"created_at":             appointment.CreatedAt,
		"updated_at":             appointment.UpdatedAt,
	}

	query, args, err := dialect.Insert(appointmentsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := conn(ctx, a.db).ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to create appointment", err)
	}

	return nil
}

// GetByID retrieves a booking by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	defer a.observe(ctx, "get", time.Now())

	query, args, err := dialect.From(appointmentsTable).Prepared(true).
		Select(appointmentColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment := &entities.Appointment{}
	err = sqlx.GetContext(ctx, conn(ctx, a.db), appointment, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// Update writes the mutable fields of a booking. op_number, the doctor
// appointment link and created_at are never touched.
func (a *AppointmentAdapter) Update(ctx context.Context, appointment *entities.Appointment) error {
	defer a.observe(ctx, "update", time.Now())

	appointment.UpdatedAt = time.Now().UTC()

	record := goqu.Record{
		"patient_id":             appointment.PatientID,
		"name":                   appointment.Name,
		"reference_id":           appointment.ReferenceID,
		"gender":                 appointment.Gender,
		"date_of_birth":          appointment.DateOfBirth,
		"phone":                  appointment.Phone,
		"email":                  appointment.Email,
		"appointment_date":       appointment.AppointmentDate,
		"department":             appointment.Department,
		"consultation_doctor_id": appointment.ConsultationDoctorID,
		"consultation_mode":      appointment.ConsultationMode,
		"if_online":              appointment.IfOnline,
		"referral":               appointment.Referral,
		"priority":               appointment.Priority,
		"notes":                  appointment.Notes,
		"state":                  appointment.State,
		"updated_at":             appointment.UpdatedAt,
	}

	query, args, err := dialect.Update(appointmentsTable).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": appointment.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return a.execOne(ctx, appointment.ID, "failed to update appointment", query, args)
}

// SetState writes only the state column
func (a *AppointmentAdapter) SetState(ctx context.Context, id string, state entities.AppointmentState) error {
	defer a.observe(ctx, "set_state", time.Now())

	query, args, err := dialect.Update(appointmentsTable).Prepared(true).
		Set(goqu.Record{
			"state":      state,
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build state query", err)
	}

	return a.execOne(ctx, id, "failed to set appointment state", query, args)
}

// LinkDoctorAppointment stores the doctor appointment created for a booking
func (a *AppointmentAdapter) LinkDoctorAppointment(ctx context.Context, id, doctorAppointmentID string) error {
	query, args, err := dialect.Update(appointmentsTable).Prepared(true).
		Set(goqu.Record{"doctor_appointment_id": doctorAppointmentID}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build link query", err)
	}

	return a.execOne(ctx, id, "failed to link doctor appointment", query, args)
}

func (a *AppointmentAdapter) execOne(ctx context.Context, id, message, query string, args []interface{}) error {
	result, err := conn(ctx, a.db).ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(message, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	return nil
}

// CountByPatient counts the bookings of a patient, ignoring excludeID when set
func (a *AppointmentAdapter) CountByPatient(ctx context.Context, patientID, excludeID string) (int, error) {
	defer a.observe(ctx, "count", time.Now())

	ds := dialect.From(appointmentsTable).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"patient_id": patientID})
	if excludeID != "" {
		ds = ds.Where(goqu.C("id").Neq(excludeID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := conn(ctx, a.db).QueryRowxContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count appointments", err)
	}
	return count, nil
}

// CountByPatients counts bookings per patient with a single grouped query
func (a *AppointmentAdapter) CountByPatients(ctx context.Context, patientIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(patientIDs))
	if len(patientIDs) == 0 {
		return counts, nil
	}
	defer a.observe(ctx, "count_many", time.Now())

	query, args, err := dialect.From(appointmentsTable).Prepared(true).
		Select(goqu.C("patient_id"), goqu.COUNT("*").As("total")).
		Where(goqu.C("patient_id").In(patientIDs)).
		GroupBy("patient_id").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build count query", err)
	}

	var rows []struct {
		PatientID string `db:"patient_id"`
		Total     int    `db:"total"`
	}
	if err := sqlx.SelectContext(ctx, conn(ctx, a.db), &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to count appointments", err)
	}
	for _, row := range rows {
		counts[row.PatientID] = row.Total
	}
	return counts, nil
}

// List retrieves bookings matching the filter, latest appointment date first
func (a *AppointmentAdapter) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	defer a.observe(ctx, "list", time.Now())

	ds := dialect.From(appointmentsTable).Prepared(true).Select(appointmentColumns...)

	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if filter.State != "" {
		ds = ds.Where(goqu.Ex{"state": filter.State})
	}
	if filter.Department != "" {
		ds = ds.Where(goqu.Ex{"department": filter.Department})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("appointment_date").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("appointment_date").Lte(*filter.To))
	}

	ds = ds.Order(goqu.I("appointment_date").Desc(), goqu.I("created_at").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	appointments := []*entities.Appointment{}
	if err := sqlx.SelectContext(ctx, conn(ctx, a.db), &appointments, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}

	return appointments, nil
}
