package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

const stateChangesTable = "appointment_state_changes"

// StateChangeAdapter implements the StateChangeRepository interface
type StateChangeAdapter struct {
	db *sqlx.DB
}

// NewStateChangeAdapter creates a new state change adapter
func NewStateChangeAdapter(client *postgres.Client) repositories.StateChangeRepository {
	return &StateChangeAdapter{db: sqlx.NewDb(client.DB(), "postgres")}
}

// Record appends a state change
func (a *StateChangeAdapter) Record(ctx context.Context, change *entities.StateChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}

	query, args, err := dialect.Insert(stateChangesTable).Prepared(true).Rows(goqu.Record{
		"id":             change.ID,
		"appointment_id": change.AppointmentID,
		"from_state":     change.FromState,
		"to_state":       change.ToState,
		"changed_at":     change.ChangedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := conn(ctx, a.db).ExecContext(ctx, query, args...); err != nil {
		return writeError("failed to record state change", err)
	}
	return nil
}

// ListByAppointment returns the state history of a booking, oldest first
func (a *StateChangeAdapter) ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.StateChange, error) {
	query, args, err := dialect.From(stateChangesTable).Prepared(true).
		Select("id", "appointment_id", "from_state", "to_state", "changed_at").
		Where(goqu.Ex{"appointment_id": appointmentID}).
		Order(goqu.I("changed_at").Asc(), goqu.I("seq").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build history query", err)
	}

	changes := []*entities.StateChange{}
	if err := sqlx.SelectContext(ctx, conn(ctx, a.db), &changes, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list state changes", err)
	}
	return changes, nil
}
