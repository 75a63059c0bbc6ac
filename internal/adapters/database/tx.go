package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/zatekoja/clinicbooking/internal/domain/repositories"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

var dialect = goqu.Dialect("postgres")

type txKey struct{}

// Transactor implements repositories.Transactor on top of the PostgreSQL pool
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor creates a new transactor
func NewTransactor(client *postgres.Client) *Transactor {
	return &Transactor{db: sqlx.NewDb(client.DB(), "postgres")}
}

var _ repositories.Transactor = (*Transactor)(nil)

// WithinTx runs fn in a transaction carried by the context handed to fn.
// Calls nested inside an open transaction join it.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit transaction", err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or db when there is none
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// writeError maps driver errors of INSERT and UPDATE statements
func writeError(message string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return &apperrors.AppError{Type: apperrors.ErrorTypeConflict, Message: message + ": duplicate " + pqErr.Constraint, Err: err}
		case "23503":
			return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: message + ": unknown reference " + pqErr.Constraint, Err: err}
		}
	}
	return apperrors.NewInternalError(message, err)
}
