package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	"github.com/zatekoja/clinicbooking/internal/domain/providers"
	"github.com/zatekoja/clinicbooking/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

// SequenceAdapter draws sequence values from the sequences table. The UPDATE
// locks the row, so concurrent callers always receive distinct numbers.
type SequenceAdapter struct {
	db *sqlx.DB
}

// NewSequenceAdapter creates a new PostgreSQL backed sequence provider
func NewSequenceAdapter(client *postgres.Client) *SequenceAdapter {
	return &SequenceAdapter{db: sqlx.NewDb(client.DB(), "postgres")}
}

var _ providers.SequenceProvider = (*SequenceAdapter)(nil)

// Next advances the sequence identified by code and returns the drawn value.
// An unknown code yields an empty value.
func (a *SequenceAdapter) Next(ctx context.Context, code string) (string, error) {
	query, args, err := dialect.Update("sequences").Prepared(true).
		Set(goqu.Record{"number_next": goqu.L("number_next + number_increment")}).
		Where(goqu.Ex{"code": code}).
		Returning("code", "prefix", "padding", goqu.L("number_next - number_increment").As("number_next"), "number_increment").
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build sequence query", err)
	}

	var seq entities.Sequence
	err = sqlx.GetContext(ctx, conn(ctx, a.db), &seq, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewInternalError("failed to advance sequence", err)
	}

	return seq.Format(seq.NumberNext), nil
}

// List returns every defined sequence
func (a *SequenceAdapter) List(ctx context.Context) ([]entities.Sequence, error) {
	sequences := []entities.Sequence{}
	if err := sqlx.SelectContext(ctx, conn(ctx, a.db), &sequences,
		`SELECT code, prefix, padding, number_next, number_increment FROM sequences ORDER BY code`); err != nil {
		return nil, apperrors.NewInternalError("failed to list sequences", err)
	}
	return sequences, nil
}
