package feeschedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore backs the schedule with the fee_schedule table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Lookup(ctx context.Context, procedureCode string, asOf time.Time) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT procedure_code, description, unit_price, effective_from, effective_until
		FROM fee_schedule
		WHERE procedure_code = $1
		  AND effective_from <= $2
		  AND (effective_until IS NULL OR effective_until >= $2)
		ORDER BY effective_from DESC
		LIMIT 1`,
		procedureCode, asOf,
	)

	var (
		e           Entry
		description sql.NullString
		until       sql.NullTime
	)
	err := row.Scan(&e.ProcedureCode, &description, &e.UnitPrice, &e.EffectiveFrom, &until)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fee schedule: %w", err)
	}
	e.Description = description.String
	if until.Valid {
		t := until.Time
		e.EffectiveUntil = &t
	}
	return &e, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fee_schedule (procedure_code, description, unit_price, effective_from, effective_until)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (procedure_code, effective_from) DO UPDATE SET
			description = EXCLUDED.description,
			unit_price = EXCLUDED.unit_price,
			effective_until = EXCLUDED.effective_until`,
		entry.ProcedureCode,
		sql.NullString{String: entry.Description, Valid: entry.Description != ""},
		entry.UnitPrice,
		entry.EffectiveFrom,
		nullableTime(entry.EffectiveUntil),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fee schedule entry: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
