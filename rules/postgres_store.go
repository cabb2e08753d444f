package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/ahcip/adjudication/condition"
)

// PostgresStore implements Store backed by PostgreSQL. Condition trees and
// adjustments are stored as JSONB; the optimistic version check and the
// version append share one transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ruleColumns = `id, code, name, description, rule_type, action, condition, adjustment,
	priority, is_active, effective_from, effective_to,
	denial_reason_template, flag_reason_template, category, tags,
	current_version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rule *Rule, initial *Version) error {
	conditionJSON, adjustmentJSON, tagsJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, rule.ID, rule.Code, rule.Name, rule.Description, rule.Type, rule.Action,
		conditionJSON, adjustmentJSON, rule.Priority, rule.IsActive,
		rule.EffectiveFrom, rule.EffectiveTo,
		rule.DenialReasonTemplate, rule.FlagReasonTemplate, rule.Category, tagsJSON,
		rule.CurrentVersion, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	if err := insertVersion(ctx, tx, initial); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = $1`, id)
	return scanRule(row)
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE code = $1`, code)
	return scanRule(row)
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE 1=1`
	var args []any
	if f.Type != nil {
		args = append(args, *f.Type)
		query += fmt.Sprintf(" AND rule_type = $%d", len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += ` ORDER BY priority ASC, code ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*Rule, error) {
	active := true
	return s.List(ctx, Filter{IsActive: &active})
}

func (s *PostgresStore) Update(ctx context.Context, rule *Rule, expectedVersion int, next *Version) error {
	conditionJSON, adjustmentJSON, tagsJSON, err := encodeRule(rule)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rule.UpdatedAt = time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE rules
		SET code = $1, name = $2, description = $3, rule_type = $4, action = $5,
			condition = $6, adjustment = $7, priority = $8, is_active = $9,
			effective_from = $10, effective_to = $11,
			denial_reason_template = $12, flag_reason_template = $13,
			category = $14, tags = $15, current_version = $16, updated_at = $17
		WHERE id = $18 AND current_version = $19
	`, rule.Code, rule.Name, rule.Description, rule.Type, rule.Action,
		conditionJSON, adjustmentJSON, rule.Priority, rule.IsActive,
		rule.EffectiveFrom, rule.EffectiveTo,
		rule.DenialReasonTemplate, rule.FlagReasonTemplate,
		rule.Category, tagsJSON, rule.CurrentVersion, rule.UpdatedAt,
		rule.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Stale write or missing rule; read the current version to tell the
		// caller what to reload.
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT current_version FROM rules WHERE id = $1`, rule.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read current version: %w", err)
		}
		return &ConflictError{RuleID: rule.ID, ExpectedVersion: expectedVersion, CurrentVersion: current}
	}

	if err := insertVersion(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rules SET is_active = $1, updated_at = $2 WHERE id = $3
	`, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set active: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Versions(ctx context.Context, ruleID uuid.UUID) ([]*Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, version_number, condition, action, adjustment,
			priority, change_description, created_at
		FROM rule_versions
		WHERE rule_id = $1
		ORDER BY version_number DESC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, ruleID uuid.UUID, versionNumber int) (*Version, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rule_id, version_number, condition, action, adjustment,
			priority, change_description, created_at
		FROM rule_versions
		WHERE rule_id = $1 AND version_number = $2
	`, ruleID, versionNumber)
	return scanVersion(row)
}

func (s *PostgresStore) CountByCodePrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rules WHERE code LIKE $1`, prefix+"%").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rules by code prefix: %w", err)
	}
	return count, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, v *Version) error {
	conditionJSON, err := json.Marshal(v.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode version condition: %w", err)
	}
	var adjustmentJSON []byte
	if v.Adjustment != nil {
		adjustmentJSON, err = json.Marshal(v.Adjustment)
		if err != nil {
			return fmt.Errorf("failed to encode version adjustment: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rule_versions (id, rule_id, version_number, condition, adjustment,
			action, priority, change_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, v.ID, v.RuleID, v.VersionNumber, conditionJSON, nullableJSON(adjustmentJSON),
		v.Action, v.Priority, v.ChangeDescription, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule version: %w", err)
	}
	return nil
}

func encodeRule(rule *Rule) (conditionJSON, adjustmentJSON, tagsJSON []byte, err error) {
	conditionJSON, err = json.Marshal(rule.Condition)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode condition: %w", err)
	}
	if rule.Adjustment != nil {
		adjustmentJSON, err = json.Marshal(rule.Adjustment)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode adjustment: %w", err)
		}
	}
	tags := rule.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err = json.Marshal(tags)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return conditionJSON, nullableJSON(adjustmentJSON), tagsJSON, nil
}

// nullableJSON maps empty JSON to SQL NULL.
func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var rule Rule
	var conditionJSON, tagsJSON []byte
	var adjustmentJSON []byte
	var description, denialTemplate, flagTemplate, category sql.NullString

	err := row.Scan(
		&rule.ID, &rule.Code, &rule.Name, &description, &rule.Type, &rule.Action,
		&conditionJSON, &adjustmentJSON, &rule.Priority, &rule.IsActive,
		&rule.EffectiveFrom, &rule.EffectiveTo,
		&denialTemplate, &flagTemplate, &category, &tagsJSON,
		&rule.CurrentVersion, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Description = description.String
	rule.DenialReasonTemplate = denialTemplate.String
	rule.FlagReasonTemplate = flagTemplate.String
	rule.Category = category.String

	rule.Condition = &condition.Node{}
	if err := json.Unmarshal(conditionJSON, rule.Condition); err != nil {
		return nil, fmt.Errorf("failed to decode condition for rule %s: %w", rule.ID, err)
	}
	if len(adjustmentJSON) > 0 {
		rule.Adjustment = &Adjustment{}
		if err := json.Unmarshal(adjustmentJSON, rule.Adjustment); err != nil {
			return nil, fmt.Errorf("failed to decode adjustment for rule %s: %w", rule.ID, err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &rule.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for rule %s: %w", rule.ID, err)
		}
	}
	return &rule, nil
}

func scanVersion(row rowScanner) (*Version, error) {
	var v Version
	var conditionJSON []byte
	var adjustmentJSON []byte
	var changeDescription sql.NullString

	err := row.Scan(&v.ID, &v.RuleID, &v.VersionNumber, &conditionJSON, &v.Action,
		&adjustmentJSON, &v.Priority, &changeDescription, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	v.ChangeDescription = changeDescription.String
	v.Condition = &condition.Node{}
	if err := json.Unmarshal(conditionJSON, v.Condition); err != nil {
		return nil, fmt.Errorf("failed to decode condition for version %s: %w", v.ID, err)
	}
	if len(adjustmentJSON) > 0 {
		v.Adjustment = &Adjustment{}
		if err := json.Unmarshal(adjustmentJSON, v.Adjustment); err != nil {
			return nil, fmt.Errorf("failed to decode adjustment for version %s: %w", v.ID, err)
		}
	}
	return &v, nil
}
