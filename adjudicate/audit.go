package adjudicate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// AuditSink receives every finalized live outcome. Dry runs never reach a
// sink; that isolation is enforced in the service, not here.
type AuditSink interface {
	Record(ctx context.Context, outcome *Outcome) error
}

// NoopSink discards outcomes. Used in tests and in deployments that rely on
// log scraping alone.
type NoopSink struct{}

func (NoopSink) Record(context.Context, *Outcome) error { return nil }

// Checksum returns the hex SHA-256 of the outcome's canonical form. Two runs
// over identical inputs produce identical checksums, which is how a stored
// decision is later verified against a replay.
func Checksum(o *Outcome) (string, error) {
	canonical, err := CanonicalTrace(o)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// JSONLinesSink appends one JSON object per outcome to a writer, each line
// carrying the checksum alongside the full outcome.
type JSONLinesSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{w: w}
}

type auditLine struct {
	RecordedAt time.Time `json:"recordedAt"`
	Checksum   string    `json:"checksum"`
	Outcome    *Outcome  `json:"outcome"`
}

func (s *JSONLinesSink) Record(_ context.Context, outcome *Outcome) error {
	checksum, err := Checksum(outcome)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(auditLine{
		RecordedAt: time.Now().UTC(),
		Checksum:   checksum,
		Outcome:    outcome,
	})
	if err != nil {
		return fmt.Errorf("failed to encode audit line: %w", err)
	}
	raw = append(raw, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(raw); err != nil {
		return fmt.Errorf("failed to write audit line: %w", err)
	}
	return nil
}

// PostgresSink stores outcomes in adjudication_results. The trace is kept as
// canonical JSON so the stored bytes hash to the stored checksum.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Record(ctx context.Context, outcome *Outcome) error {
	canonical, err := CanonicalTrace(outcome)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(canonical)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO adjudication_results (
			claim_id, claim_number, status, submitted_amount, adjustment_amount,
			payment_amount, denial_reason, flag_reason, outcome, checksum,
			as_of_date, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		outcome.ClaimID,
		outcome.ClaimNumber,
		outcome.Status,
		outcome.SubmittedAmount,
		outcome.AdjustmentAmount,
		outcome.PaymentAmount,
		nullIfEmpty(outcome.DenialReason),
		nullIfEmpty(outcome.FlagReason),
		canonical,
		hex.EncodeToString(sum[:]),
		outcome.AsOfDate,
		outcome.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert adjudication result: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
