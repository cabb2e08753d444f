package adjudicate

import (
	"context"
	"log/slog"
)

// Notifier is told about finalized live outcomes after they are audited.
// Dry runs are never announced.
type Notifier interface {
	ClaimFinalized(ctx context.Context, outcome *Outcome)
}

// NoopNotifier ignores all notifications.
type NoopNotifier struct{}

func (NoopNotifier) ClaimFinalized(context.Context, *Outcome) {}

// LogNotifier announces finalized claims as structured log records. It is the
// default wiring; a queue-backed notifier slots in behind the same interface.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) ClaimFinalized(ctx context.Context, outcome *Outcome) {
	n.log.InfoContext(ctx, "claim finalized",
		"claim_id", outcome.ClaimID,
		"claim_number", outcome.ClaimNumber,
		"status", outcome.Status,
		"payment_amount", outcome.PaymentAmount.StringFixed(2),
		"rules_applied", len(outcome.RulesApplied),
		"dry_run", outcome.DryRun,
	)
}
