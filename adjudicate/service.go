package adjudicate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahcip/adjudication/claims"
	"github.com/ahcip/adjudication/feeschedule"
	"github.com/ahcip/adjudication/rules"
)

// DefaultEvalTimeout bounds one full run, all phases included.
const DefaultEvalTimeout = 5 * time.Second

// Service ties the orchestrator to its collaborators: the rule service for
// snapshots, the claim repository, fee-schedule pricing, the per-claim lock
// and the audit/notification pipeline for live runs.
type Service struct {
	rules    *rules.Service
	claims   claims.Repository
	fees     feeschedule.Store
	orch     *Orchestrator
	locker   *claimLocker
	audit    AuditSink
	notifier Notifier
	log      *slog.Logger
	timeout  time.Duration
}

// Config collects the optional collaborators. Zero values get safe defaults.
type Config struct {
	Fees        feeschedule.Store
	Audit       AuditSink
	Notifier    Notifier
	Logger      *slog.Logger
	EvalTimeout time.Duration
}

func NewService(ruleSvc *rules.Service, claimRepo claims.Repository, cfg Config) *Service {
	if cfg.Audit == nil {
		cfg.Audit = NoopSink{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NoopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = DefaultEvalTimeout
	}
	return &Service{
		rules:    ruleSvc,
		claims:   claimRepo,
		fees:     cfg.Fees,
		orch:     NewOrchestrator(),
		locker:   newClaimLocker(),
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		timeout:  cfg.EvalTimeout,
	}
}

// Adjudicate runs the full state machine for a stored claim. A live run takes
// the per-claim lock, records the outcome with the audit sink and announces
// it; a dry run does none of that and leaves no trace in any live store.
func (s *Service) Adjudicate(ctx context.Context, claimID uuid.UUID, asOf time.Time, dryRun bool) (*Outcome, error) {
	if !dryRun {
		if err := s.locker.tryLock(claimID); err != nil {
			return nil, err
		}
		defer s.locker.unlock(claimID)
	}

	claim, err := s.claims.Snapshot(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load claim %s: %w", claimID, err)
	}

	outcome, err := s.evaluate(ctx, claim, asOf, dryRun)
	if err != nil {
		return nil, err
	}

	if !dryRun {
		if err := s.audit.Record(ctx, outcome); err != nil {
			return nil, fmt.Errorf("failed to record outcome for claim %s: %w", claimID, err)
		}
		s.notifier.ClaimFinalized(ctx, outcome)
	}
	return outcome, nil
}

// TestRules evaluates a chosen set of rules against a synthetic claim. It is
// always a dry run: no lock, no audit record, no notification, regardless of
// what the stored versions of those rules would do live.
func (s *Service) TestRules(ctx context.Context, ruleIDs []uuid.UUID, claim *claims.Snapshot, asOf time.Time) (*Outcome, error) {
	selected := make([]*rules.Rule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		rule, err := s.rules.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule %s: %w", id, err)
		}
		selected = append(selected, rule)
	}
	snap := &rules.Snapshot{Rules: selected, LoadedAt: time.Now().UTC()}

	repriced, codes, err := feeschedule.Reprice(ctx, s.fees, claim, asOf)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.orch.Run(runCtx, snap, repriced, EvalContext{AsOf: asOf, DryRun: true, RepricedCodes: codes})
}

func (s *Service) evaluate(ctx context.Context, claim *claims.Snapshot, asOf time.Time, dryRun bool) (*Outcome, error) {
	// One snapshot per run; rule changes mid-flight never bleed in.
	snap, err := s.rules.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule snapshot: %w", err)
	}

	repriced, codes, err := feeschedule.Reprice(ctx, s.fees, claim, asOf)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome, err := s.orch.Run(runCtx, snap, repriced, EvalContext{AsOf: asOf, DryRun: dryRun, RepricedCodes: codes})
	if err != nil {
		s.log.WarnContext(ctx, "adjudication failed",
			"claim_id", claim.ID, "dry_run", dryRun, "error", err)
		return nil, err
	}
	return outcome, nil
}
