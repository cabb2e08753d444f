package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahcip/adjudication/condition"
)

// Service owns the rule lifecycle: creation with version 1, updates and
// rollbacks that append to the version lineage, and deactivation. Rules are
// never hard-deleted; history referenced by audit trails must stay resolvable.
type Service struct {
	store Store
	cache Cache
}

func NewService(store Store, cache Cache) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{store: store, cache: cache}
}

// Create validates and persists a new rule at version 1. A missing code is
// generated from the rule's type and action (VAL-0001, ADJ-0002, CAL-0003...).
func (s *Service) Create(ctx context.Context, rule *Rule) (*Rule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.Code == "" {
		code, err := s.generateCode(ctx, rule)
		if err != nil {
			return nil, err
		}
		rule.Code = code
	}
	rule.CurrentVersion = 1

	initial := snapshotVersion(rule, 1, "Initial version", time.Now())
	if err := s.store.Create(ctx, rule, initial); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	return rule, nil
}

// Update persists rule changes as a new version. expectedVersion is the
// version the caller last read; a stale value fails with *ConflictError and
// nothing is written.
func (s *Service) Update(ctx context.Context, rule *Rule, expectedVersion int, changeDescription string) (*Rule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if changeDescription == "" {
		changeDescription = "Rule updated"
	}

	rule.CurrentVersion = expectedVersion + 1
	next := snapshotVersion(rule, rule.CurrentVersion, changeDescription, time.Now())
	if err := s.store.Update(ctx, rule, expectedVersion, next); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	return rule, nil
}

// Rollback restores a historical version's condition, action, adjustment and
// priority by copying them into a brand-new version. History is append-only:
// the target version itself is never touched, and the new version number is
// max(existing)+1.
func (s *Service) Rollback(ctx context.Context, ruleID uuid.UUID, targetVersion int, expectedVersion int) (*Rule, error) {
	rule, err := s.store.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetVersion(ctx, ruleID, targetVersion)
	if err != nil {
		return nil, err
	}

	rule.Condition = target.Condition
	rule.Action = target.Action
	rule.Adjustment = target.Adjustment
	rule.Priority = target.Priority

	return s.Update(ctx, rule, expectedVersion,
		fmt.Sprintf("Rolled back to version %d", targetVersion))
}

// Deactivate retires a rule without deleting it.
func (s *Service) Deactivate(ctx context.Context, ruleID uuid.UUID) error {
	if err := s.store.SetActive(ctx, ruleID, false); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// Get returns a rule by ID.
func (s *Service) Get(ctx context.Context, ruleID uuid.UUID) (*Rule, error) {
	return s.store.Get(ctx, ruleID)
}

// GetByCode returns a rule by its business code (VAL-0001 and friends), or
// ErrNotFound.
func (s *Service) GetByCode(ctx context.Context, code string) (*Rule, error) {
	return s.store.GetByCode(ctx, code)
}

// List returns rules matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]*Rule, error) {
	return s.store.List(ctx, f)
}

// Versions returns the rule's version lineage, newest first.
func (s *Service) Versions(ctx context.Context, ruleID uuid.UUID) ([]*Version, error) {
	return s.store.Versions(ctx, ruleID)
}

// LoadSnapshot returns a consistent view of the active rule set, from cache
// when possible. Every evaluation run loads exactly one snapshot so a
// concurrent rule edit is never observed mid-run.
func (s *Service) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	if snap, ok := s.cache.Get(ctx); ok {
		return snap, nil
	}

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}
	snap := &Snapshot{Rules: active, LoadedAt: time.Now()}
	s.cache.Set(ctx, snap)
	return snap, nil
}

// validateRule checks everything enforced at save time so evaluation can stay
// simple: structural condition validity, known type/action, and the
// action-specific required fields.
func validateRule(rule *Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	switch rule.Type {
	case TypeValidation, TypeAdjudication:
	default:
		return fmt.Errorf("unknown rule type %q", rule.Type)
	}
	switch rule.Action {
	case ActionApprove, ActionDeny, ActionFlag, ActionCalculate:
	default:
		return fmt.Errorf("unknown rule action %q", rule.Action)
	}
	if rule.Action == ActionCalculate {
		if rule.Adjustment == nil {
			return fmt.Errorf("calculate rule %q requires an adjustment", rule.Name)
		}
		switch rule.Adjustment.Type {
		case AdjustmentPercentage, AdjustmentFixed:
		default:
			return fmt.Errorf("unknown adjustment type %q", rule.Adjustment.Type)
		}
	}
	if rule.EffectiveFrom != nil && rule.EffectiveTo != nil && rule.EffectiveTo.Before(*rule.EffectiveFrom) {
		return fmt.Errorf("effectiveTo precedes effectiveFrom")
	}
	if err := condition.Validate(rule.Condition); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	return nil
}

// generateCode builds the next sequential code for the rule's prefix.
func (s *Service) generateCode(ctx context.Context, rule *Rule) (string, error) {
	prefix := "ADJ"
	switch {
	case rule.Action == ActionCalculate:
		prefix = "CAL"
	case rule.Type == TypeValidation:
		prefix = "VAL"
	}

	count, err := s.store.CountByCodePrefix(ctx, prefix+"-")
	if err != nil {
		return "", fmt.Errorf("failed to generate rule code: %w", err)
	}
	return fmt.Sprintf("%s-%04d", prefix, count+1), nil
}
