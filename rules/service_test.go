package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/condition"
)

func newTestService() *Service {
	return NewService(NewInMemoryStore(), NewInMemoryCache(DefaultCacheConfig()))
}

func validRule(name string) *Rule {
	return &Rule{
		Name:      name,
		Type:      TypeValidation,
		Action:    ActionDeny,
		Condition: condition.Leaf("totalAmount", condition.OpGt, condition.Number(decimal.NewFromInt(1000))),
		Priority:  10,
		IsActive:  true,

		DenialReasonTemplate: "Claim total {totalAmount} exceeds the automatic limit",
	}
}

func TestCreateAssignsVersionOne(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validRule("High amount check"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if created.CurrentVersion != 1 {
		t.Errorf("CurrentVersion = %d, want 1", created.CurrentVersion)
	}

	versions, err := svc.Versions(ctx, created.ID)
	if err != nil {
		t.Fatalf("Versions() failed: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	if versions[0].VersionNumber != 1 {
		t.Errorf("initial version number = %d, want 1", versions[0].VersionNumber)
	}
}

func TestCreateGeneratesCodes(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	testCases := []struct {
		name       string
		mutate     func(*Rule)
		wantPrefix string
	}{
		{"validation rule", func(r *Rule) {}, "VAL-"},
		{"adjudication rule", func(r *Rule) { r.Type = TypeAdjudication }, "ADJ-"},
		{"calculate rule", func(r *Rule) {
			r.Type = TypeAdjudication
			r.Action = ActionCalculate
			r.Adjustment = &Adjustment{Type: AdjustmentPercentage, Value: decimal.NewFromInt(-10)}
		}, "CAL-"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := validRule(tc.name)
			tc.mutate(rule)
			created, err := svc.Create(ctx, rule)
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			if len(created.Code) < 5 || created.Code[:4] != tc.wantPrefix {
				t.Errorf("generated code = %q, want prefix %q", created.Code, tc.wantPrefix)
			}
		})
	}
}

func TestCreateRejectsInvalidRules(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	testCases := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"missing name", func(r *Rule) { r.Name = "" }},
		{"unknown type", func(r *Rule) { r.Type = "notification" }},
		{"unknown action", func(r *Rule) { r.Action = "transform" }},
		{"calculate without adjustment", func(r *Rule) { r.Action = ActionCalculate; r.Adjustment = nil }},
		{"nil condition", func(r *Rule) { r.Condition = nil }},
		{"inverted window", func(r *Rule) {
			from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			r.EffectiveFrom, r.EffectiveTo = &from, &to
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := validRule(tc.name)
			tc.mutate(rule)
			if _, err := svc.Create(ctx, rule); err == nil {
				t.Error("Create() should have rejected the rule")
			}
		})
	}
}

func TestUpdateAppendsVersion(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validRule("rule"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	created.Priority = 50
	updated, err := svc.Update(ctx, created, 1, "Priority changed")
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.CurrentVersion != 2 {
		t.Errorf("CurrentVersion = %d, want 2", updated.CurrentVersion)
	}

	versions, _ := svc.Versions(ctx, created.ID)
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	// Newest first.
	if versions[0].VersionNumber != 2 || versions[0].Priority != 50 {
		t.Errorf("latest version = %+v, want number 2 priority 50", versions[0])
	}
	// History unchanged.
	if versions[1].VersionNumber != 1 || versions[1].Priority != 10 {
		t.Errorf("original version = %+v, want number 1 priority 10", versions[1])
	}
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validRule("rule"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// First editor saves against version 1.
	first := created.Clone()
	first.Priority = 20
	if _, err := svc.Update(ctx, first, 1, ""); err != nil {
		t.Fatalf("first Update() failed: %v", err)
	}

	// Second editor also read version 1; their save must fail.
	second := created.Clone()
	second.Priority = 30
	_, err = svc.Update(ctx, second, 1, "")

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Update() error = %v, want *ConflictError", err)
	}
	if conflict.CurrentVersion != 2 {
		t.Errorf("conflict CurrentVersion = %d, want 2 for reload", conflict.CurrentVersion)
	}

	// The stale write must not have landed.
	fetched, _ := svc.Get(ctx, created.ID)
	if fetched.Priority != 20 {
		t.Errorf("priority = %d, want 20 (stale write must be rejected)", fetched.Priority)
	}
}

func TestRollbackCopiesTargetIntoNewVersion(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validRule("rule"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// Version 2 changes priority and condition.
	v2 := created.Clone()
	v2.Priority = 99
	v2.Condition = condition.Leaf("patient.age", condition.OpLt, condition.Number(decimal.NewFromInt(18)))
	if _, err := svc.Update(ctx, v2, 1, ""); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	// Roll back to version 1.
	rolledBack, err := svc.Rollback(ctx, created.ID, 1, 2)
	if err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}

	if rolledBack.Priority != 10 {
		t.Errorf("priority after rollback = %d, want 10", rolledBack.Priority)
	}
	if rolledBack.Condition.Field != "totalAmount" {
		t.Errorf("condition after rollback references %q, want totalAmount", rolledBack.Condition.Field)
	}
	if rolledBack.CurrentVersion != 3 {
		t.Errorf("CurrentVersion = %d, want max(existing)+1 = 3", rolledBack.CurrentVersion)
	}

	versions, _ := svc.Versions(ctx, created.ID)
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions after rollback, got %d", len(versions))
	}
	// Version 2 must survive untouched.
	if versions[1].VersionNumber != 2 || versions[1].Priority != 99 {
		t.Errorf("version 2 = %+v, want untouched priority 99", versions[1])
	}
}

func TestRollbackWithStaleVersionConflicts(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, _ := svc.Create(ctx, validRule("rule"))
	v2 := created.Clone()
	v2.Priority = 20
	if _, err := svc.Update(ctx, v2, 1, ""); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	_, err := svc.Rollback(ctx, created.ID, 1, 1) // expectedVersion is stale
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Rollback() error = %v, want *ConflictError", err)
	}
}

func TestDeactivateKeepsRuleAndHistory(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, _ := svc.Create(ctx, validRule("rule"))
	if err := svc.Deactivate(ctx, created.ID); err != nil {
		t.Fatalf("Deactivate() failed: %v", err)
	}

	fetched, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() after deactivate failed: %v", err)
	}
	if fetched.IsActive {
		t.Error("rule should be inactive")
	}

	versions, err := svc.Versions(ctx, created.ID)
	if err != nil || len(versions) != 1 {
		t.Errorf("version history should survive deactivation, got %d versions, err %v", len(versions), err)
	}
}

func TestLoadSnapshotUsesCache(t *testing.T) {
	store := NewInMemoryStore()
	cache := NewInMemoryCache(DefaultCacheConfig())
	svc := NewService(store, cache)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validRule("rule")); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	first, err := svc.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if len(first.Rules) != 1 {
		t.Fatalf("snapshot rules = %d, want 1", len(first.Rules))
	}

	// Second load must come from cache: same snapshot value.
	second, err := svc.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if second != first {
		t.Error("second load should return the cached snapshot")
	}

	// A mutation invalidates the cache.
	if _, err := svc.Create(ctx, validRule("another")); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	third, err := svc.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if len(third.Rules) != 2 {
		t.Errorf("snapshot after mutation has %d rules, want 2", len(third.Rules))
	}
}
