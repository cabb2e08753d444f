package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores for unknown rules, codes or versions.
var ErrNotFound = errors.New("rule not found")

// ConflictError reports a stale optimistic-concurrency write. The caller must
// reload the rule at CurrentVersion and retry.
type ConflictError struct {
	RuleID          uuid.UUID
	ExpectedVersion int
	CurrentVersion  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rule %s was modified concurrently: expected version %d, current version is %d",
		e.RuleID, e.ExpectedVersion, e.CurrentVersion)
}

// Filter narrows List results.
type Filter struct {
	Type     *Type
	IsActive *bool
	Category string
}

// Store persists rules and their version lineage.
//
// Update must be atomic: the optimistic version check, the rule row update and
// the version append either all happen or none do.
type Store interface {
	// Create persists a new rule together with its initial version.
	Create(ctx context.Context, rule *Rule, initial *Version) error

	// Get returns a rule by ID, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Rule, error)

	// GetByCode returns a rule by its unique code, or ErrNotFound.
	GetByCode(ctx context.Context, code string) (*Rule, error)

	// List returns rules matching the filter, ordered by priority then code.
	List(ctx context.Context, f Filter) ([]*Rule, error)

	// ListActive returns all active rules, ordered by priority then code.
	ListActive(ctx context.Context) ([]*Rule, error)

	// Update writes the rule and appends the new version if the stored
	// current_version equals expectedVersion; otherwise it returns a
	// *ConflictError carrying the current version.
	Update(ctx context.Context, rule *Rule, expectedVersion int, next *Version) error

	// SetActive toggles the rule's active flag without creating a version.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Versions returns the full version lineage, newest first.
	Versions(ctx context.Context, ruleID uuid.UUID) ([]*Version, error)

	// GetVersion returns one version by its per-rule number, or ErrNotFound.
	GetVersion(ctx context.Context, ruleID uuid.UUID, versionNumber int) (*Version, error)

	// CountByCodePrefix counts rules whose code starts with prefix. Used for
	// rule code generation.
	CountByCodePrefix(ctx context.Context, prefix string) (int, error)
}
