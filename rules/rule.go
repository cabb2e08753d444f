// Package rules holds the adjudication rule model, its append-only version
// lineage, the persistence interfaces and the selector that orders the active
// rule set for an evaluation run.
package rules

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/condition"
)

// Type is the evaluation phase a rule belongs to.
type Type string

const (
	TypeValidation   Type = "validation"
	TypeAdjudication Type = "adjudication"
)

// Action is what a rule does when its condition matches.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionDeny      Action = "deny"
	ActionFlag      Action = "flag"
	ActionCalculate Action = "calculate"
)

// AdjustmentType selects how a calculate rule moves the running payment total.
type AdjustmentType string

const (
	AdjustmentPercentage AdjustmentType = "percentage"
	AdjustmentFixed      AdjustmentType = "fixed"
)

// Adjustment is the payment delta a calculate rule applies. A percentage of
// -10 reduces the running total by 10%; a fixed value of -25 subtracts 25.
type Adjustment struct {
	Type  AdjustmentType  `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Rule is a versioned, prioritized, time-effective business rule. Lower
// priority evaluates first.
type Rule struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`

	Type       Type            `json:"type"`
	Action     Action          `json:"action"`
	Condition  *condition.Node `json:"condition"`
	Adjustment *Adjustment     `json:"adjustment,omitempty"`
	Priority   int             `json:"priority"`

	IsActive      bool       `json:"isActive"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`

	DenialReasonTemplate string   `json:"denialReasonTemplate,omitempty"`
	FlagReasonTemplate   string   `json:"flagReasonTemplate,omitempty"`
	Category             string   `json:"category,omitempty"`
	Tags                 []string `json:"tags,omitempty"`

	CurrentVersion int       `json:"currentVersion"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EffectiveAt reports whether asOf falls inside the rule's effective window.
// Both bounds are inclusive; a nil bound is open.
func (r *Rule) EffectiveAt(asOf time.Time) bool {
	if r.EffectiveFrom != nil && asOf.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && asOf.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// Clone returns a copy so stores can hand out rules without exposing their
// internal state to mutation. The condition tree is shared: it is treated as
// immutable once saved.
func (r *Rule) Clone() *Rule {
	c := *r
	if r.EffectiveFrom != nil {
		from := *r.EffectiveFrom
		c.EffectiveFrom = &from
	}
	if r.EffectiveTo != nil {
		to := *r.EffectiveTo
		c.EffectiveTo = &to
	}
	if r.Adjustment != nil {
		adj := *r.Adjustment
		c.Adjustment = &adj
	}
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	return &c
}

// Version is an immutable snapshot of a rule's behavior-bearing fields,
// appended on every save. Rollback copies a historical version's fields into
// a new version; history is never rewritten.
type Version struct {
	ID                uuid.UUID       `json:"id"`
	RuleID            uuid.UUID       `json:"ruleId"`
	VersionNumber     int             `json:"versionNumber"`
	Condition         *condition.Node `json:"condition"`
	Action            Action          `json:"action"`
	Adjustment        *Adjustment     `json:"adjustment,omitempty"`
	Priority          int             `json:"priority"`
	ChangeDescription string          `json:"changeDescription,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// snapshotVersion captures the rule's current behavior as a version row.
func snapshotVersion(r *Rule, number int, changeDescription string, at time.Time) *Version {
	return &Version{
		ID:                uuid.New(),
		RuleID:            r.ID,
		VersionNumber:     number,
		Condition:         r.Condition,
		Action:            r.Action,
		Adjustment:        r.Adjustment,
		Priority:          r.Priority,
		ChangeDescription: changeDescription,
		CreatedAt:         at,
	}
}
