package main

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/claims"
	"github.com/ahcip/adjudication/rules"
)

// API request and response models.

// AdjudicateRequest is the body for POST /claims/{claimId}/adjudicate.
type AdjudicateRequest struct {
	AsOfDate string `json:"asOfDate" example:"2025-03-15"`
	DryRun   bool   `json:"dryRun,omitempty"`
}

// CreateRuleRequest is the body for POST /rules. Condition stays raw here;
// toRule runs it through condition.Parse so a malformed tree is rejected
// before anything touches the store.
type CreateRuleRequest struct {
	Name                 string            `json:"name" binding:"required"`
	Description          string            `json:"description,omitempty"`
	Type                 rules.Type        `json:"type" binding:"required"`
	Action               rules.Action      `json:"action" binding:"required"`
	Condition            json.RawMessage   `json:"condition" binding:"required"`
	Adjustment           *rules.Adjustment `json:"adjustment,omitempty"`
	Priority             int               `json:"priority"`
	IsActive             *bool             `json:"isActive,omitempty"`
	EffectiveFrom        *time.Time        `json:"effectiveFrom,omitempty"`
	EffectiveTo          *time.Time        `json:"effectiveTo,omitempty"`
	DenialReasonTemplate string            `json:"denialReasonTemplate,omitempty"`
	FlagReasonTemplate   string            `json:"flagReasonTemplate,omitempty"`
	Category             string            `json:"category,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
}

// UpdateRuleRequest is the body for PUT /rules/{ruleId}. ExpectedVersion is
// the version the caller last read; a stale value gets 409.
type UpdateRuleRequest struct {
	CreateRuleRequest
	ExpectedVersion   int    `json:"expectedVersion" binding:"required"`
	ChangeDescription string `json:"changeDescription,omitempty"`
}

// RollbackRequest is the body for POST /rules/{ruleId}/rollback.
type RollbackRequest struct {
	TargetVersion   int `json:"targetVersion" binding:"required"`
	ExpectedVersion int `json:"expectedVersion" binding:"required"`
}

// TestRulesRequest is the body for POST /rules/test. The claim is synthetic
// and exists only for this request.
type TestRulesRequest struct {
	RuleIDs     []string          `json:"ruleIds" binding:"required"`
	ServiceDate string            `json:"serviceDate" binding:"required"`
	Lines       []TestServiceLine `json:"serviceLines"`
	Attributes  map[string]any    `json:"attributes,omitempty"`
}

// TestServiceLine is one synthetic claim line.
type TestServiceLine struct {
	ProcedureCode string          `json:"procedureCode"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
}

func (l TestServiceLine) toServiceLine() claims.ServiceLine {
	return claims.ServiceLine{
		ProcedureCode: l.ProcedureCode,
		Quantity:      l.Quantity,
		UnitPrice:     l.UnitPrice,
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ConflictResponse extends the error body with the version numbers the
// caller needs to retry an optimistic-concurrency failure.
type ConflictResponse struct {
	Error           string `json:"error"`
	ExpectedVersion int    `json:"expectedVersion"`
	CurrentVersion  int    `json:"currentVersion"`
}
