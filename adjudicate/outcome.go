package adjudicate

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/rules"
)

// Status is the terminal decision for a claim.
type Status string

const (
	StatusApproved      Status = "approved"
	StatusDenied        Status = "denied"
	StatusPendingReview Status = "pending_review"
)

// AppliedRule identifies a rule whose action took effect, pinned to the
// version that was live when it ran.
type AppliedRule struct {
	RuleID        uuid.UUID    `json:"ruleId"`
	RuleCode      string       `json:"ruleCode"`
	VersionNumber int          `json:"versionNumber"`
	Action        rules.Action `json:"action"`
}

// Outcome is the complete, self-contained result of one adjudication run.
// The engine produces it and nothing else; persisting it is the audit sink's
// job.
type Outcome struct {
	ClaimID     uuid.UUID `json:"claimId"`
	ClaimNumber string    `json:"claimNumber"`
	Status      Status    `json:"status"`

	SubmittedAmount  decimal.Decimal `json:"submittedAmount"`
	AdjustmentAmount decimal.Decimal `json:"adjustmentAmount"`
	PaymentAmount    decimal.Decimal `json:"paymentAmount"`

	DenialReason string `json:"denialReason,omitempty"`
	FlagReason   string `json:"flagReason,omitempty"`

	// RepricedCodes lists procedure codes whose unit price was replaced from
	// the fee schedule before evaluation.
	RepricedCodes []string `json:"repricedCodes,omitempty"`

	RulesApplied []AppliedRule `json:"rulesApplied"`
	Trace        []TraceEntry  `json:"trace"`

	AsOfDate    time.Time `json:"asOfDate"`
	DryRun      bool      `json:"dryRun"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}
