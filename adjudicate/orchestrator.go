// Package adjudicate contains the decision engine: the orchestrator that
// sequences validation, adjudication and finalization over a rule-set
// snapshot, the fee calculator, the execution tracer and the service facade
// that wires them to repositories, locking and audit.
package adjudicate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahcip/adjudication/claims"
	"github.com/ahcip/adjudication/condition"
	"github.com/ahcip/adjudication/rules"
)

// EvalContext carries the explicit inputs of one run. The as-of date comes
// from the caller, never from the system clock, so identical inputs always
// produce identical decisions.
type EvalContext struct {
	AsOf   time.Time
	DryRun bool

	// RepricedCodes is set by the service when fee-schedule pricing replaced
	// line prices before evaluation; it is carried onto the outcome.
	RepricedCodes []string
}

// Orchestrator runs the adjudication state machine:
//
//	VALIDATION → ADJUDICATION → FINALIZATION → {APPROVED | DENIED | PENDING_REVIEW}
//
// It is stateless and safe for concurrent use across independent claims; all
// state for a run lives in the run struct below.
type Orchestrator struct{}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{}
}

// run is the mutable state of one pass through the machine.
type run struct {
	claim   *claims.Snapshot
	tracer  tracer
	applied []AppliedRule

	denied       bool
	denialReason string
	flagged      bool
	flagReason   string
	adjustments  []rules.Adjustment
}

// Run adjudicates one claim against one rule-set snapshot. The claim and the
// snapshot are never mutated; everything the run produced is on the returned
// Outcome. ctx carries the evaluation deadline: when it expires the run is
// abandoned with ErrEvaluationTimeout and no partial outcome.
func (o *Orchestrator) Run(ctx context.Context, snap *rules.Snapshot, claim *claims.Snapshot, ec EvalContext) (*Outcome, error) {
	if snap == nil || len(snap.Rules) == 0 {
		return nil, ErrMissingRuleSet
	}

	r := &run{claim: claim}

	// VALIDATION: deny short-circuits the phase, flag does not.
	if err := o.runPhase(ctx, r, snap, rules.TypeValidation, ec.AsOf); err != nil {
		return nil, err
	}

	// ADJUDICATION: skipped wholesale when validation denied, but every rule
	// still gets a trace entry saying so.
	if err := o.runPhase(ctx, r, snap, rules.TypeAdjudication, ec.AsOf); err != nil {
		return nil, err
	}

	// FINALIZATION.
	return o.finalize(r, ec), nil
}

func (o *Orchestrator) runPhase(ctx context.Context, r *run, snap *rules.Snapshot, phase rules.Type, asOf time.Time) error {
	ordered, excluded := rules.Select(snap, phase, asOf)
	for _, ex := range excluded {
		r.tracer.recordExcluded(ex.Rule, ex.Reason)
	}

	for _, rule := range ordered {
		if r.denied {
			r.tracer.recordExcluded(rule, SkipShortCircuited)
			continue
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrEvaluationTimeout, ctx.Err())
		default:
		}

		o.evalRule(r, rule)
	}
	return nil
}

// evalRule evaluates one rule's condition and applies its action. A rule
// whose condition is structurally broken is recorded as errored and excluded;
// the rest of the run continues.
func (o *Orchestrator) evalRule(r *run, rule *rules.Rule) {
	start := time.Now()

	if err := condition.Validate(rule.Condition); err != nil {
		r.tracer.record(TraceEntry{
			RuleID:        rule.ID,
			RuleCode:      rule.Code,
			VersionNumber: rule.CurrentVersion,
			Phase:         rule.Type,
			Priority:      rule.Priority,
			SkipReason:    ReasonMalformed,
			Elapsed:       time.Since(start),
		})
		return
	}

	matched, leafTraces := condition.Evaluate(rule.Condition, r.claim)
	entry := TraceEntry{
		RuleID:        rule.ID,
		RuleCode:      rule.Code,
		VersionNumber: rule.CurrentVersion,
		Phase:         rule.Type,
		Priority:      rule.Priority,
		Condition:     leafTraces,
		Result:        &matched,
	}

	if matched {
		entry.ActionTaken = rule.Action
		o.applyAction(r, rule)
	}

	entry.Elapsed = time.Since(start)
	r.tracer.record(entry)
}

func (o *Orchestrator) applyAction(r *run, rule *rules.Rule) {
	switch rule.Action {
	case rules.ActionDeny:
		r.denied = true
		r.denialReason = denialReason(rule, r.claim)
		r.recordApplied(rule)

	case rules.ActionFlag:
		// Flags never short-circuit; the first flag reason wins.
		if !r.flagged {
			r.flagged = true
			r.flagReason = flagReason(rule, r.claim)
		}
		r.recordApplied(rule)

	case rules.ActionCalculate:
		if rule.Type == rules.TypeAdjudication && rule.Adjustment != nil {
			r.adjustments = append(r.adjustments, *rule.Adjustment)
			r.recordApplied(rule)
		}

	case rules.ActionApprove:
		// Approval is the default adjudication result; a matched approve rule
		// is recorded as applied but changes nothing on its own.
		if rule.Type == rules.TypeAdjudication {
			r.recordApplied(rule)
		}
	}
}

func (r *run) recordApplied(rule *rules.Rule) {
	r.applied = append(r.applied, AppliedRule{
		RuleID:        rule.ID,
		RuleCode:      rule.Code,
		VersionNumber: rule.CurrentVersion,
		Action:        rule.Action,
	})
}

// finalize folds the phase results into the terminal status. A validation
// flag always forces PENDING_REVIEW, but the computed payment is still
// attached as the reviewer's suggestion.
func (o *Orchestrator) finalize(r *run, ec EvalContext) *Outcome {
	submitted := r.claim.SubmittedTotal().Round(2)
	out := &Outcome{
		ClaimID:         r.claim.ID,
		ClaimNumber:     r.claim.ClaimNumber,
		SubmittedAmount: submitted,
		RepricedCodes:   ec.RepricedCodes,
		RulesApplied:    r.applied,
		Trace:           r.tracer.entries,
		AsOfDate:        ec.AsOf,
		DryRun:          ec.DryRun,
		EvaluatedAt:     time.Now().UTC(),
	}
	if out.RulesApplied == nil {
		out.RulesApplied = []AppliedRule{}
	}

	switch {
	case r.denied:
		out.Status = StatusDenied
		out.DenialReason = r.denialReason
		out.PaymentAmount = decimal.Zero
		out.AdjustmentAmount = decimal.Zero

	case r.flagged:
		out.Status = StatusPendingReview
		out.FlagReason = r.flagReason
		out.PaymentAmount = ComputePayment(r.claim.SubmittedTotal(), r.adjustments)
		out.AdjustmentAmount = out.PaymentAmount.Sub(submitted)

	default:
		out.Status = StatusApproved
		out.PaymentAmount = ComputePayment(r.claim.SubmittedTotal(), r.adjustments)
		out.AdjustmentAmount = out.PaymentAmount.Sub(submitted)
	}
	return out
}

func denialReason(rule *rules.Rule, facts condition.Facts) string {
	if rule.DenialReasonTemplate == "" {
		return fmt.Sprintf("Denied by rule %s", rule.Code)
	}
	return interpolate(rule.DenialReasonTemplate, facts)
}

func flagReason(rule *rules.Rule, facts condition.Facts) string {
	if rule.FlagReasonTemplate == "" {
		return fmt.Sprintf("Flagged by rule %s", rule.Code)
	}
	return interpolate(rule.FlagReasonTemplate, facts)
}
