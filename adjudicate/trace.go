package adjudicate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/ahcip/adjudication/condition"
	"github.com/ahcip/adjudication/rules"
)

// Skip and error reasons recorded on trace entries.
const (
	SkipShortCircuited = "skipped — short-circuited"
	ReasonMalformed    = "errored — malformed rule, excluded from run"
)

// TraceEntry records one rule considered during a run: either the full
// condition evaluation, or why the rule never ran. One entry exists for every
// rule the selector saw, which is what makes the audit trail able to answer
// "why" for any decision.
type TraceEntry struct {
	RuleID        uuid.UUID             `json:"ruleId"`
	RuleCode      string                `json:"ruleCode"`
	VersionNumber int                   `json:"versionNumber"`
	Phase         rules.Type            `json:"phase"`
	Priority      int                   `json:"priority"`
	Condition     []condition.LeafTrace `json:"conditionTrace,omitempty"`
	Result        *bool                 `json:"result,omitempty"`
	ActionTaken   rules.Action          `json:"actionTaken,omitempty"`
	SkipReason    string                `json:"skipReason,omitempty"`

	// Elapsed is wall-clock observability only. It is excluded from the
	// canonical form so dry-run and live traces of the same inputs stay
	// byte-identical.
	Elapsed time.Duration `json:"elapsedNs,omitempty"`
}

// tracer accumulates entries in evaluation order.
type tracer struct {
	entries []TraceEntry
}

func (t *tracer) record(e TraceEntry) {
	t.entries = append(t.entries, e)
}

func (t *tracer) recordExcluded(rule *rules.Rule, reason string) {
	t.record(TraceEntry{
		RuleID:        rule.ID,
		RuleCode:      rule.Code,
		VersionNumber: rule.CurrentVersion,
		Phase:         rule.Type,
		Priority:      rule.Priority,
		SkipReason:    reason,
	})
}

// CanonicalTrace renders the outcome's decision-bearing content as canonical
// JSON (RFC 8785). Fields that vary between otherwise identical runs (timings,
// the run timestamp, the dry-run flag) are cleared first, so a dry run and a
// live run over the same inputs canonicalize to identical bytes.
// Audit checksums and dry-run/live parity checks both build on this.
func CanonicalTrace(o *Outcome) ([]byte, error) {
	stripped := *o
	stripped.EvaluatedAt = time.Time{}
	stripped.DryRun = false
	stripped.Trace = make([]TraceEntry, len(o.Trace))
	for i, e := range o.Trace {
		e.Elapsed = 0
		stripped.Trace[i] = e
	}

	raw, err := json.Marshal(&stripped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outcome: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize outcome: %w", err)
	}
	return canonical, nil
}
