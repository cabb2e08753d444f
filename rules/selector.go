package rules

import (
	"time"
)

// Snapshot is the rule set view for one evaluation run, loaded once so every
// rule in the run observes the same state.
type Snapshot struct {
	Rules    []*Rule   `json:"rules"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Exclusion records a rule of the requested phase that was filtered out
// before evaluation, with the reason. The tracer records these so an audit
// can answer why a rule did not run.
type Exclusion struct {
	Rule   *Rule
	Reason string
}

// Exclusion reasons.
const (
	ExcludedInactive      = "inactive"
	ExcludedNotYetInForce = "before effective window"
	ExcludedExpired       = "after effective window"
)

// Select filters the snapshot down to the rules that apply to one phase as of
// the evaluation date, ordered ascending by priority.
//
// Priority ties are broken by lexicographic rule code. The product notes ask
// for "most restrictive rule wins" but never define restrictiveness; until
// that is pinned down the code tie-break keeps ordering deterministic.
func Select(snap *Snapshot, phase Type, asOf time.Time) (ordered []*Rule, excluded []Exclusion) {
	for _, rule := range snap.Rules {
		if rule.Type != phase {
			continue
		}
		switch {
		case !rule.IsActive:
			excluded = append(excluded, Exclusion{Rule: rule, Reason: ExcludedInactive})
		case rule.EffectiveFrom != nil && asOf.Before(*rule.EffectiveFrom):
			excluded = append(excluded, Exclusion{Rule: rule, Reason: ExcludedNotYetInForce})
		case rule.EffectiveTo != nil && asOf.After(*rule.EffectiveTo):
			excluded = append(excluded, Exclusion{Rule: rule, Reason: ExcludedExpired})
		default:
			ordered = append(ordered, rule)
		}
	}
	sortRules(ordered)
	return ordered, excluded
}
