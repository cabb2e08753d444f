// Package feeschedule holds contracted prices per procedure code, effective
// dated the same way rules are. Before adjudication the service reprices each
// claim line that has a scheduled price for the claim's service date.
package feeschedule

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no schedule entry covers a code on a date.
var ErrNotFound = errors.New("fee schedule entry not found")

// Entry is one contracted price. EffectiveUntil nil means open-ended.
type Entry struct {
	ProcedureCode  string          `json:"procedureCode"`
	Description    string          `json:"description,omitempty"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	EffectiveFrom  time.Time       `json:"effectiveFrom"`
	EffectiveUntil *time.Time      `json:"effectiveUntil,omitempty"`
}

// Covers reports whether the entry is in force on the given date. Both bounds
// are inclusive, matching rule effective windows.
func (e *Entry) Covers(asOf time.Time) bool {
	if asOf.Before(e.EffectiveFrom) {
		return false
	}
	if e.EffectiveUntil != nil && asOf.After(*e.EffectiveUntil) {
		return false
	}
	return true
}

// Store looks up contracted prices.
type Store interface {
	// Lookup returns the entry covering code on asOf, or ErrNotFound.
	Lookup(ctx context.Context, procedureCode string, asOf time.Time) (*Entry, error)
	// Put inserts or replaces an entry for its code and effective-from date.
	Put(ctx context.Context, entry *Entry) error
}
