package feeschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahcip/adjudication/claims"
)

// Reprice returns a copy of the claim with each line's unit price replaced by
// the scheduled price in force on the claim's service date, plus the codes
// that were repriced. Lines without a schedule entry keep their submitted
// price. The input claim is never mutated.
func Reprice(ctx context.Context, store Store, claim *claims.Snapshot, asOf time.Time) (*claims.Snapshot, []string, error) {
	if store == nil {
		return claim, nil, nil
	}

	repriced := *claim
	repriced.ServiceLines = make([]claims.ServiceLine, len(claim.ServiceLines))
	copy(repriced.ServiceLines, claim.ServiceLines)

	var codes []string
	for i, line := range repriced.ServiceLines {
		entry, err := store.Lookup(ctx, line.ProcedureCode, asOf)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reprice %s: %w", line.ProcedureCode, err)
		}
		if entry.UnitPrice.Equal(line.UnitPrice) {
			continue
		}
		repriced.ServiceLines[i].UnitPrice = entry.UnitPrice
		codes = append(codes, line.ProcedureCode)
	}
	return &repriced, codes, nil
}
