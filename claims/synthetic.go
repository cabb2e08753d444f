package claims

import (
	"time"

	"github.com/google/uuid"
)

// Synthetic builds a claim snapshot for dry-run rule testing. The caller
// supplies whatever attributes the rules under test reference; nothing is
// read from or written to live stores.
func Synthetic(serviceDate time.Time, lines []ServiceLine, attributes map[string]any) *Snapshot {
	return &Snapshot{
		ID:           uuid.New(),
		ClaimNumber:  "TEST-" + uuid.NewString()[:8],
		ServiceDate:  serviceDate,
		ServiceLines: lines,
		Attributes:   attributes,
		SubmittedAt:  serviceDate,
	}
}
