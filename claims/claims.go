// Package claims defines the read-only claim snapshot the adjudication engine
// evaluates against, and the repository interface it is fetched through.
package claims

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceLine is one billed service on a claim.
type ServiceLine struct {
	ProcedureCode string          `json:"procedureCode"`
	Description   string          `json:"description,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
}

// Amount returns unitPrice x quantity, unrounded.
func (l ServiceLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

// Snapshot is an immutable view of a claim at evaluation time. The engine
// never writes to it; all adjudication output lands in a separate outcome.
type Snapshot struct {
	ID             uuid.UUID      `json:"id"`
	ClaimNumber    string         `json:"claimNumber"`
	ProviderID     uuid.UUID      `json:"providerId"`
	ServiceDate    time.Time      `json:"serviceDate"`
	ServiceEndDate *time.Time     `json:"serviceEndDate,omitempty"`
	ServiceLines   []ServiceLine  `json:"serviceLines"`
	Patient        map[string]any `json:"patient,omitempty"`
	Provider       map[string]any `json:"provider,omitempty"`

	// Attributes holds the claim form fields that are not first-class columns
	// (referral numbers, facility codes, attached-document flags and so on).
	// They resolve as top-level condition fields.
	Attributes map[string]any `json:"attributes,omitempty"`

	SubmittedAt time.Time `json:"submittedAt"`
}

// SubmittedTotal sums unitPrice x quantity over all service lines.
func (s *Snapshot) SubmittedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.ServiceLines {
		total = total.Add(line.Amount())
	}
	return total
}

// Resolve implements condition.Facts with dotted-path lookup.
//
// Resolvable paths:
//   - claim attributes: claimNumber, serviceDate, totalAmount, lineCount
//   - the primary (first) service line's fields promoted to the top level:
//     procedureCode, quantity, unitPrice
//   - any line by index: serviceLines.0.procedureCode
//   - nested maps: patient.age, provider.specialty
//   - every key in Attributes at the top level
func (s *Snapshot) Resolve(path string) (any, bool) {
	segments := strings.Split(path, ".")
	head := segments[0]

	var cur any
	switch head {
	case "claimNumber":
		cur = s.ClaimNumber
	case "serviceDate":
		cur = s.ServiceDate
	case "serviceEndDate":
		if s.ServiceEndDate == nil {
			return nil, false
		}
		cur = *s.ServiceEndDate
	case "totalAmount":
		cur = s.SubmittedTotal()
	case "lineCount":
		cur = len(s.ServiceLines)
	case "procedureCode", "quantity", "unitPrice":
		if len(s.ServiceLines) == 0 {
			return nil, false
		}
		return resolveLine(s.ServiceLines[0], head)
	case "serviceLines":
		return s.resolveLinePath(segments[1:])
	case "patient":
		cur = s.Patient
	case "provider":
		cur = s.Provider
	default:
		v, ok := s.Attributes[head]
		if !ok {
			return nil, false
		}
		cur = v
	}

	return descend(cur, segments[1:])
}

func (s *Snapshot) resolveLinePath(segments []string) (any, bool) {
	if len(segments) == 0 {
		return nil, false
	}
	idx, err := strconv.Atoi(segments[0])
	if err != nil || idx < 0 || idx >= len(s.ServiceLines) {
		return nil, false
	}
	if len(segments) == 1 {
		return nil, false
	}
	v, ok := resolveLine(s.ServiceLines[idx], segments[1])
	if !ok {
		return nil, false
	}
	return descend(v, segments[2:])
}

func resolveLine(line ServiceLine, field string) (any, bool) {
	switch field {
	case "procedureCode":
		return line.ProcedureCode, true
	case "description":
		return line.Description, true
	case "quantity":
		return line.Quantity, true
	case "unitPrice":
		return line.UnitPrice, true
	case "amount":
		return line.Amount(), true
	}
	return nil, false
}

func descend(cur any, segments []string) (any, bool) {
	for _, seg := range segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Repository fetches immutable claim snapshots. The persistence layer behind
// it is an external collaborator.
type Repository interface {
	Snapshot(ctx context.Context, claimID uuid.UUID) (*Snapshot, error)
}
