package adjudicate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrMissingRuleSet is returned when adjudication is attempted with no
	// rules loaded. The engine refuses to silently approve a claim just
	// because nothing was configured to stop it.
	ErrMissingRuleSet = errors.New("no adjudication rules loaded")

	// ErrEvaluationTimeout is returned when a run exceeds its deadline. The
	// claim is left unchanged; the caller may retry.
	ErrEvaluationTimeout = errors.New("evaluation timed out")
)

// LockContentionError is returned to the second of two concurrent
// adjudication attempts for the same claim.
type LockContentionError struct {
	ClaimID uuid.UUID
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("claim %s is already being adjudicated", e.ClaimID)
}
