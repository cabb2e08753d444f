package adjudicate

import (
	"sync"

	"github.com/google/uuid"
)

// claimLocker enforces at most one in-flight adjudication per claim ID inside
// this process. A second attempt fails fast instead of queueing; racing two
// runs for the same claim would make the audit trail ambiguous. If the engine
// is ever deployed multi-node behind one claim store, this is the seam where
// a shared lock (e.g. Redis SET NX) would replace the local set.
type claimLocker struct {
	inFlight map[uuid.UUID]bool
	mu       sync.Mutex
}

func newClaimLocker() *claimLocker {
	return &claimLocker{inFlight: make(map[uuid.UUID]bool)}
}

// tryLock reserves the claim, or returns *LockContentionError if an
// adjudication for it is already running.
func (l *claimLocker) tryLock(claimID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[claimID] {
		return &LockContentionError{ClaimID: claimID}
	}
	l.inFlight[claimID] = true
	return nil
}

func (l *claimLocker) unlock(claimID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, claimID)
}
