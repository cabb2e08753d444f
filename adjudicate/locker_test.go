package adjudicate

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestClaimLocker(t *testing.T) {
	locker := newClaimLocker()
	claimA := uuid.New()
	claimB := uuid.New()

	if err := locker.tryLock(claimA); err != nil {
		t.Fatalf("tryLock() error = %v", err)
	}

	err := locker.tryLock(claimA)
	var contention *LockContentionError
	if !errors.As(err, &contention) {
		t.Fatalf("second tryLock() error = %v, want *LockContentionError", err)
	}
	if contention.ClaimID != claimA {
		t.Errorf("contention claim = %s, want %s", contention.ClaimID, claimA)
	}

	// Different claims never contend with each other.
	if err := locker.tryLock(claimB); err != nil {
		t.Errorf("tryLock(other claim) error = %v", err)
	}

	locker.unlock(claimA)
	if err := locker.tryLock(claimA); err != nil {
		t.Errorf("tryLock() after unlock error = %v", err)
	}
}

func TestClaimLockerConcurrent(t *testing.T) {
	locker := newClaimLocker()
	claimID := uuid.New()

	const attempts = 50
	var wg sync.WaitGroup
	acquired := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := locker.tryLock(claimID); err == nil {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	if got := len(acquired); got != 1 {
		t.Errorf("lock acquired by %d goroutines, want exactly 1", got)
	}
}
