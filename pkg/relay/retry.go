package relay

import (
	"time"

	"github.com/swapline/relayer/pkg/ledger"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// back off before the next one.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Base: 500 * time.Millisecond, Cap: 30 * time.Second}
}

// ShouldRetry is true while attempts remain and the failure is transient.
// Deterministic failures (invalid order, insufficient funds) go straight
// to Failed.
func (p RetryPolicy) ShouldRetry(attempts int, err error) bool {
	if attempts >= p.MaxAttempts {
		return false
	}
	return ledger.Classify(err) == ledger.Transient
}

// DelayFor returns the backoff before retrying after the given attempt
// count: Base * 2^(attempts-1), capped.
func (p RetryPolicy) DelayFor(attempts int) time.Duration {
	if attempts < 1 {
		return p.Base
	}
	shift := attempts - 1
	// 2^30 * any sane base already exceeds the cap.
	if shift > 30 {
		return p.Cap
	}
	d := p.Base * time.Duration(1<<uint(shift))
	if d > p.Cap {
		return p.Cap
	}
	return d
}
