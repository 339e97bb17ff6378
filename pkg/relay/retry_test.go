package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swapline/relayer/pkg/ledger"
)

func TestRetryPolicyClassification(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Base: time.Second, Cap: time.Minute}

	transient := &ledger.SubmitError{Class: ledger.Transient, Code: "congestion"}
	permanent := &ledger.SubmitError{Class: ledger.Permanent, Code: "insufficient_funds"}

	assert.True(t, p.ShouldRetry(1, transient))
	assert.True(t, p.ShouldRetry(2, transient))
	assert.False(t, p.ShouldRetry(3, transient), "attempts exhausted")

	// Deterministic failures are never retried, whatever the attempt count.
	assert.False(t, p.ShouldRetry(1, permanent))

	// Untyped errors (dial failures etc.) count as transient.
	assert.True(t, p.ShouldRetry(1, errors.New("connection refused")))
}

func TestRetryPolicyDelayGrowth(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, Base: 500 * time.Millisecond, Cap: 30 * time.Second}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{7, 30 * time.Second}, // capped
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.DelayFor(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestRetryPolicyDelayIncreasing(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Base: 100 * time.Millisecond, Cap: time.Hour}
	prev := time.Duration(0)
	for a := 1; a <= 5; a++ {
		d := p.DelayFor(a)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}
