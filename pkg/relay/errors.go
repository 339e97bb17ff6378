package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition rejects a lifecycle move the state machine does
	// not allow, including cancel-after-claim races.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateSubmission rejects an intake whose fingerprint
	// (user, pool, nonce) was already accepted within the dedup window.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrUnknownOrder is returned for lookups of ids never accepted.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrBadCancelProof rejects a cancellation whose signature does not
	// recover to the order's owner.
	ErrBadCancelProof = errors.New("cancel proof does not match order owner")
)

// TransitionError decorates ErrInvalidTransition with the attempted move.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: %s -> %s: %v", e.OrderID, e.From, e.To, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
