package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass splits submission failures into the two buckets the retry
// policy cares about.
type ErrorClass int

const (
	// Transient: network timeout, congestion, temporary rejection. Retried.
	Transient ErrorClass = iota
	// Permanent: invalid order, insufficient funds, slippage exceeded.
	// Moves the order straight to Failed.
	Permanent
)

func (c ErrorClass) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// SubmitError is a classified failure reported by the settlement program
// or the transport beneath it.
type SubmitError struct {
	Class   ErrorClass
	Code    string // program error code, e.g. "insufficient_funds"
	Message string
}

func (e *SubmitError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("submit failed (%s/%s): %s", e.Class, e.Code, e.Message)
	}
	return fmt.Sprintf("submit failed (%s): %s", e.Class, e.Message)
}

// Program error codes that are deterministic: retrying cannot change the
// outcome, so they classify as Permanent.
var permanentCodes = map[string]bool{
	"invalid_order":      true,
	"insufficient_funds": true,
	"slippage_exceeded":  true,
	"order_not_found":    true,
	"pool_disabled":      true,
	"bad_signature":      true,
}

// ClassifyCode maps a settlement program error code to an error class.
// Unknown codes are treated as transient so a new program version cannot
// strand orders in Failed by accident.
func ClassifyCode(code string) ErrorClass {
	if permanentCodes[code] {
		return Permanent
	}
	return Transient
}

// Classify determines the error class of any error coming out of a
// Gateway call. Typed SubmitErrors carry their own class; everything else
// (dial failures, timeouts, cancelled contexts) is transient.
func Classify(err error) ErrorClass {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Class
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	return Transient
}

// Transient wraps err as a transient SubmitError if it is not already
// classified.
func AsTransient(err error) *SubmitError {
	var se *SubmitError
	if errors.As(err, &se) {
		return se
	}
	return &SubmitError{Class: Transient, Message: err.Error()}
}
