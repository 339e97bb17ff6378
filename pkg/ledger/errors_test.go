package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCode(t *testing.T) {
	for _, code := range []string{
		"invalid_order", "insufficient_funds", "slippage_exceeded",
		"order_not_found", "pool_disabled", "bad_signature",
	} {
		assert.Equal(t, Permanent, ClassifyCode(code), code)
	}

	// Unknown codes must never strand an order in Failed.
	assert.Equal(t, Transient, ClassifyCode("congestion"))
	assert.Equal(t, Transient, ClassifyCode("some_future_code"))
	assert.Equal(t, Transient, ClassifyCode(""))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Permanent, Classify(&SubmitError{Class: Permanent, Code: "invalid_order"}))
	assert.Equal(t, Transient, Classify(&SubmitError{Class: Transient, Code: "confirm_timeout"}))

	// Wrapped typed errors keep their class.
	wrapped := fmt.Errorf("submit: %w", &SubmitError{Class: Permanent, Code: "bad_signature"})
	assert.Equal(t, Permanent, Classify(wrapped))

	assert.Equal(t, Transient, Classify(context.DeadlineExceeded))
	assert.Equal(t, Transient, Classify(errors.New("connection refused")))
}

func TestAsTransient(t *testing.T) {
	// Already-classified errors pass through untouched.
	se := &SubmitError{Class: Permanent, Code: "invalid_order", Message: "nope"}
	assert.Same(t, se, AsTransient(se))

	got := AsTransient(errors.New("dial tcp: i/o timeout"))
	assert.Equal(t, Transient, got.Class)
	assert.Contains(t, got.Message, "i/o timeout")
}

func TestSubmitErrorString(t *testing.T) {
	withCode := &SubmitError{Class: Permanent, Code: "slippage_exceeded", Message: "out below min"}
	assert.Contains(t, withCode.Error(), "permanent/slippage_exceeded")

	bare := &SubmitError{Class: Transient, Message: "timeout"}
	assert.Contains(t, bare.Error(), "transient")
}
