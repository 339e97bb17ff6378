package relay

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Status is an order's position in the relay lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusExecuting
	StatusExecuted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuting:
		return "executing"
	case StatusExecuted:
		return "executed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusFailed || s == StatusCancelled
}

// legalTransitions encodes the lifecycle state machine:
//
//	Pending   -> Executing   (engine claims order)
//	Executing -> Executed    (ledger confirms success)
//	Executing -> Pending     (attempt failed, retries remain)
//	Executing -> Failed      (attempt failed, retries exhausted)
//	Pending   -> Cancelled   (explicit user cancellation)
var legalTransitions = map[Status][]Status{
	StatusPending:   {StatusExecuting, StatusCancelled},
	StatusExecuting: {StatusExecuted, StatusPending, StatusFailed},
}

func canTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Submission carries the immutable swap parameters accepted at intake.
// Nonce is client-chosen and participates in the dedup fingerprint.
type Submission struct {
	PoolID       string         `json:"poolId"`
	User         common.Address `json:"user"`
	AmountIn     uint64         `json:"amountIn"`
	MinAmountOut uint64         `json:"minAmountOut"`
	IsBaseInput  bool           `json:"isBaseInput"`
	Nonce        uint64         `json:"nonce"`
}

// Result is populated when an order reaches Executed.
type Result struct {
	Signature string          `json:"signature"`
	AmountOut uint64          `json:"amountOut"`
	Price     decimal.Decimal `json:"price"` // effective amountOut/amountIn
}

// Order is the unit of work tracked by the relayer. Swap parameters are
// immutable after intake; Status, Attempts, Result and Error are mutated
// only through Store.Transition.
type Order struct {
	ID           string         `json:"id"`
	Sequence     uint64         `json:"sequence"` // 0 until observed on-ledger
	PoolID       string         `json:"poolId"`
	User         common.Address `json:"user"`
	AmountIn     uint64         `json:"amountIn"`
	MinAmountOut uint64         `json:"minAmountOut"`
	IsBaseInput  bool           `json:"isBaseInput"`
	Nonce        uint64         `json:"nonce"`
	Status       Status         `json:"status"`
	Attempts     int            `json:"attempts"`
	Result       *Result        `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Clone returns a snapshot safe to hand to readers outside the store lock.
func (o *Order) Clone() *Order {
	cp := *o
	if o.Result != nil {
		r := *o.Result
		cp.Result = &r
	}
	return &cp
}

// EffectivePrice computes amountOut/amountIn at full precision.
func EffectivePrice(amountIn, amountOut uint64) decimal.Decimal {
	if amountIn == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(amountOut).Div(decimal.NewFromUint64(amountIn))
}
