package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OrderRecord is the settlement program's view of a queued order. The
// sequence is assigned by the program when the placement lands on-ledger
// and is the ground truth for execution order.
type OrderRecord struct {
	Sequence     uint64         `json:"sequence"`
	OrderID      string         `json:"orderId"`
	PoolID       string         `json:"poolId"`
	User         common.Address `json:"user"`
	AmountIn     uint64         `json:"amountIn"`
	MinAmountOut uint64         `json:"minAmountOut"`
	IsBaseInput  bool           `json:"isBaseInput"`
}

// PlaceRequest forwards a user's swap to the settlement program's queue.
// The relayer assigns OrderID at intake; the program echoes it back in the
// queued record so fetches can be correlated.
type PlaceRequest struct {
	OrderID      string         `json:"orderId"`
	PoolID       string         `json:"poolId"`
	User         common.Address `json:"user"`
	AmountIn     uint64         `json:"amountIn"`
	MinAmountOut uint64         `json:"minAmountOut"`
	IsBaseInput  bool           `json:"isBaseInput"`
	Nonce        uint64         `json:"nonce"`
}

// PlaceReceipt acknowledges queue admission. Sequence may be zero if the
// placement has not been finalized yet; the engine discovers it by polling.
type PlaceReceipt struct {
	TxSignature string `json:"txSignature"`
	Sequence    uint64 `json:"sequence,omitempty"`
}

// ExecutionPayload is the message the relayer co-signs to authorize
// execution of one queued order.
type ExecutionPayload struct {
	Sequence uint64 `json:"sequence"`
	OrderID  string `json:"orderId"`
	PoolID   string `json:"poolId"`
	Deadline int64  `json:"deadline"` // unix seconds; program rejects after this
}

// SignedPayload carries the payload plus the relayer's secp256k1 signature
// over its keccak hash.
type SignedPayload struct {
	Payload   ExecutionPayload `json:"payload"`
	Relayer   common.Address   `json:"relayer"`
	Signature hexutil.Bytes    `json:"signature"`
}

// SubmitResult is the confirmed outcome of an execution submission.
type SubmitResult struct {
	Signature string `json:"signature"`
	Confirmed bool   `json:"confirmed"`
	AmountOut uint64 `json:"amountOut"`
}

// Gateway is the engine's only window onto the settlement program. Reads
// are eventually consistent; Submit blocks for at most the configured
// confirmation timeout.
//
// CurrentSequence is the highest sequence assigned to the queue (its tail);
// ExecutedSequence is the program's counter of orders already settled, read
// once at startup to seed the local cursor. FetchOrder returns (nil, nil)
// when no order exists at the sequence; the engine treats that as a
// permanent skip.
type Gateway interface {
	CurrentSequence(ctx context.Context) (uint64, error)
	ExecutedSequence(ctx context.Context) (uint64, error)
	FetchOrder(ctx context.Context, seq uint64) (*OrderRecord, error)
	Place(ctx context.Context, req PlaceRequest) (PlaceReceipt, error)
	Submit(ctx context.Context, sp SignedPayload) (*SubmitResult, error)
}
