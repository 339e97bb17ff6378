package api

import "github.com/swapline/relayer/pkg/relay"

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders
type SubmitOrderRequest struct {
	PoolID       string `json:"poolId"`
	User         string `json:"user"` // hex address
	AmountIn     uint64 `json:"amountIn"`
	MinAmountOut uint64 `json:"minAmountOut"`
	IsBaseInput  bool   `json:"isBaseInput"`
	Nonce        uint64 `json:"nonce"` // client-chosen, part of the dedup fingerprint
}

// CancelOrderRequest is the payload for POST /api/v1/orders/{id}/cancel.
// Proof is the hex signature over keccak("cancel:" + orderId) by the
// order's owner.
type CancelOrderRequest struct {
	Proof string `json:"proof"`
}

// ==============================
// REST Response Types
// ==============================

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	OrderID              string `json:"orderId"`
	Status               string `json:"status"`
	Fee                  string `json:"fee"` // decimal string, in amountIn units
	EstimatedExecutionMs int64  `json:"estimatedExecutionMs"`
	Sequence             uint64 `json:"sequence,omitempty"`
}

// CancelOrderResponse acknowledges a cancellation.
type CancelOrderResponse struct {
	OrderID  string `json:"orderId"`
	Status   string `json:"status"`
	Refunded bool   `json:"refunded"`
}

// OrderView is the user-facing snapshot of an order.
type OrderView struct {
	OrderID      string `json:"orderId"`
	PoolID       string `json:"poolId"`
	User         string `json:"user"`
	AmountIn     uint64 `json:"amountIn"`
	MinAmountOut uint64 `json:"minAmountOut"`
	IsBaseInput  bool   `json:"isBaseInput"`
	Status       string `json:"status"`
	Sequence     uint64 `json:"sequence,omitempty"`
	Attempts     int    `json:"attempts"`
	Signature    string `json:"signature,omitempty"`
	AmountOut    uint64 `json:"amountOut,omitempty"`
	Price        string `json:"price,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    int64  `json:"createdAt"` // unix milliseconds
	UpdatedAt    int64  `json:"updatedAt"`
}

// PoolInfo mirrors the static pool configuration.
type PoolInfo struct {
	ID        string `json:"id"`
	BaseMint  string `json:"baseMint"`
	QuoteMint string `json:"quoteMint"`
	FeeBps    int64  `json:"feeBps"`
	Enabled   bool   `json:"enabled"`
	MinAmount uint64 `json:"minAmount"`
}

// RelayerStatus reports engine progress for GET /api/v1/status.
type RelayerStatus struct {
	Cursor   uint64                `json:"cursor"`
	Inflight int                   `json:"inflight"`
	QueueLen int                   `json:"queueLen"`
	Metrics  relay.MetricsSnapshot `json:"metrics"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orders", "order:<id>"]
}

func viewOf(o *relay.Order) OrderView {
	v := OrderView{
		OrderID:      o.ID,
		PoolID:       o.PoolID,
		User:         o.User.Hex(),
		AmountIn:     o.AmountIn,
		MinAmountOut: o.MinAmountOut,
		IsBaseInput:  o.IsBaseInput,
		Status:       o.Status.String(),
		Sequence:     o.Sequence,
		Attempts:     o.Attempts,
		Error:        o.Error,
		CreatedAt:    o.CreatedAt.UnixMilli(),
		UpdatedAt:    o.UpdatedAt.UnixMilli(),
	}
	if o.Result != nil {
		v.Signature = o.Result.Signature
		v.AmountOut = o.Result.AmountOut
		v.Price = o.Result.Price.String()
	}
	return v
}
