package relay

import (
	"context"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swapline/relayer/pkg/crypto"
	"github.com/swapline/relayer/pkg/ledger"
	"github.com/swapline/relayer/pkg/notify"
	"github.com/swapline/relayer/pkg/pool"
	"github.com/swapline/relayer/pkg/util"
)

// SubmitReceipt is returned to the intake caller.
type SubmitReceipt struct {
	Order              *Order
	Fee                decimal.Decimal
	EstimatedExecution time.Duration
}

// ServiceConfig tunes intake-side estimates.
type ServiceConfig struct {
	// PollInterval mirrors the engine's poll pace; used for the execution
	// time estimate only.
	PollInterval time.Duration
}

// Service is the intake boundary: accept, cancel, query. It owns no
// scheduling decisions; it feeds the store and queue the engine drains.
type Service struct {
	cfg   ServiceConfig
	store *Store
	queue *Queue
	pools *pool.Registry
	gw    ledger.Gateway
	hub   *notify.Hub
	clock util.Clock
	log   *zap.SugaredLogger
}

func NewService(cfg ServiceConfig, store *Store, queue *Queue, pools *pool.Registry,
	gw ledger.Gateway, hub *notify.Hub, clock util.Clock, log *zap.SugaredLogger) *Service {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	return &Service{
		cfg:   cfg,
		store: store,
		queue: queue,
		pools: pools,
		gw:    gw,
		hub:   hub,
		clock: clock,
		log:   log,
	}
}

// Submit validates the pool, registers the order, forwards the placement
// to the settlement program's queue, and quotes fee and expected wait.
func (s *Service) Submit(ctx context.Context, sub Submission) (*SubmitReceipt, error) {
	p, err := s.pools.Validate(sub.PoolID, sub.AmountIn)
	if err != nil {
		return nil, err
	}

	ord, err := s.store.Create(sub)
	if err != nil {
		return nil, err
	}
	s.queue.Enqueue(ord.ID)

	receipt, err := s.gw.Place(ctx, ledger.PlaceRequest{
		OrderID:      ord.ID,
		PoolID:       sub.PoolID,
		User:         sub.User,
		AmountIn:     sub.AmountIn,
		MinAmountOut: sub.MinAmountOut,
		IsBaseInput:  sub.IsBaseInput,
		Nonce:        sub.Nonce,
	})
	if err != nil {
		// The order never reached the ledger queue; withdraw it rather
		// than leave a Pending order the engine can never discover.
		s.queue.Remove(ord.ID)
		if cancelled, terr := s.store.Transition(ord.ID, StatusCancelled, func(o *Order) {
			o.Error = err.Error()
		}); terr == nil {
			s.publish(cancelled)
		}
		return nil, fmt.Errorf("ledger placement failed: %w", err)
	}
	if receipt.Sequence != 0 {
		if err := s.store.BindSequence(ord.ID, receipt.Sequence); err == nil {
			ord.Sequence = receipt.Sequence
		}
	}

	s.log.Infow("order_accepted",
		"order", ord.ID, "pool", sub.PoolID, "user", sub.User.Hex(),
		"amount_in", sub.AmountIn, "sequence", ord.Sequence)
	s.publish(ord)

	return &SubmitReceipt{
		Order:              ord,
		Fee:                p.QuoteFee(sub.AmountIn),
		EstimatedExecution: s.estimateWait(),
	}, nil
}

// Cancel withdraws a Pending order. The proof is the user's signature over
// keccak("cancel:" + orderId); a proof that does not recover to the order
// owner is rejected. Cancelling an order that already left Pending fails
// with ErrInvalidTransition: too late to cancel, not a crash.
func (s *Service) Cancel(ctx context.Context, orderID string, proof []byte) (*Order, error) {
	ord, err := s.store.Get(orderID)
	if err != nil {
		return nil, err
	}

	hash := ethcrypto.Keccak256Hash([]byte("cancel:" + orderID))
	if !crypto.VerifySignature(ord.User, hash.Bytes(), proof) {
		return nil, ErrBadCancelProof
	}

	cancelled, err := s.store.Transition(orderID, StatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	s.queue.Remove(orderID)
	s.log.Infow("order_cancelled", "order", orderID)
	s.publish(cancelled)
	return cancelled, nil
}

// Status returns a snapshot of the order.
func (s *Service) Status(orderID string) (*Order, error) {
	return s.store.Get(orderID)
}

// Orders returns snapshots of every known order.
func (s *Service) Orders() []*Order {
	return s.store.List()
}

// estimateWait guesses time-to-execution from the local backlog. A rough
// queue-depth * poll-pace heuristic is enough for the intake response.
func (s *Service) estimateWait() time.Duration {
	depth := s.queue.Len()
	if depth < 1 {
		depth = 1
	}
	return time.Duration(depth) * s.cfg.PollInterval
}

func (s *Service) publish(o *Order) {
	s.hub.Publish(notify.Event{
		OrderID:   o.ID,
		Status:    o.Status.String(),
		Sequence:  o.Sequence,
		Attempts:  o.Attempts,
		Error:     o.Error,
		Timestamp: s.clock.Now().UnixMilli(),
	})
}
