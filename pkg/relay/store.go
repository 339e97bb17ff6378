package relay

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swapline/relayer/pkg/ledger"
	"github.com/swapline/relayer/pkg/util"
)

// Journal receives every order mutation for durable replay. A nil journal
// disables persistence.
type Journal interface {
	SaveOrder(o *Order) error
}

// Store is the in-memory registry of known orders. All mutation funnels
// through Create, BindSequence and Transition under one lock; readers only
// ever get clones.
type Store struct {
	mu           sync.RWMutex
	orders       map[string]*Order
	bySequence   map[uint64]string
	fingerprints map[common.Hash]time.Time
	dedupWindow  time.Duration
	clock        util.Clock
	journal      Journal
	log          *zap.SugaredLogger
}

func NewStore(dedupWindow time.Duration, clock util.Clock, journal Journal, log *zap.SugaredLogger) *Store {
	return &Store{
		orders:       make(map[string]*Order),
		bySequence:   make(map[uint64]string),
		fingerprints: make(map[common.Hash]time.Time),
		dedupWindow:  dedupWindow,
		clock:        clock,
		journal:      journal,
		log:          log,
	}
}

// fingerprint identifies a client submission for dedup: keccak(user || pool || nonce).
func fingerprint(sub Submission) common.Hash {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], sub.Nonce)
	return crypto.Keccak256Hash(sub.User.Bytes(), []byte(sub.PoolID), nonce[:])
}

// Create allocates an order for a submission. Returns ErrDuplicateSubmission
// if an identical fingerprint was accepted within the dedup window.
func (s *Store) Create(sub Submission) (*Order, error) {
	fp := fingerprint(sub)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Purge expired fingerprints lazily.
	for h, seen := range s.fingerprints {
		if now.Sub(seen) > s.dedupWindow {
			delete(s.fingerprints, h)
		}
	}
	if seen, ok := s.fingerprints[fp]; ok && now.Sub(seen) <= s.dedupWindow {
		return nil, ErrDuplicateSubmission
	}
	s.fingerprints[fp] = now

	o := &Order{
		ID:           uuid.NewString(),
		PoolID:       sub.PoolID,
		User:         sub.User,
		AmountIn:     sub.AmountIn,
		MinAmountOut: sub.MinAmountOut,
		IsBaseInput:  sub.IsBaseInput,
		Nonce:        sub.Nonce,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.orders[o.ID] = o
	s.persist(o)
	return o.Clone(), nil
}

// Track registers an order the relayer never saw at intake (placed through
// another relayer) so status queries and notifications still work.
func (s *Store) Track(rec ledger.OrderRecord) *Order {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySequence[rec.Sequence]; ok {
		return s.orders[id].Clone()
	}
	o := &Order{
		ID:           rec.OrderID,
		Sequence:     rec.Sequence,
		PoolID:       rec.PoolID,
		User:         rec.User,
		AmountIn:     rec.AmountIn,
		MinAmountOut: rec.MinAmountOut,
		IsBaseInput:  rec.IsBaseInput,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders[o.ID] = o
	s.bySequence[rec.Sequence] = o.ID
	s.persist(o)
	return o.Clone()
}

// BindSequence records the ledger-assigned sequence for an order once it
// is observed on-ledger.
func (s *Store) BindSequence(id string, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	if o.Sequence == seq {
		return nil
	}
	if o.Sequence != 0 {
		delete(s.bySequence, o.Sequence)
	}
	o.Sequence = seq
	o.UpdatedAt = s.clock.Now()
	s.bySequence[seq] = id
	s.persist(o)
	return nil
}

// Get returns a snapshot of the order, or ErrUnknownOrder.
func (s *Store) Get(id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	return o.Clone(), nil
}

// BySequence returns the order bound to a ledger sequence, if any.
func (s *Store) BySequence(seq uint64) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySequence[seq]
	if !ok {
		return nil, false
	}
	return s.orders[id].Clone(), true
}

// List returns snapshots of all known orders.
func (s *Store) List() []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	return out
}

// CountByStatus returns how many orders currently hold the given status.
func (s *Store) CountByStatus(st Status) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.orders {
		if o.Status == st {
			n++
		}
	}
	return n
}

// Transition moves an order to next if the state machine allows it, applying
// the optional mutation while the lock is held. Illegal moves are logged and
// rejected with a TransitionError wrapping ErrInvalidTransition; terminal
// states accept nothing.
func (s *Store) Transition(id string, next Status, apply func(*Order)) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if !canTransition(o.Status, next) {
		if s.log != nil {
			s.log.Warnw("transition_rejected", "order", id, "from", o.Status.String(), "to", next.String())
		}
		return nil, &TransitionError{OrderID: id, From: o.Status, To: next}
	}
	o.Status = next
	if apply != nil {
		apply(o)
	}
	o.UpdatedAt = s.clock.Now()
	s.persist(o)
	return o.Clone(), nil
}

// Restore loads previously journaled orders, typically at startup. Orders
// caught mid-flight (Executing) when the process died are reset to Pending;
// the ledger decides whether they already executed.
func (s *Store) Restore(orders []*Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		cp := o.Clone()
		if cp.Status == StatusExecuting {
			cp.Status = StatusPending
		}
		s.orders[cp.ID] = cp
		if cp.Sequence != 0 {
			s.bySequence[cp.Sequence] = cp.ID
		}
	}
}

func (s *Store) persist(o *Order) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SaveOrder(o.Clone()); err != nil && s.log != nil {
		s.log.Errorw("order_journal_failed", "order", o.ID, "err", err)
	}
}
