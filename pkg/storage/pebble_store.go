package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/swapline/relayer/pkg/relay"
)

// PebbleStore journals orders so status queries survive restarts. Values
// are JSON rows; keys are prefixed so all orders can be range-scanned at
// startup. The sequence cursor is deliberately not persisted: it is
// re-derived from the ledger.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// keys: o:<orderId>
func orderKey(id string) []byte { return append([]byte("o:"), id...) }

var orderPrefix = []byte("o:")

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

var _ relay.Journal = (*PebbleStore)(nil)

// SaveOrder upserts the order row. Terminal rows are written synchronously;
// intermediate transitions tolerate NoSync since the ledger re-derives them.
func (s *PebbleStore) SaveOrder(o *relay.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	opt := pebble.NoSync
	if o.Status.IsTerminal() {
		opt = pebble.Sync
	}
	if err := s.db.Set(orderKey(o.ID), data, opt); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// LoadOrder reads one order row. Returns nil if absent.
func (s *PebbleStore) LoadOrder(id string) (*relay.Order, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()

	var o relay.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &o, nil
}

// LoadAllOrders scans every journaled order for startup restore.
func (s *PebbleStore) LoadAllOrders() ([]*relay.Order, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: orderPrefix,
		UpperBound: keyUpperBound(orderPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []*relay.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o relay.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip invalid entries
		}
		orders = append(orders, &o)
	}
	return orders, nil
}
