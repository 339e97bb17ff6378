package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownPool  = errors.New("pool not found")
	ErrPoolDisabled = errors.New("pool disabled")
)

// Pool is the static configuration of one AMM pool the relayer serves.
// Consumed, never computed: loaded from a JSON file at startup.
type Pool struct {
	ID         string `json:"id"`
	BaseMint   string `json:"baseMint"`
	QuoteMint  string `json:"quoteMint"`
	FeeBps     int64  `json:"feeBps"`     // relay fee in basis points of amountIn
	Enabled    bool   `json:"enabled"`
	MinAmount  uint64 `json:"minAmount"`  // smallest accepted amountIn
}

// Registry manages configured pools in a thread-safe manner.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// LoadFile reads a JSON array of pools and registers each.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pools file: %w", err)
	}
	var pools []Pool
	if err := json.Unmarshal(data, &pools); err != nil {
		return fmt.Errorf("parse pools file: %w", err)
	}
	for i := range pools {
		if err := r.Register(&pools[i]); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a pool. Returns error if a pool with the same id exists.
func (r *Registry) Register(p *Pool) error {
	if p == nil {
		return fmt.Errorf("cannot register nil pool")
	}
	if p.ID == "" {
		return fmt.Errorf("pool id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pools[p.ID]; exists {
		return fmt.Errorf("pool %s already registered", p.ID)
	}
	r.pools[p.ID] = p
	return nil
}

// Get retrieves a pool by id.
func (r *Registry) Get(id string) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[id]
	if !ok {
		return nil, ErrUnknownPool
	}
	return p, nil
}

// Validate checks that a pool exists, is enabled, and the amount clears
// its floor. Used at intake before an order is accepted.
func (r *Registry) Validate(id string, amountIn uint64) (*Pool, error) {
	p, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !p.Enabled {
		return nil, ErrPoolDisabled
	}
	if amountIn < p.MinAmount {
		return nil, fmt.Errorf("amountIn %d below pool minimum %d", amountIn, p.MinAmount)
	}
	return p, nil
}

// List returns all registered pools.
func (r *Registry) List() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// QuoteFee computes the relay fee for an input amount: amountIn * feeBps / 10000.
func (p *Pool) QuoteFee(amountIn uint64) decimal.Decimal {
	return decimal.NewFromUint64(amountIn).
		Mul(decimal.NewFromInt(p.FeeBps)).
		Div(decimal.NewFromInt(10000))
}
