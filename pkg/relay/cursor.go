package relay

import "sync"

// Cursor is the engine's local view of the last sequence processed. It is
// a cache of ledger-enforced ordering, not a source of truth: at startup it
// is re-derived from the settlement program and it only ever increases.
type Cursor struct {
	mu      sync.Mutex
	current uint64
}

func NewCursor() *Cursor { return &Cursor{} }

// Reset seeds the cursor from the ledger's executed counter at startup.
// It never moves the cursor backwards.
func (c *Cursor) Reset(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.current {
		c.current = seq
	}
}

// Current returns the last processed sequence.
func (c *Cursor) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NextExpected is the sequence due for execution next.
func (c *Cursor) NextExpected() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current + 1
}

// Advance moves the cursor by one. Only the engine calls this, and only
// after a terminal outcome or explicit skip for NextExpected.
func (c *Cursor) Advance() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current++
	return c.current
}
