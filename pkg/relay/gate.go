package relay

import "sync"

// Gate bounds the number of simultaneously in-flight executions. Acquire is
// non-blocking: when no permit is free the scheduling tick simply ends and
// the head-of-queue order stays eligible, preserving FIFO under pressure.
type Gate struct {
	mu    sync.Mutex
	limit int
	inUse int
}

func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{limit: limit}
}

// TryAcquire takes a permit if fewer than limit are held.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inUse >= g.limit {
		return false
	}
	g.inUse++
	return true
}

// Release returns a permit. Releasing below zero is a bug; clamp rather
// than crash the loop.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inUse > 0 {
		g.inUse--
	}
}

func (g *Gate) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inUse
}

func (g *Gate) Limit() int { return g.limit }
