package relay

import "sync/atomic"

// Metrics counts loop outcomes. Cheap atomics, read by the status endpoint
// and the progress log.
type Metrics struct {
	ticks    atomic.Uint64
	executed atomic.Uint64
	failed   atomic.Uint64
	retries  atomic.Uint64
	skips    atomic.Uint64
}

type MetricsSnapshot struct {
	Ticks    uint64 `json:"ticks"`
	Executed uint64 `json:"executed"`
	Failed   uint64 `json:"failed"`
	Retries  uint64 `json:"retries"`
	Skips    uint64 `json:"skips"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Ticks:    m.ticks.Load(),
		Executed: m.executed.Load(),
		Failed:   m.failed.Load(),
		Retries:  m.retries.Load(),
		Skips:    m.skips.Load(),
	}
}
