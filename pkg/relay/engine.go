package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/swapline/relayer/pkg/crypto"
	"github.com/swapline/relayer/pkg/ledger"
	"github.com/swapline/relayer/pkg/notify"
	"github.com/swapline/relayer/pkg/util"
)

// EngineConfig tunes the scheduling loop.
type EngineConfig struct {
	PollInterval time.Duration
	MaxInflight  int
	Retry        RetryPolicy
	// PayloadTTL bounds how long a signed execution payload stays valid.
	PayloadTTL time.Duration
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PollInterval: 200 * time.Millisecond,
		MaxInflight:  4,
		Retry:        DefaultRetryPolicy(),
		PayloadTTL:   60 * time.Second,
	}
}

// Engine drives orders through the lifecycle: it discovers the next
// sequence due on the ledger, claims the matching order, co-signs and
// submits the execution, and advances the cursor on terminal outcomes.
//
// One coordinating loop owns all dispatch decisions; individual attempts
// run as goroutines bounded by the gate. Dispatch order is strictly
// ascending by sequence and never passes a gap: a retry-pending sequence
// blocks everything above it, so the cursor can only advance contiguously.
type Engine struct {
	cfg    EngineConfig
	store  *Store
	queue  *Queue
	gate   *Gate
	cursor *Cursor
	gw     ledger.Gateway
	signer *crypto.Signer
	hub    *notify.Hub
	clock  util.Clock
	log    *zap.SugaredLogger

	mu       sync.Mutex
	inflight map[uint64]string    // sequence -> orderId of a running attempt
	done     map[uint64]bool      // terminal outcomes above the cursor, awaiting contiguous advance
	retryAt  map[uint64]time.Time // earliest re-dispatch time per sequence

	wake    chan struct{}
	metrics Metrics
}

func NewEngine(cfg EngineConfig, store *Store, queue *Queue, gw ledger.Gateway,
	signer *crypto.Signer, hub *notify.Hub, clock util.Clock, log *zap.SugaredLogger) *Engine {
	if cfg.MaxInflight < 1 {
		cfg.MaxInflight = 1
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		queue:    queue,
		gate:     NewGate(cfg.MaxInflight),
		cursor:   NewCursor(),
		gw:       gw,
		signer:   signer,
		hub:      hub,
		clock:    clock,
		log:      log,
		inflight: make(map[uint64]string),
		done:     make(map[uint64]bool),
		retryAt:  make(map[uint64]time.Time),
		wake:     make(chan struct{}, 1),
	}
}

// Cursor exposes the sequence cursor for status reporting.
func (e *Engine) Cursor() *Cursor { return e.cursor }

// Gate exposes the concurrency gate for status reporting.
func (e *Engine) Gate() *Gate { return e.gate }

// Metrics returns a snapshot of loop counters.
func (e *Engine) Metrics() MetricsSnapshot { return e.metrics.Snapshot() }

// Run seeds the cursor from the ledger and loops until ctx is cancelled.
// A single order's failure never terminates the loop.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.seedCursor(ctx); err != nil {
		return err
	}
	e.log.Infow("engine_started",
		"cursor", e.cursor.Current(),
		"max_inflight", e.cfg.MaxInflight,
		"poll_interval_ms", e.cfg.PollInterval.Milliseconds())

	for {
		e.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
		case <-e.clock.After(e.cfg.PollInterval):
		}
	}
}

// seedCursor re-derives the cursor from the settlement program. The
// in-memory cursor is never authoritative across restarts.
func (e *Engine) seedCursor(ctx context.Context) error {
	for {
		executed, err := e.gw.ExecutedSequence(ctx)
		if err == nil {
			e.cursor.Reset(executed)
			return nil
		}
		e.log.Warnw("cursor_seed_failed", "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(e.cfg.PollInterval):
		}
	}
}

// tick dispatches every sequence that is currently eligible. Eligibility
// for sequence S: S is on the ledger, not in flight, not already terminal,
// its backoff (if any) has elapsed, every sequence between the cursor and S
// is in flight or terminal, and a permit is free.
func (e *Engine) tick(ctx context.Context) {
	e.metrics.ticks.Add(1)

	tail, err := e.gw.CurrentSequence(ctx)
	if err != nil {
		e.log.Warnw("sequence_read_failed", "err", err)
		return
	}

	for {
		if tail <= e.cursor.Current() {
			return // no new work on the ledger
		}
		seq, ok := e.nextDispatchable(tail)
		if !ok {
			return
		}
		// Permit check comes before consuming the ordering position: on
		// failure the candidate stays eligible for the next tick.
		if !e.gate.TryAcquire() {
			return
		}
		if !e.dispatch(ctx, seq) {
			return
		}
	}
}

// nextDispatchable walks up from the cursor looking for the first sequence
// that can be dispatched, refusing to pass a gap.
func (e *Engine) nextDispatchable(tail uint64) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	for seq := e.cursor.Current() + 1; seq <= tail; seq++ {
		if e.done[seq] {
			continue
		}
		if _, running := e.inflight[seq]; running {
			continue
		}
		if at, waiting := e.retryAt[seq]; waiting && now.Before(at) {
			return 0, false // backoff pending; nothing above may pass it
		}
		return seq, true
	}
	return 0, false
}

// dispatch resolves the order at seq and launches its execution attempt.
// The permit is already held; every early exit must release it. Returns
// false when the tick should stop looping.
func (e *Engine) dispatch(ctx context.Context, seq uint64) bool {
	rec, err := e.gw.FetchOrder(ctx, seq)
	if err != nil {
		e.gate.Release()
		e.log.Warnw("fetch_order_failed", "sequence", seq, "err", err)
		return false
	}
	if rec == nil {
		// Cancelled on-ledger or never materialized: permanent skip.
		e.gate.Release()
		e.metrics.skips.Add(1)
		e.log.Infow("sequence_skipped", "sequence", seq)
		e.complete(seq)
		return true
	}

	ord := e.resolveOrder(*rec)
	if ord.Status.IsTerminal() {
		// Locally cancelled (or replayed after restart): nothing to execute.
		e.gate.Release()
		e.metrics.skips.Add(1)
		e.log.Infow("sequence_skipped_terminal", "sequence", seq, "order", ord.ID, "status", ord.Status.String())
		e.complete(seq)
		return true
	}

	e.queue.Remove(ord.ID)
	claimed, err := e.store.Transition(ord.ID, StatusExecuting, nil)
	if err != nil {
		// Lost a race with cancellation between the terminal check and the
		// claim; the store is the arbiter.
		e.gate.Release()
		e.metrics.skips.Add(1)
		e.log.Infow("claim_rejected", "sequence", seq, "order", ord.ID, "err", err)
		e.complete(seq)
		return true
	}
	e.publish(claimed)

	e.mu.Lock()
	e.inflight[seq] = claimed.ID
	delete(e.retryAt, seq)
	e.mu.Unlock()

	go e.execute(ctx, seq, claimed, *rec)
	return true
}

// resolveOrder maps an on-ledger record to the local order, binding the
// sequence on first observation and tracking foreign orders.
func (e *Engine) resolveOrder(rec ledger.OrderRecord) *Order {
	if ord, ok := e.store.BySequence(rec.Sequence); ok {
		return ord
	}
	if ord, err := e.store.Get(rec.OrderID); err == nil {
		if err := e.store.BindSequence(ord.ID, rec.Sequence); err == nil {
			ord.Sequence = rec.Sequence
		}
		return ord
	}
	return e.store.Track(rec)
}

// execute runs one attempt end to end. It owns the permit and the
// in-flight slot for seq and frees both on every path.
func (e *Engine) execute(ctx context.Context, seq uint64, ord *Order, rec ledger.OrderRecord) {
	res, err := e.submit(ctx, seq, rec)

	e.mu.Lock()
	delete(e.inflight, seq)
	e.mu.Unlock()

	if err == nil {
		e.settleSuccess(seq, ord, res)
	} else {
		e.settleFailure(ctx, seq, ord, err)
	}
	e.gate.Release()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// submit co-signs the execution payload and sends it through the gateway.
func (e *Engine) submit(ctx context.Context, seq uint64, rec ledger.OrderRecord) (*ledger.SubmitResult, error) {
	payload := ledger.ExecutionPayload{
		Sequence: seq,
		OrderID:  rec.OrderID,
		PoolID:   rec.PoolID,
		Deadline: e.clock.Now().Add(e.cfg.PayloadTTL).Unix(),
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	sig, err := e.signer.SignMessage(msg)
	if err != nil {
		return nil, err
	}
	return e.gw.Submit(ctx, ledger.SignedPayload{
		Payload:   payload,
		Relayer:   e.signer.Address(),
		Signature: hexutil.Bytes(sig),
	})
}

func (e *Engine) settleSuccess(seq uint64, ord *Order, res *ledger.SubmitResult) {
	updated, err := e.store.Transition(ord.ID, StatusExecuted, func(o *Order) {
		o.Attempts++
		o.Error = ""
		o.Result = &Result{
			Signature: res.Signature,
			AmountOut: res.AmountOut,
			Price:     EffectivePrice(o.AmountIn, res.AmountOut),
		}
	})
	if err != nil {
		e.log.Errorw("executed_transition_failed", "order", ord.ID, "err", err)
		e.complete(seq)
		return
	}
	e.metrics.executed.Add(1)
	e.log.Infow("order_executed",
		"order", updated.ID, "sequence", seq,
		"signature", res.Signature, "amount_out", res.AmountOut,
		"attempts", updated.Attempts)
	e.publish(updated)
	e.complete(seq)
}

func (e *Engine) settleFailure(ctx context.Context, seq uint64, ord *Order, cause error) {
	attempts := ord.Attempts + 1

	if e.cfg.Retry.ShouldRetry(attempts, cause) {
		updated, err := e.store.Transition(ord.ID, StatusPending, func(o *Order) {
			o.Attempts = attempts
			o.Error = cause.Error()
		})
		if err != nil {
			e.log.Errorw("retry_transition_failed", "order", ord.ID, "err", err)
			e.complete(seq)
			return
		}
		delay := e.cfg.Retry.DelayFor(attempts)
		e.metrics.retries.Add(1)
		e.log.Warnw("attempt_failed_retrying",
			"order", updated.ID, "sequence", seq,
			"attempts", attempts, "delay_ms", delay.Milliseconds(), "err", cause)

		e.queue.Enqueue(updated.ID)
		e.mu.Lock()
		e.retryAt[seq] = e.clock.Now().Add(delay)
		e.mu.Unlock()
		e.publish(updated)

		// The cursor does not advance: the same sequence is retried once
		// the backoff elapses.
		go func() {
			select {
			case <-ctx.Done():
			case <-e.clock.After(delay):
				select {
				case e.wake <- struct{}{}:
				default:
				}
			}
		}()
		return
	}

	updated, err := e.store.Transition(ord.ID, StatusFailed, func(o *Order) {
		o.Attempts = attempts
		o.Error = cause.Error()
	})
	if err != nil {
		e.log.Errorw("failed_transition_failed", "order", ord.ID, "err", err)
		e.complete(seq)
		return
	}
	e.metrics.failed.Add(1)
	e.log.Errorw("order_failed",
		"order", updated.ID, "sequence", seq,
		"attempts", attempts, "err", cause)
	e.publish(updated)
	// Permanently abandoned: the sequence must not block everything behind it.
	e.complete(seq)
}

// complete records a terminal outcome (or skip) for seq and advances the
// cursor over every contiguous completed sequence.
func (e *Engine) complete(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.done[seq] = true
	delete(e.retryAt, seq)
	for e.done[e.cursor.Current()+1] {
		next := e.cursor.Advance()
		delete(e.done, next)
	}
}

func (e *Engine) publish(o *Order) {
	ev := notify.Event{
		OrderID:   o.ID,
		Status:    o.Status.String(),
		Sequence:  o.Sequence,
		Attempts:  o.Attempts,
		Error:     o.Error,
		Timestamp: e.clock.Now().UnixMilli(),
	}
	if o.Result != nil {
		ev.Signature = o.Result.Signature
		ev.AmountOut = o.Result.AmountOut
	}
	e.hub.Publish(ev)
}
