package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swapline/relayer/pkg/ledger"
)

// testClock lets dedup-window tests move time by hand.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) After(d time.Duration) <-chan time.Time {
	// Compressed: fire almost immediately regardless of d.
	return time.After(time.Millisecond)
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testSubmission(nonce uint64) Submission {
	return Submission{
		PoolID:       "SOL-USDC",
		User:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		AmountIn:     1_000_000,
		MinAmountOut: 950_000,
		IsBaseInput:  true,
		Nonce:        nonce,
	}
}

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clock := newTestClock()
	return NewStore(time.Minute, clock, nil, zap.NewNop().Sugar()), clock
}

func TestStoreCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)

	ord, err := store.Create(testSubmission(1))
	require.NoError(t, err)
	assert.NotEmpty(t, ord.ID)
	assert.Equal(t, StatusPending, ord.Status)
	assert.Equal(t, 0, ord.Attempts)
	assert.Zero(t, ord.Sequence)

	got, err := store.Get(ord.ID)
	require.NoError(t, err)
	assert.Equal(t, ord.ID, got.ID)

	_, err = store.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestStoreDuplicateSubmission(t *testing.T) {
	store, clock := newTestStore(t)

	_, err := store.Create(testSubmission(7))
	require.NoError(t, err)

	// Identical fingerprint within the window is rejected; only one order exists.
	_, err = store.Create(testSubmission(7))
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.Len(t, store.List(), 1)

	// Different nonce is a different fingerprint.
	_, err = store.Create(testSubmission(8))
	assert.NoError(t, err)

	// Past the window the same fingerprint is accepted again.
	clock.advance(2 * time.Minute)
	_, err = store.Create(testSubmission(7))
	assert.NoError(t, err)
}

func TestStoreTransitionLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ord, err := store.Create(testSubmission(1))
	require.NoError(t, err)

	claimed, err := store.Transition(ord.ID, StatusExecuting, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuting, claimed.Status)

	done, err := store.Transition(ord.ID, StatusExecuted, func(o *Order) {
		o.Attempts++
		o.Result = &Result{Signature: "sig", AmountOut: 990_000}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, done.Attempts)
	assert.Equal(t, "sig", done.Result.Signature)

	// Terminal: nothing further is accepted.
	_, err = store.Transition(ord.ID, StatusPending, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStoreCancelRace(t *testing.T) {
	store, _ := newTestStore(t)
	ord, err := store.Create(testSubmission(1))
	require.NoError(t, err)

	_, err = store.Transition(ord.ID, StatusExecuting, nil)
	require.NoError(t, err)

	// Cancellation arriving after the engine claimed the order is too late.
	_, err = store.Transition(ord.ID, StatusCancelled, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusExecuting, terr.From)
	assert.Equal(t, StatusCancelled, terr.To)
}

func TestStoreBindSequence(t *testing.T) {
	store, _ := newTestStore(t)
	ord, err := store.Create(testSubmission(1))
	require.NoError(t, err)

	require.NoError(t, store.BindSequence(ord.ID, 42))
	got, ok := store.BySequence(42)
	require.True(t, ok)
	assert.Equal(t, ord.ID, got.ID)
	assert.Equal(t, uint64(42), got.Sequence)

	// Rebinding moves the index.
	require.NoError(t, store.BindSequence(ord.ID, 43))
	_, ok = store.BySequence(42)
	assert.False(t, ok)
	_, ok = store.BySequence(43)
	assert.True(t, ok)

	assert.ErrorIs(t, store.BindSequence("nope", 1), ErrUnknownOrder)
}

func TestStoreTrackForeignOrder(t *testing.T) {
	store, _ := newTestStore(t)

	rec := ledger.OrderRecord{
		Sequence:     9,
		OrderID:      "ext-1",
		PoolID:       "SOL-USDC",
		User:         common.HexToAddress("0x2222222222222222222222222222222222222222"),
		AmountIn:     500,
		MinAmountOut: 480,
	}
	ord := store.Track(rec)
	assert.Equal(t, "ext-1", ord.ID)
	assert.Equal(t, StatusPending, ord.Status)

	// Tracking the same sequence twice returns the existing order.
	again := store.Track(rec)
	assert.Equal(t, ord.ID, again.ID)
	assert.Len(t, store.List(), 1)
}

func TestStoreRestoreResetsExecuting(t *testing.T) {
	store, _ := newTestStore(t)

	store.Restore([]*Order{
		{ID: "a", Status: StatusExecuting, Sequence: 3},
		{ID: "b", Status: StatusExecuted, Sequence: 2},
	})

	a, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status, "mid-flight orders reload as pending")

	b, err := store.Get("b")
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, b.Status)

	got, ok := store.BySequence(3)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestStoreCountByStatus(t *testing.T) {
	store, _ := newTestStore(t)
	a, _ := store.Create(testSubmission(1))
	_, _ = store.Create(testSubmission(2))

	_, err := store.Transition(a.ID, StatusExecuting, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, store.CountByStatus(StatusExecuting))
	assert.Equal(t, 1, store.CountByStatus(StatusPending))
}
