package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop().Sugar())
}

func TestHubFanOut(t *testing.T) {
	h := newTestHub()

	perOrder := h.Subscribe(OrderTopic("ord-1"))
	defer perOrder.Close()
	global := h.Subscribe(TopicGlobal)
	defer global.Close()
	other := h.Subscribe(OrderTopic("ord-2"))
	defer other.Close()

	h.Publish(Event{OrderID: "ord-1", Status: "executing"})

	ev := <-perOrder.C
	assert.Equal(t, "ord-1", ev.OrderID)
	assert.Equal(t, "executing", ev.Status)

	ev = <-global.C
	assert.Equal(t, "ord-1", ev.OrderID)

	// The other order's feed stays quiet.
	assert.Empty(t, other.C)
}

func TestHubOrderingPerSubscriber(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe(OrderTopic("ord-1"))
	defer sub.Close()

	statuses := []string{"executing", "pending", "executing", "executed"}
	for _, s := range statuses {
		h.Publish(Event{OrderID: "ord-1", Status: s})
	}

	for _, want := range statuses {
		ev := <-sub.C
		assert.Equal(t, want, ev.Status)
	}
}

func TestHubSlowSubscriberDropsNotBlocks(t *testing.T) {
	h := newTestHub()
	h.buffer = 2
	sub := h.Subscribe(OrderTopic("ord-1"))
	defer sub.Close()

	// Never reads; publishes past the buffer must not block the publisher.
	for i := 0; i < 10; i++ {
		h.Publish(Event{OrderID: "ord-1", Status: "executing"})
	}

	assert.Len(t, sub.C, 2, "overflow events are dropped, not queued")
}

func TestHubClose(t *testing.T) {
	h := newTestHub()
	sub := h.Subscribe(OrderTopic("ord-1"))
	require.Equal(t, 1, h.SubscriberCount(OrderTopic("ord-1")))

	sub.Close()
	assert.Equal(t, 0, h.SubscriberCount(OrderTopic("ord-1")))

	_, open := <-sub.C
	assert.False(t, open, "channel closes with the subscription")

	// Publishing after close is a no-op, and double close is safe.
	h.Publish(Event{OrderID: "ord-1", Status: "executed"})
	sub.Close()
}

func TestHubIndependentSubscribers(t *testing.T) {
	h := newTestHub()
	a := h.Subscribe(TopicGlobal)
	b := h.Subscribe(TopicGlobal)
	defer b.Close()

	h.Publish(Event{OrderID: "ord-1", Status: "executed"})
	a.Close() // a leaves without reading

	ev := <-b.C
	assert.Equal(t, "executed", ev.Status)
	assert.Equal(t, 1, h.SubscriberCount(TopicGlobal))
}
