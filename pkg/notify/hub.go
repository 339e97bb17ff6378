package notify

import (
	"sync"

	"go.uber.org/zap"
)

// TopicGlobal receives every order transition.
const TopicGlobal = "orders"

// OrderTopic names the per-order feed.
func OrderTopic(orderID string) string { return "order:" + orderID }

// Event describes one order state transition.
type Event struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Sequence  uint64 `json:"sequence,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	Signature string `json:"signature,omitempty"`
	AmountOut uint64 `json:"amountOut,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription is a handle on one topic feed. Events arrive on C; Close
// detaches the handle and closes C.
type Subscription struct {
	Topic string
	C     <-chan Event

	id  uint64
	ch  chan Event
	hub *Hub
}

func (s *Subscription) Close() { s.hub.unsubscribe(s) }

// Hub fans out order transitions to topic subscribers. Delivery is
// best-effort and at-most-once per transition: a subscriber whose buffer is
// full misses that event and must poll current status to catch up.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]chan Event
	buffer int
	log    *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		subs:   make(map[string]map[uint64]chan Event),
		buffer: 64,
		log:    log,
	}
}

// Subscribe attaches a buffered feed for one topic (TopicGlobal or an
// OrderTopic).
func (h *Hub) Subscribe(topic string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan Event, h.buffer)
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]chan Event)
	}
	h.subs[topic][h.nextID] = ch
	return &Subscription{Topic: topic, C: ch, id: h.nextID, ch: ch, hub: h}
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[s.Topic]
	if !ok {
		return
	}
	if _, ok := set[s.id]; !ok {
		return
	}
	delete(set, s.id)
	close(s.ch)
	if len(set) == 0 {
		delete(h.subs, s.Topic)
	}
}

// Publish delivers ev to the per-order topic and the global feed. Sends
// never block; slow subscribers drop.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(OrderTopic(ev.OrderID), ev)
	h.deliver(TopicGlobal, ev)
}

func (h *Hub) deliver(topic string, ev Event) {
	for _, ch := range h.subs[topic] {
		select {
		case ch <- ev:
		default:
			if h.log != nil {
				h.log.Debugw("notification_dropped", "topic", topic, "order", ev.OrderID)
			}
		}
	}
}

// SubscriberCount reports active handles on a topic (for tests/metrics).
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
