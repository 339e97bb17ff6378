package relay

import "sync"

// Queue is the FIFO work list of order ids awaiting execution. Enqueue is
// idempotent; Remove exists so a cancelled order is never dequeued later.
type Queue struct {
	mu    sync.Mutex
	ids   []string
	index map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{index: make(map[string]struct{})}
}

// Enqueue appends id unless it is already queued.
func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.index[id]; ok {
		return
	}
	q.ids = append(q.ids, id)
	q.index[id] = struct{}{}
}

// DequeueNext pops the head of the queue, if any.
func (q *Queue) DequeueNext() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	delete(q.index, id)
	return id, true
}

// Remove deletes id from the queue regardless of position. Returns whether
// it was queued.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.index[id]; !ok {
		return false
	}
	delete(q.index, id)
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			break
		}
	}
	return true
}

func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[id]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
