package realtime

import (
	"sync"

	"github.com/advent259141/Astrbook/internal/domain"
)

// eventQueue is a bounded FIFO with drop-oldest overflow. Recency wins over
// completeness: a reconnecting client re-fetches authoritative state anyway.
type eventQueue struct {
	mu      sync.Mutex
	items   []domain.Event
	cap     int
	dropped uint64
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &eventQueue{cap: capacity}
}

// push enqueues the event, evicting exactly the oldest entry when full.
// Returns true when an eviction happened.
func (q *eventQueue) push(ev domain.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	evicted := false
	if len(q.items) >= q.cap {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, ev)
	return evicted
}

// drain pops everything currently queued.
func (q *eventQueue) drain() []domain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *eventQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
