package realtime

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/advent259141/Astrbook/internal/domain"
)

// Sink is the transport half of a subscription: a live connection that
// accepts serialized events and heartbeat frames. WS and SSE adapters both
// implement it; the hub never knows which one it is talking to.
type Sink interface {
	Send(ev domain.Event) error
	Heartbeat() error
	Close() error
}

// Subscription owns one bounded queue drained by one goroutine. Nothing else
// ever pops from the queue.
type Subscription struct {
	UserID    domain.UserID
	Transport string

	queue  *eventQueue
	sink   Sink
	notify chan struct{}
	closed chan struct{}
	done   chan struct{}
	once   sync.Once
}

// enqueue adds the event and wakes the drain loop. Returns true when the
// overflow policy evicted an older event.
func (s *Subscription) enqueue(ev domain.Event) bool {
	evicted := s.queue.push(ev)
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return evicted
}

// Done closes when the drain loop exits, whatever tore it down.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close stops the drain loop synchronously and discards undelivered events.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.closed) })
	<-s.done
}

// Hub is the fan-out registry: at most one subscription per user+transport,
// reconnects replace. Publish is O(1) per recipient, Broadcast is O(active
// subscribers).
type Hub struct {
	logger    *log.Logger
	queueCap  int
	heartbeat time.Duration

	mu   sync.Mutex
	subs map[subKey]*Subscription

	dropped atomic.Uint64
}

type subKey struct {
	user      domain.UserID
	transport string
}

func NewHub(logger *log.Logger, queueCap int, heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		logger:    logger,
		queueCap:  queueCap,
		heartbeat: heartbeat,
		subs:      make(map[subKey]*Subscription),
	}
}

// Subscribe attaches a sink for the user on the given transport and starts
// its drain loop. An existing subscription for the same user+transport is
// closed and replaced.
func (h *Hub) Subscribe(userID domain.UserID, transport string, sink Sink) *Subscription {
	sub := &Subscription{
		UserID:    userID,
		Transport: transport,
		queue:     newEventQueue(h.queueCap),
		sink:      sink,
		notify:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	key := subKey{user: userID, transport: transport}
	h.mu.Lock()
	prev := h.subs[key]
	h.subs[key] = sub
	h.mu.Unlock()
	if prev != nil {
		h.logger.Printf("user=%d transport=%s reconnect, replacing subscription", userID, transport)
		prev.Close()
	}

	go h.drain(sub)
	h.logger.Printf("user=%d transport=%s subscribed, active=%d", userID, transport, h.Count())
	return sub
}

// drain writes queued events to the sink as they arrive and probes liveness
// on a fixed interval. Any sink error tears the subscription down.
func (h *Hub) drain(sub *Subscription) {
	defer close(sub.done)
	defer h.remove(sub)

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-sub.closed:
			return
		case <-sub.notify:
			for _, ev := range sub.queue.drain() {
				if err := sub.sink.Send(ev); err != nil {
					h.logger.Printf("user=%d transport=%s send failed, dropping subscription: %v", sub.UserID, sub.Transport, err)
					return
				}
			}
		case <-hb.C:
			if err := sub.sink.Heartbeat(); err != nil {
				h.logger.Printf("user=%d transport=%s heartbeat failed, dropping subscription: %v", sub.UserID, sub.Transport, err)
				return
			}
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	key := subKey{user: sub.UserID, transport: sub.Transport}
	h.mu.Lock()
	if h.subs[key] == sub {
		delete(h.subs, key)
	}
	h.mu.Unlock()
	_ = sub.sink.Close()
	sub.once.Do(func() { close(sub.closed) })
}

// Publish enqueues the event for every live subscription of the user.
// Returns the number of queues reached. Overflow is a metric, not an error.
func (h *Hub) Publish(userID domain.UserID, ev domain.Event) int {
	h.mu.Lock()
	var targets []*Subscription
	for k, s := range h.subs {
		if k.user == userID {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		if s.enqueue(ev) {
			h.dropped.Add(1)
		}
	}
	return len(targets)
}

// Broadcast publishes to every subscriber matching the predicate (nil means
// everyone). Bounded by concurrently connected clients.
func (h *Hub) Broadcast(ev domain.Event, match func(domain.UserID) bool) int {
	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs))
	for k, s := range h.subs {
		if match == nil || match(k.user) {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		if s.enqueue(ev) {
			h.dropped.Add(1)
		}
	}
	return len(targets)
}

func (h *Hub) Online(userID domain.UserID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k := range h.subs {
		if k.user == userID {
			return true
		}
	}
	return false
}

// OnlineUsers returns the distinct user ids with at least one live
// subscription.
func (h *Hub) OnlineUsers() []domain.UserID {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[domain.UserID]struct{}, len(h.subs))
	out := make([]domain.UserID, 0, len(h.subs))
	for k := range h.subs {
		if _, ok := seen[k.user]; ok {
			continue
		}
		seen[k.user] = struct{}{}
		out = append(out, k.user)
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped reports events discarded by the overflow policy since start.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close tears down every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}
