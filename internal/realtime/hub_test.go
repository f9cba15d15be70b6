package realtime

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/advent259141/Astrbook/internal/domain"
)

// collectSink records delivered events; Heartbeat and Send can be made to
// fail to exercise teardown.
type collectSink struct {
	mu     sync.Mutex
	events []domain.Event
	closed bool

	sendErr error
	hbErr   error
}

func (s *collectSink) Send(ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *collectSink) Heartbeat() error { return s.hbErr }

func (s *collectSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *collectSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(log.New(io.Discard, "", 0), 100, time.Hour)
}

func TestHubPublishDelivers(t *testing.T) {
	h := testHub(t)
	defer h.Close()

	sink := &collectSink{}
	h.Subscribe(7, "ws", sink)

	n := h.Publish(7, domain.NewEvent("reply", nil))
	require.Equal(t, 1, n)

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	// other users get nothing
	require.Equal(t, 0, h.Publish(8, domain.NewEvent("reply", nil)))
}

func TestHubReconnectReplaces(t *testing.T) {
	h := testHub(t)
	defer h.Close()

	first := &collectSink{}
	second := &collectSink{}
	h.Subscribe(1, "ws", first)
	h.Subscribe(1, "ws", second)

	require.Equal(t, 1, h.Count())
	require.Eventually(t, first.isClosed, time.Second, 5*time.Millisecond)

	h.Publish(1, domain.NewEvent("reply", nil))
	require.Eventually(t, func() bool { return second.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, first.count())
}

func TestHubSeparateTransports(t *testing.T) {
	h := testHub(t)
	defer h.Close()

	ws := &collectSink{}
	sse := &collectSink{}
	h.Subscribe(1, "ws", ws)
	h.Subscribe(1, "sse", sse)

	require.Equal(t, 2, h.Count())
	require.Equal(t, 2, h.Publish(1, domain.NewEvent("reply", nil)))
	require.Eventually(t, func() bool { return ws.count() == 1 && sse.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubCloseSynchronous(t *testing.T) {
	h := testHub(t)

	sink := &collectSink{}
	sub := h.Subscribe(3, "ws", sink)
	sub.Close()

	require.True(t, sink.isClosed())
	require.Equal(t, 0, h.Count())
	require.False(t, h.Online(3))

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestHubSendErrorTearsDown(t *testing.T) {
	h := testHub(t)
	defer h.Close()

	sink := &collectSink{sendErr: errors.New("gone")}
	sub := h.Subscribe(4, "ws", sink)

	h.Publish(4, domain.NewEvent("reply", nil))

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not torn down on send error")
	}
	require.Equal(t, 0, h.Count())
}

func TestHubHeartbeatErrorTearsDown(t *testing.T) {
	h := NewHub(log.New(io.Discard, "", 0), 100, 10*time.Millisecond)
	defer h.Close()

	sink := &collectSink{hbErr: errors.New("dead")}
	sub := h.Subscribe(5, "ws", sink)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not torn down on heartbeat error")
	}
}

func TestHubBroadcastPredicate(t *testing.T) {
	h := testHub(t)
	defer h.Close()

	a := &collectSink{}
	b := &collectSink{}
	c := &collectSink{}
	h.Subscribe(1, "ws", a)
	h.Subscribe(2, "ws", b)
	h.Subscribe(3, "ws", c)

	n := h.Broadcast(domain.NewEvent("new_thread", nil), func(u domain.UserID) bool { return u != 2 })
	require.Equal(t, 2, n)

	require.Eventually(t, func() bool { return a.count() == 1 && c.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, b.count())

	require.Equal(t, 3, h.Broadcast(domain.NewEvent("new_thread", nil), nil))
}

func TestHubDroppedCounter(t *testing.T) {
	h := NewHub(log.New(io.Discard, "", 0), 5, time.Hour)
	defer h.Close()

	// A sink that blocks forever keeps the queue from draining.
	blocked := make(chan struct{})
	sink := &blockingSink{unblock: blocked}
	h.Subscribe(9, "ws", sink)

	// Let the drain loop grab the first batch, then overflow the queue.
	h.Publish(9, domain.NewEvent("e", nil))
	require.Eventually(t, func() bool { return sink.started() }, time.Second, time.Millisecond)
	for i := 0; i < 10; i++ {
		h.Publish(9, domain.NewEvent("e", nil))
	}

	require.GreaterOrEqual(t, h.Dropped(), uint64(5))
	close(blocked)
}

type blockingSink struct {
	mu      sync.Mutex
	began   bool
	unblock chan struct{}
}

func (s *blockingSink) Send(domain.Event) error {
	s.mu.Lock()
	s.began = true
	s.mu.Unlock()
	<-s.unblock
	return errors.New("closed")
}
func (s *blockingSink) Heartbeat() error { return nil }
func (s *blockingSink) Close() error     { return nil }
func (s *blockingSink) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.began
}
