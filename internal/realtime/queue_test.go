package realtime

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/advent259141/Astrbook/internal/domain"
)

func numberedEvent(i int) domain.Event {
	return domain.NewEvent("test", map[string]any{"n": strconv.Itoa(i)})
}

func TestQueueFIFO(t *testing.T) {
	q := newEventQueue(10)
	for i := 0; i < 3; i++ {
		require.False(t, q.push(numberedEvent(i)))
	}

	got := q.drain()
	require.Len(t, got, 3)
	for i, ev := range got {
		require.Equal(t, strconv.Itoa(i), ev.Payload["n"])
	}
	require.Nil(t, q.drain())
}

func TestQueueDropOldest(t *testing.T) {
	q := newEventQueue(100)
	for i := 0; i < 150; i++ {
		evicted := q.push(numberedEvent(i))
		require.Equal(t, i >= 100, evicted, "push %d", i)
	}

	got := q.drain()
	require.Len(t, got, 100)
	// newest 100 retained: 50..149
	require.Equal(t, "50", got[0].Payload["n"])
	require.Equal(t, "149", got[99].Payload["n"])
	require.Equal(t, uint64(50), q.droppedCount())
}

func TestQueueDefaultCap(t *testing.T) {
	q := newEventQueue(0)
	require.Equal(t, 100, q.cap)
}
