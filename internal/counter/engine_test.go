package counter

import (
	"context"
	"io"
	"log"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/advent259141/Astrbook/internal/domain"
)

// fakeStore applies deltas with the same clamp-at-zero semantics as the
// SQL expression.
type fakeStore struct {
	mu      sync.Mutex
	vals    map[string]int64
	adds    int
	onValue func() // runs before Value reads, outside the lock
}

func newFakeStore() *fakeStore {
	return &fakeStore{vals: make(map[string]int64)}
}

func (f *fakeStore) Add(_ context.Context, scope domain.CounterScope, id, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(scope) + "/" + strconv.FormatInt(id, 10)
	n := f.vals[key] + delta
	if n < 0 {
		n = 0
	}
	f.vals[key] = n
	f.adds++
	return n, nil
}

func (f *fakeStore) Value(_ context.Context, scope domain.CounterScope, id int64) (int64, error) {
	if f.onValue != nil {
		f.onValue()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vals[string(scope)+"/"+strconv.FormatInt(id, 10)], nil
}

func (f *fakeStore) addCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adds
}

// no KV mirror: under concurrency mirror writes land out of order, which is
// fine for a hint but not for asserting exact values.
func testEngine(store domain.CounterStore) *Engine {
	return New(store, nil, log.New(io.Discard, "", 0), time.Hour, 1<<30)
}

func TestConcurrentIncrementsExact(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := testEngine(store)
	defer e.Close()

	// 50 increments and 50 decrements on a base of 50: exact result, no
	// lost updates.
	_, err := e.Increment(ctx, domain.CounterThreadLikes, 1, 50)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.Increment(ctx, domain.CounterThreadLikes, 1, 1)
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := e.Increment(ctx, domain.CounterThreadLikes, 1, -1)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := e.Read(ctx, domain.CounterThreadLikes, 1)
	require.NoError(t, err)
	require.Equal(t, int64(50), n)
}

func TestClampAtZero(t *testing.T) {
	ctx := context.Background()
	e := testEngine(newFakeStore())
	defer e.Close()

	n, err := e.Increment(ctx, domain.CounterReplyLikes, 2, -5)
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "decrement below zero clamps")

	n, err = e.Increment(ctx, domain.CounterReplyLikes, 2, 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestViewBufferFoldsOnFlush(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := testEngine(store)
	defer e.Close()

	for i := 0; i < 25; i++ {
		e.RecordView(77)
	}

	// Pending views are visible to Read before any flush.
	n, err := e.Read(ctx, domain.CounterThreadViews, 77)
	require.NoError(t, err)
	require.Equal(t, int64(25), n)

	// Store untouched so far.
	stored, err := store.Value(ctx, domain.CounterThreadViews, 77)
	require.NoError(t, err)
	require.Equal(t, int64(0), stored)

	before := store.addCalls()
	e.Flush(ctx)

	stored, err = store.Value(ctx, domain.CounterThreadViews, 77)
	require.NoError(t, err)
	require.Equal(t, int64(25), stored)
	require.Equal(t, before+1, store.addCalls(), "one atomic update per dirty thread")

	// Nothing pending anymore; Read still agrees.
	n, err = e.Read(ctx, domain.CounterThreadViews, 77)
	require.NoError(t, err)
	require.Equal(t, int64(25), n)
}

func TestCloseFlushesRemainingWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := testEngine(store)

	e.RecordView(5)
	e.RecordView(5)
	e.Close()

	stored, err := store.Value(ctx, domain.CounterThreadViews, 5)
	require.NoError(t, err)
	require.Equal(t, int64(2), stored)
}

func TestFlushThresholdKicks(t *testing.T) {
	store := newFakeStore()
	e := New(store, nil, log.New(io.Discard, "", 0), time.Hour, 10)
	defer e.Close()

	for i := 0; i < 10; i++ {
		e.RecordView(3)
	}

	require.Eventually(t, func() bool {
		n, _ := store.Value(context.Background(), domain.CounterThreadViews, 3)
		return n == 10
	}, time.Second, 5*time.Millisecond, "hitting the threshold flushes without waiting for the ticker")
}

func TestReadDuringFlushCountsViewsOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := testEngine(store)
	defer e.Close()

	for i := 0; i < 5; i++ {
		e.RecordView(7)
	}

	// A flush that lands between Read's base fetch and its buffer snapshot
	// moves the window into the store; the delta must not be seen in both.
	store.onValue = func() { e.Flush(ctx) }

	n, err := e.Read(ctx, domain.CounterThreadViews, 7)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
}
