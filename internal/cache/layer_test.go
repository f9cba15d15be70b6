package cache

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/advent259141/Astrbook/internal/domain"
)

func testLayer() *Layer {
	return New(NewMemory(), log.New(io.Discard, "", 0), 15)
}

func TestLayerSetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	l := testLayer()

	_, ok := l.Get(ctx, "user:1")
	require.False(t, ok)

	l.Set(ctx, "user:1", []byte(`{"id":1}`), 60)
	b, ok := l.Get(ctx, "user:1")
	require.True(t, ok)
	require.Equal(t, `{"id":1}`, string(b))

	l.Invalidate(ctx, "user:1")
	_, ok = l.Get(ctx, "user:1")
	require.False(t, ok, "invalidated key must miss")
}

func TestLayerExpiryNeverServed(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	l := New(kv, log.New(io.Discard, "", 0), 15)

	// Raw KV write bypasses jitter so the TTL is exact.
	require.NoError(t, kv.Set(ctx, "k", []byte("v"), 1))
	_, ok := l.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(1100 * time.Millisecond)
	_, ok = l.Get(ctx, "k")
	require.False(t, ok, "entry past its deadline must not be served")
}

func TestGetOrLoadPopulates(t *testing.T) {
	ctx := context.Background()
	l := testLayer()

	calls := 0
	load := func(context.Context) ([]byte, error) {
		calls++
		return []byte("fresh"), nil
	}

	b, err := l.GetOrLoad(ctx, "k", 60, load)
	require.NoError(t, err)
	require.Equal(t, "fresh", string(b))
	require.Equal(t, 1, calls)

	b, err = l.GetOrLoad(ctx, "k", 60, load)
	require.NoError(t, err)
	require.Equal(t, "fresh", string(b))
	require.Equal(t, 1, calls, "second read must be a hit")
}

func TestGetOrLoadNegativeCaching(t *testing.T) {
	ctx := context.Background()
	l := testLayer()

	calls := 0
	load := func(context.Context) ([]byte, error) {
		calls++
		return nil, domain.ErrNotFound
	}

	_, err := l.GetOrLoad(ctx, "user:404", 60, load)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, 1, calls)

	_, err = l.GetOrLoad(ctx, "user:404", 60, load)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, 1, calls, "sentinel hit must not run the loader")

	// The sentinel never leaks through plain Get.
	_, ok := l.Get(ctx, "user:404")
	require.False(t, ok)
}

// brokenKV fails every operation; the layer must degrade, not error.
type brokenKV struct{}

var errDown = errors.New("backing store down")

func (brokenKV) Get(context.Context, string) ([]byte, error)              { return nil, errDown }
func (brokenKV) Set(context.Context, string, []byte, int) error           { return errDown }
func (brokenKV) SetNX(context.Context, string, []byte, int) (bool, error) { return false, errDown }
func (brokenKV) Del(context.Context, ...string) error                     { return errDown }
func (brokenKV) Exists(context.Context, string) (bool, error)             { return false, errDown }
func (brokenKV) Ping(context.Context) error                               { return errDown }
func (brokenKV) Close()                                                   {}

func TestLayerFailSoft(t *testing.T) {
	ctx := context.Background()
	l := New(brokenKV{}, log.New(io.Discard, "", 0), 15)

	_, ok := l.Get(ctx, "k")
	require.False(t, ok)

	// Set and Invalidate must not panic or error out.
	l.Set(ctx, "k", []byte("v"), 60)
	l.Invalidate(ctx, "k")

	calls := 0
	b, err := l.GetOrLoad(ctx, "k", 60, func(context.Context) ([]byte, error) {
		calls++
		return []byte("from loader"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "from loader", string(b))
	require.Equal(t, 1, calls)

	b, err = l.GetOrLoadExclusive(ctx, "k", 60, func(context.Context) ([]byte, error) {
		return []byte("exclusive"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "exclusive", string(b))
}

func TestGetOrLoadExclusiveMarker(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	l := New(kv, log.New(io.Discard, "", 0), 15)

	b, err := l.GetOrLoadExclusive(ctx, "trending:", 60, func(context.Context) ([]byte, error) {
		return []byte("[1,2,3]"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "[1,2,3]", string(b))

	// Marker is released after the load.
	ok, err := kv.Exists(ctx, "inflight:trending:")
	require.NoError(t, err)
	require.False(t, ok)

	// Cached now; loader must not run again.
	b, err = l.GetOrLoadExclusive(ctx, "trending:", 60, func(context.Context) ([]byte, error) {
		t.Fatal("loader ran on a hit")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, "[1,2,3]", string(b))
}

func TestGetOrLoadExclusiveLoserPolls(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	l := New(kv, log.New(io.Discard, "", 0), 15)

	// Simulate a winner in flight: marker taken, value appears shortly.
	_, err := kv.SetNX(ctx, "inflight:settings:bot", []byte("1"), 5)
	require.NoError(t, err)
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = kv.Set(ctx, "settings:bot", []byte(`{"a":"1"}`), 60)
	}()

	b, err := l.GetOrLoadExclusive(ctx, "settings:bot", 60, func(context.Context) ([]byte, error) {
		t.Fatal("loser must pick up the winner's value")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, `{"a":"1"}`, string(b))
}

func TestJitterBounds(t *testing.T) {
	l := testLayer()
	for i := 0; i < 200; i++ {
		got := l.jitter(100)
		require.GreaterOrEqual(t, got, 90)
		require.LessOrEqual(t, got, 110)
	}
	// TTLs too small to jitter pass through unchanged.
	require.Equal(t, 5, l.jitter(5))
}
