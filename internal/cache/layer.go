package cache

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"

	"github.com/advent259141/Astrbook/internal/domain"
)

// Layer is the read-through cache over a KV backing store. All operations
// fail soft: when the backing store is down, reads behave as misses, writes
// are dropped with a log line, and GetOrLoad degrades to the loader. Cache
// unavailability is never a user-visible error.
type Layer struct {
	kv     domain.KV
	logger *log.Logger

	negativeTTL int // seconds, short TTL for the confirmed-absent sentinel
	markerTTL   int // seconds, lifetime of the in-flight marker
}

// Confirmed-absent sentinel. Stored values are JSON, so a value starting
// with NUL cannot collide with real payloads.
var nilSentinel = []byte("\x00nil")

func New(kv domain.KV, logger *log.Logger, negativeTTLSeconds int) *Layer {
	if negativeTTLSeconds <= 0 {
		negativeTTLSeconds = 15
	}
	return &Layer{kv: kv, logger: logger, negativeTTL: negativeTTLSeconds, markerTTL: 5}
}

var _ domain.CacheLayer = (*Layer)(nil)

// jitter spreads expiry by ±10% of the nominal TTL so entries populated
// together do not expire together.
func (l *Layer) jitter(ttlSeconds int) int {
	j := ttlSeconds / 10
	if j <= 0 {
		return ttlSeconds
	}
	return ttlSeconds - j + rand.IntN(2*j+1)
}

func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := l.kv.Get(ctx, key)
	if err != nil {
		l.logger.Printf("get %q degraded to miss: %v", key, err)
		return nil, false
	}
	if b == nil || isSentinel(b) {
		return nil, false
	}
	return b, true
}

func (l *Layer) Set(ctx context.Context, key string, val []byte, ttlSeconds int) {
	if err := l.kv.Set(ctx, key, val, l.jitter(ttlSeconds)); err != nil {
		l.logger.Printf("set %q dropped: %v", key, err)
	}
}

// Invalidate removes keys synchronously; the write path calls it before the
// write is acknowledged. A failure here only means stale reads until TTL.
func (l *Layer) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := l.kv.Del(ctx, keys...); err != nil {
		l.logger.Printf("invalidate %v failed, stale until ttl: %v", keys, err)
	}
}

// GetOrLoad returns the cached value or runs the loader and repopulates.
// Concurrent misses for the same key may each run the loader; redundant work
// is accepted over lock complexity. A loader ErrNotFound is negatively
// cached with a short TTL.
func (l *Layer) GetOrLoad(ctx context.Context, key string, ttlSeconds int, load func(context.Context) ([]byte, error)) ([]byte, error) {
	b, err := l.kv.Get(ctx, key)
	if err != nil {
		l.logger.Printf("get %q degraded to loader: %v", key, err)
	} else if b != nil {
		if isSentinel(b) {
			return nil, domain.ErrNotFound
		}
		return b, nil
	}

	v, err := load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		l.Set(ctx, key, nilSentinel, l.negativeTTL)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	l.Set(ctx, key, v, ttlSeconds)
	return v, nil
}

// GetOrLoadExclusive is GetOrLoad with an in-flight marker for expensive
// derived views. The first miss takes the marker and recomputes; losers poll
// briefly for the winner's value and fall back to loading themselves when
// the wait runs out (the marker is advisory, not a lock).
func (l *Layer) GetOrLoadExclusive(ctx context.Context, key string, ttlSeconds int, load func(context.Context) ([]byte, error)) ([]byte, error) {
	b, err := l.kv.Get(ctx, key)
	if err != nil {
		l.logger.Printf("get %q degraded to loader: %v", key, err)
		return load(ctx)
	}
	if b != nil {
		if isSentinel(b) {
			return nil, domain.ErrNotFound
		}
		return b, nil
	}

	marker := "inflight:" + key
	won, err := l.kv.SetNX(ctx, marker, []byte("1"), l.markerTTL)
	if err != nil {
		l.logger.Printf("marker %q degraded to loader: %v", marker, err)
		return load(ctx)
	}
	if won {
		defer func() {
			if err := l.kv.Del(context.WithoutCancel(ctx), marker); err != nil {
				l.logger.Printf("marker %q release failed: %v", marker, err)
			}
		}()
		return l.loadAndStore(ctx, key, ttlSeconds, load)
	}

	// Someone else is recomputing; poll for their result.
	for i := 0; i < 5; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		b, err := l.kv.Get(ctx, key)
		if err == nil && b != nil {
			if isSentinel(b) {
				return nil, domain.ErrNotFound
			}
			return b, nil
		}
	}
	return l.loadAndStore(ctx, key, ttlSeconds, load)
}

func (l *Layer) loadAndStore(ctx context.Context, key string, ttlSeconds int, load func(context.Context) ([]byte, error)) ([]byte, error) {
	v, err := load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		l.Set(ctx, key, nilSentinel, l.negativeTTL)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	l.Set(ctx, key, v, ttlSeconds)
	return v, nil
}

func isSentinel(b []byte) bool {
	return len(b) == len(nilSentinel) && string(b) == string(nilSentinel)
}
