package counter

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/advent259141/Astrbook/internal/domain"
)

// Engine maintains numeric aggregates. Precise counters (replies, likes,
// unread) write through synchronously as one atomic store update. View
// counts are buffered in memory and folded into the store periodically: one
// atomic update per dirty thread instead of one per view. A crash loses at
// most the unflushed window.
type Engine struct {
	store  domain.CounterStore
	kv     domain.KV // best-effort mirror for hot reads, may be nil
	logger *log.Logger

	flushEvery time.Duration
	flushMax   int

	mu       sync.Mutex
	views    map[int64]int64 // thread id -> pending delta
	buffered int

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

func New(store domain.CounterStore, kv domain.KV, logger *log.Logger, flushEvery time.Duration, flushMax int) *Engine {
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	if flushMax <= 0 {
		flushMax = 1000
	}
	e := &Engine{
		store:      store,
		kv:         kv,
		logger:     logger,
		flushEvery: flushEvery,
		flushMax:   flushMax,
		views:      make(map[int64]int64),
		kick:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go e.flushLoop()
	return e
}

// Increment applies the delta as a single atomic update expression in the
// store and returns the new value. Clamped at zero there; deletions racing
// with decrements cannot drive a counter negative.
func (e *Engine) Increment(ctx context.Context, scope domain.CounterScope, id int64, delta int64) (int64, error) {
	n, err := e.store.Add(ctx, scope, id, delta)
	if err != nil {
		return 0, err
	}
	e.mirror(ctx, scope, id, n)
	return n, nil
}

// Read prefers the mirror, falls back to the store, and folds in any
// pending buffered view delta.
func (e *Engine) Read(ctx context.Context, scope domain.CounterScope, id int64) (int64, error) {
	n, ok := int64(0), false
	if e.kv != nil {
		if b, err := e.kv.Get(ctx, mirrorKey(scope, id)); err == nil && b != nil {
			if v, err := strconv.ParseInt(string(b), 10, 64); err == nil {
				n, ok = v, true
			}
		}
	}
	if !ok {
		v, err := e.store.Value(ctx, scope, id)
		if err != nil {
			return 0, err
		}
		n = v
	}

	// The pending snapshot must come after the base read: a flush landing
	// in between folds its window into the base, and the buffer no longer
	// holds that delta, so the same view is never counted twice.
	if scope == domain.CounterThreadViews {
		e.mu.Lock()
		n += e.views[id]
		e.mu.Unlock()
	}
	return n, nil
}

// RecordView buffers one view for the thread. Never blocks, never errors.
func (e *Engine) RecordView(id domain.ThreadID) {
	e.mu.Lock()
	e.views[id]++
	e.buffered++
	full := e.buffered >= e.flushMax
	e.mu.Unlock()
	if full {
		select {
		case e.kick <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) flushLoop() {
	defer close(e.done)
	t := time.NewTicker(e.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			e.Flush(context.Background())
		case <-e.kick:
			e.Flush(context.Background())
		case <-e.stop:
			return
		}
	}
}

// Flush folds all buffered view deltas into the store, one atomic update per
// dirty thread. A failed scope returns its delta to the buffer for the next
// pass.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	if len(e.views) == 0 {
		e.mu.Unlock()
		return
	}
	dirty := e.views
	e.views = make(map[int64]int64)
	e.buffered = 0
	e.mu.Unlock()

	for id, delta := range dirty {
		n, err := e.store.Add(ctx, domain.CounterThreadViews, id, delta)
		if err != nil {
			e.logger.Printf("flush views thread=%d delta=%d failed, requeued: %v", id, delta, err)
			e.mu.Lock()
			e.views[id] += delta
			e.buffered += int(delta)
			e.mu.Unlock()
			continue
		}
		e.mirror(ctx, domain.CounterThreadViews, id, n)
	}
}

// Close flushes the remaining window and stops the loop.
func (e *Engine) Close() {
	close(e.stop)
	<-e.done
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Flush(ctx)
}

func (e *Engine) mirror(ctx context.Context, scope domain.CounterScope, id, val int64) {
	if e.kv == nil {
		return
	}
	if err := e.kv.Set(ctx, mirrorKey(scope, id), []byte(strconv.FormatInt(val, 10)), 300); err != nil {
		e.logger.Printf("mirror %s/%d dropped: %v", scope, id, err)
	}
}

func mirrorKey(scope domain.CounterScope, id int64) string {
	switch scope {
	case domain.CounterThreadViews:
		return domain.CacheKeyViews(id)
	case domain.CounterThreadLikes:
		return domain.CacheKeyThreadLikes(id)
	case domain.CounterReplyLikes:
		return domain.CacheKeyReplyLikes(id)
	default:
		return "counter:" + string(scope) + ":" + strconv.FormatInt(id, 10)
	}
}
