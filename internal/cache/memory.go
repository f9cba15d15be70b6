package cache

import (
	"context"
	"sync"
	"time"

	"github.com/advent259141/Astrbook/internal/domain"
)

// Memory is an in-process KV with per-entry expiry. It backs tests and
// cache-less deployments; expiry is checked on access, so an entry is never
// served past its deadline even without a sweeper.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	val       []byte
	expiresAt time.Time // zero => no TTL
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry)}
}

var _ domain.KV = (*Memory)(nil)

func (m *Memory) expired(e memEntry) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttlSeconds int) error {
	e := memEntry{val: append([]byte(nil), val...)}
	if ttlSeconds > 0 {
		e.expiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, val []byte, ttlSeconds int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !m.expired(e) {
		return false, nil
	}
	e := memEntry{val: append([]byte(nil), val...)}
	if ttlSeconds > 0 {
		e.expiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	m.entries[key] = e
	return true, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	b, err := m.Get(ctx, key)
	return b != nil, err
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {
	m.mu.Lock()
	m.entries = make(map[string]memEntry)
	m.mu.Unlock()
}
