package domain

import (
	"context"
	"fmt"
)

// Cache keys live in one place so the schemes do not drift across packages.
func CacheKeyUser(id UserID) string           { return fmt.Sprintf("user:%d", id) }
func CacheKeyUnread(id UserID) string         { return fmt.Sprintf("unread:%d", id) }
func CacheKeyBlocks(id UserID) string         { return fmt.Sprintf("blocks:%d", id) }
func CacheKeyViews(id ThreadID) string        { return fmt.Sprintf("views:%d", id) }
func CacheKeyThreadLikes(id ThreadID) string  { return fmt.Sprintf("likes:thread:%d", id) }
func CacheKeyReplyLikes(id ReplyID) string    { return fmt.Sprintf("likes:reply:%d", id) }
func CacheKeySettingsGroup(g string) string   { return fmt.Sprintf("settings:%s", g) }
func CacheKeyTrending(category string) string { return fmt.Sprintf("trending:%s", category) }
func CacheKeyTokenJTI(jti string) string      { return "jti:" + jti }

// KV is the minimal key/value contract the backing cache store provides.
// Get returns (nil, nil) on a miss. Implementations: Redis, in-memory.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttlSeconds int) error
	SetNX(ctx context.Context, key string, val []byte, ttlSeconds int) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close()
}

// CacheLayer is the read-through contract the rest of the system uses.
// Every operation fails soft: a broken backing store degrades to the loader
// (or to a miss), never to a user-visible error.
type CacheLayer interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttlSeconds int)
	Invalidate(ctx context.Context, keys ...string)
	GetOrLoad(ctx context.Context, key string, ttlSeconds int, load func(context.Context) ([]byte, error)) ([]byte, error)
	// GetOrLoadExclusive suppresses duplicate recomputation for expensive
	// derived views (settings groups, trending lists) with an in-flight marker.
	GetOrLoadExclusive(ctx context.Context, key string, ttlSeconds int, load func(context.Context) ([]byte, error)) ([]byte, error)
}
