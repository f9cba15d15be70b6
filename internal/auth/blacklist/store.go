package blacklist

import (
	"context"
	"time"

	"github.com/advent259141/Astrbook/internal/domain"
)

// KV is the minimal cache surface the blacklist needs.
type KV interface {
	SetNX(ctx context.Context, key string, val []byte, ttlSeconds int) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

var _ domain.TokenBlacklist = (*Store)(nil)

func (s *Store) key(jti string) string { return domain.CacheKeyTokenJTI(jti) }

// Revoke marks jti as revoked until exp (TTL = exp-now).
func (s *Store) Revoke(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		ttl = time.Minute // keep a short record even if exp is already past
	}
	_, err := s.kv.SetNX(ctx, s.key(jti), []byte("1"), int(ttl.Seconds()))
	return err
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.kv.Exists(ctx, s.key(jti))
}
