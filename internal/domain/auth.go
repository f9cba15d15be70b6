package domain

import (
	"context"
	"time"
)

type Token = string

type TokenClaims struct {
	JTI       string // unique token id, for revocation
	UserID    UserID
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encodedHash string) (bool, error)
}

// TokenManager issues and validates session tokens (JWT here).
type TokenManager interface {
	Issue(ctx context.Context, userID UserID, username string) (Token, TokenClaims, error)
	Parse(ctx context.Context, t Token) (TokenClaims, error)
}

// TokenBlacklist revokes tokens by jti until their natural expiry (Redis).
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
