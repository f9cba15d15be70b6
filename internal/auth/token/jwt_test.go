package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueParseRoundtrip(t *testing.T) {
	ctx := context.Background()
	m := New("test-secret", "astrbook", time.Hour)

	tok, claims, err := m.Issue(ctx, 42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.NotEmpty(t, claims.JTI)

	parsed, err := m.Parse(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, claims.JTI, parsed.JTI)
	require.Equal(t, int64(42), parsed.UserID)
	require.Equal(t, "alice", parsed.Username)
	require.WithinDuration(t, time.Now().Add(time.Hour), parsed.ExpiresAt, time.Minute)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	ctx := context.Background()
	tok, _, err := New("secret-a", "astrbook", time.Hour).Issue(ctx, 1, "alice")
	require.NoError(t, err)

	_, err = New("secret-b", "astrbook", time.Hour).Parse(ctx, tok)
	require.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	ctx := context.Background()
	m := New("test-secret", "astrbook", -time.Minute)
	tok, _, err := m.Issue(ctx, 1, "alice")
	require.NoError(t, err)

	_, err = m.Parse(ctx, tok)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := New("test-secret", "astrbook", time.Hour).Parse(context.Background(), "not.a.token")
	require.Error(t, err)
}

func TestFreshJTIPerToken(t *testing.T) {
	ctx := context.Background()
	m := New("test-secret", "astrbook", time.Hour)
	_, a, err := m.Issue(ctx, 1, "alice")
	require.NoError(t, err)
	_, b, err := m.Issue(ctx, 1, "alice")
	require.NoError(t, err)
	require.NotEqual(t, a.JTI, b.JTI, "revoking one session must not revoke the other")
}
