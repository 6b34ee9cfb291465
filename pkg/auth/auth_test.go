package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	req := require.New(t)
	m := NewJWTManager("secret", time.Hour)
	userID := uuid.New()

	token, expiresAt, err := m.Generate(userID)
	req.NoError(err)
	req.WithinDuration(time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	got, claims, err := m.UserID(token)
	req.NoError(err)
	req.Equal(userID, got)
	req.NotEmpty(claims.ID)

	other, _, err := m.Generate(userID)
	req.NoError(err)
	req.NotEqual(token, other)
}

func TestJWTManager_RejectsBadTokens(t *testing.T) {
	req := require.New(t)
	m := NewJWTManager("secret", time.Hour)

	token, _, err := NewJWTManager("other-secret", time.Hour).Generate(uuid.New())
	req.NoError(err)
	_, err = m.Verify(token)
	req.Error(err)

	expired, _, err := NewJWTManager("secret", -time.Minute).Generate(uuid.New())
	req.NoError(err)
	_, err = m.Verify(expired)
	req.Error(err)

	_, err = m.Verify("garbage")
	req.Error(err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	req := require.New(t)
	r := httptest.NewRequest("GET", "/", nil)

	_, err := ExtractTokenFromHeader(r)
	req.Error(err)

	r.Header.Set("Authorization", "bearer abc")
	token, err := ExtractTokenFromHeader(r)
	req.NoError(err)
	req.Equal("abc", token)

	r.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromHeader(r)
	req.Error(err)
}

func TestPassword(t *testing.T) {
	req := require.New(t)
	hash, err := HashPassword("secret123")
	req.NoError(err)

	req.NoError(ComparePassword(hash, "secret123"))
	req.ErrorIs(ComparePassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestMemoryBlacklist(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	now := time.Now()
	b := NewMemoryBlacklist()
	b.now = func() time.Time { return now }

	req.NoError(b.Revoke(ctx, "a", now.Add(time.Minute)))
	req.NoError(b.Revoke(ctx, "expired", now.Add(-time.Minute)))

	revoked, err := b.IsRevoked(ctx, "a")
	req.NoError(err)
	req.True(revoked)
	revoked, err = b.IsRevoked(ctx, "expired")
	req.NoError(err)
	req.False(revoked)

	// When the token's own expiry passes
	now = now.Add(2 * time.Minute)
	revoked, err = b.IsRevoked(ctx, "a")
	req.NoError(err)
	req.False(revoked)
}
