package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/arte/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, NewMemoryRevoker())
	tok, exp, err := tokens.Issue(models.User{ID: 7, Role: models.RoleRH})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tokens.Parse(context.Background(), "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "rh", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestParseRejectsBadTokens(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, nil)
	other := NewTokens("other-secret", time.Hour, nil)
	expired := NewTokens("secret", -time.Minute, nil)

	foreign, _, err := other.Issue(models.User{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	stale, _, err := expired.Issue(models.User{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":       "",
		"garbage":     "Bearer not.a.jwt",
		"wrong key":   foreign,
		"expired":     stale,
		"prefix only": "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(context.Background(), raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRevoke(t *testing.T) {
	tokens := NewTokens("secret", time.Hour, NewMemoryRevoker())
	tok, _, err := tokens.Issue(models.User{ID: 3, Role: models.RoleStagiaire})
	require.NoError(t, err)

	claims, err := tokens.Parse(context.Background(), tok)
	require.NoError(t, err)
	require.NoError(t, tokens.Revoke(context.Background(), claims))

	_, err = tokens.Parse(context.Background(), tok)
	assert.True(t, errors.Is(err, ErrRevokedToken))
}

func TestMemoryRevokerExpiry(t *testing.T) {
	m := NewMemoryRevoker()
	require.NoError(t, m.Revoke(context.Background(), "old", time.Now().Add(-time.Second)))
	revoked, err := m.IsRevoked(context.Background(), "old")
	require.NoError(t, err)
	assert.False(t, revoked, "expired revocations are ignored")
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
