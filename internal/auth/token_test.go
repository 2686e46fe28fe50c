package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	token, exp, err := tm.GenerateToken("user-1", "a@b.co", "Ana", true)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@b.co", claims.Email)
	assert.Equal(t, "Ana", claims.Name)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)

	token, _, err := tm.GenerateToken("user-1", "a@b.co", "Ana", false)
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", -time.Minute)
	tm.ttl = -time.Minute

	token, _, err := tm.GenerateToken("user-1", "a@b.co", "Ana", false)
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	_, err := tm.ParseToken("not-a-token")
	assert.Error(t, err)
}
