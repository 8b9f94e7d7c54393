package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukabooks/settlement-engine/auth"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.NoError(t, auth.CheckPassword(hash, "correct horse battery"))
	assert.ErrorIs(t, auth.CheckPassword(hash, "wrong"), auth.ErrInvalidCredentials)
}

func TestHashPassword_RejectsWeak(t *testing.T) {
	_, err := auth.HashPassword("short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestTokenRoundTrip(t *testing.T) {
	mgr := auth.NewTokenManager("test-secret", time.Hour)

	token, err := mgr.Generate("u-1", "bett", auth.RoleAdmin)
	require.NoError(t, err)

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "bett", claims.Username)
	assert.True(t, claims.IsAdmin())
}

func TestTokenValidate_WrongSecret(t *testing.T) {
	token, err := auth.NewTokenManager("secret-a", time.Hour).Generate("u-1", "bett", auth.RoleUser)
	require.NoError(t, err)

	_, err = auth.NewTokenManager("secret-b", time.Hour).Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenValidate_Expired(t *testing.T) {
	mgr := auth.NewTokenManager("test-secret", -time.Minute)

	token, err := mgr.Generate("u-1", "bett", auth.RoleUser)
	require.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenValidate_Garbage(t *testing.T) {
	mgr := auth.NewTokenManager("test-secret", time.Hour)

	_, err := mgr.Validate("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
