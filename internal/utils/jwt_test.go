package utils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	token, err := issuer.GenerateToken(userID, "agent@example.com", true)
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "agent@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
}

func TestValidateTokenRejects(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	other, err := NewTokenIssuer("other-secret", time.Hour).GenerateToken(uuid.New(), "", false)
	require.NoError(t, err)
	_, err = issuer.ValidateToken(other)
	assert.Error(t, err, "wrong secret")

	expired, err := NewTokenIssuer("test-secret", -time.Minute).GenerateToken(uuid.New(), "", false)
	require.NoError(t, err)
	_, err = issuer.ValidateToken(expired)
	assert.Error(t, err, "expired")

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = issuer.ValidateToken(noUser)
	assert.Error(t, err, "missing user")

	_, err = issuer.ValidateToken("not-a-token")
	assert.Error(t, err)
}
