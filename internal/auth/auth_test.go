package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateAccessToken(2, "owner", "admin", "secret")
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, 2, claims.AdminID)
	assert.Equal(t, "owner", claims.Login)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "access", claims.TokenType)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(2, "owner", "admin", "secret")
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken(2, "owner", "admin", "")
	assert.ErrorIs(t, err, ErrEmptyJWTSecret)

	_, err = ValidateToken("whatever", "")
	assert.ErrorIs(t, err, ErrEmptyJWTSecret)
}

func TestRefreshAccessToken(t *testing.T) {
	_, refresh, err := GenerateTokens(2, "owner", "admin", "secret")
	require.NoError(t, err)

	access, claims, err := RefreshAccessToken(refresh, "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.Equal(t, 2, claims.AdminID)
}

func TestRefreshAccessToken_RejectsAccessToken(t *testing.T) {
	access, err := GenerateAccessToken(2, "owner", "admin", "secret")
	require.NoError(t, err)

	_, _, err = RefreshAccessToken(access, "secret")
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}
