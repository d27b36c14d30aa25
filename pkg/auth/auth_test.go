package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, exp, err := GenerateAccessToken("ops", RoleOperator, "s3cret", "collections", 5)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := ParseToken(tok, "s3cret", "collections")
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestParseTokenRejects(t *testing.T) {
	tok, _, err := GenerateAccessToken("viewer", RoleViewer, "s3cret", "collections", 5)
	require.NoError(t, err)

	_, err = ParseToken(tok, "other", "collections")
	assert.Error(t, err, "wrong secret")

	_, err = ParseToken(tok, "s3cret", "someone-else")
	assert.Error(t, err, "wrong issuer")

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{TokenType: TokenTypeRefresh})
	s, err := refresh.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseToken(s, "s3cret", "")
	assert.Error(t, err, "refresh token used as access token")
}

func TestOperatorCheck(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	op := Operator{User: "ops", PasswordHash: hash}

	assert.NoError(t, op.Check("ops", "hunter2"))
	assert.ErrorIs(t, op.Check("ops", "nope"), ErrInvalidCredentials)
	assert.ErrorIs(t, op.Check("root", "hunter2"), ErrInvalidCredentials)
	assert.ErrorIs(t, Operator{User: "ops"}.Check("ops", ""), ErrInvalidCredentials)
}

func TestHashTokenStable(t *testing.T) {
	assert.Equal(t, hashToken("abc"), hashToken("abc"))
	assert.NotEqual(t, hashToken("abc"), hashToken("abd"))
}
