package jwtToken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestRoundTrip(t *testing.T) {
	token, err := New(279058397, time.Hour, secret)
	require.NoError(t, err)

	tgID, err := VerifyToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, int64(279058397), tgID)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := New(1, time.Hour, secret)
	require.NoError(t, err)

	_, err = VerifyToken(token, []byte("other"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_Expired(t *testing.T) {
	token, err := New(1, -time.Minute, secret)
	require.NoError(t, err)

	_, err = VerifyToken(token, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyToken_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = VerifyToken(signed, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_BadSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-number",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = VerifyToken(signed, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken_Garbage(t *testing.T) {
	_, err := VerifyToken("not.a.token", secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
