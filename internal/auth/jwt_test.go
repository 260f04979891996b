package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidate(t *testing.T) {
	v, err := NewValidator(testSecret)
	require.NoError(t, err)

	t.Run("id claim", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"id": "u1", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)
		uid, err := v.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "u1", uid)
	})

	t.Run("sub claim fallback", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"sub": "u2"}, testSecret)
		uid, err := v.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "u2", uid)
	})

	t.Run("expired", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret)
		_, err := v.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"id": "u1"}, "other-secret")
		_, err := v.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no subject", func(t *testing.T) {
		token := sign(t, jwt.MapClaims{"role": "user"}, testSecret)
		_, err := v.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewValidatorEmptySecret(t *testing.T) {
	_, err := NewValidator("")
	assert.Error(t, err)
}

func TestFromBearer(t *testing.T) {
	tok, err := FromBearer("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = FromBearer("bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = FromBearer("abc")
	assert.Error(t, err)

	_, err = FromBearer("Basic abc")
	assert.Error(t, err)
}
