package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/dashcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, claims jwtx.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	return token
}

func TestPeek(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	token := signHS256(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	claims, err := jwtx.Peek(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)

	got, ok := jwtx.ExpiresAt(token)
	require.True(t, ok)
	require.True(t, exp.Equal(got))
}

func TestPeekOpaqueToken(t *testing.T) {
	_, err := jwtx.Peek("opaque-token-123")
	require.ErrorIs(t, err, jwtx.ErrNotJWT)

	_, ok := jwtx.ExpiresAt("opaque-token-123")
	require.False(t, ok)
}

func TestCheckExpiry(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)

	t.Run("opaque tokens pass", func(t *testing.T) {
		require.NoError(t, jwtx.CheckExpiry("opaque", now, 0))
	})

	t.Run("no exp claim passes", func(t *testing.T) {
		token := signHS256(t, jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"}})
		require.NoError(t, jwtx.CheckExpiry(token, now, 0))
	})

	t.Run("future exp passes", func(t *testing.T) {
		token := signHS256(t, jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}})
		require.NoError(t, jwtx.CheckExpiry(token, now, 0))
	})

	t.Run("past exp fails", func(t *testing.T) {
		token := signHS256(t, jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		}})
		require.ErrorIs(t, jwtx.CheckExpiry(token, now, jwtx.DefaultLeeway), jwtx.ErrExpired)
	})

	t.Run("leeway absorbs skew", func(t *testing.T) {
		token := signHS256(t, jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		}})
		require.NoError(t, jwtx.CheckExpiry(token, now, jwtx.DefaultLeeway))
	})
}
