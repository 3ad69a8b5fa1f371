// Package jwtx inspects bearer credentials issued by the dashboard API.
//
// The client never holds a verification key, so nothing here establishes
// trust in a token. Claims are only peeked at to learn facts the client can act
// on locally, chiefly whether a cached credential has already expired.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotJWT is returned when the credential is not a compact JWT. Opaque
	// tokens are legal credentials; callers treat this as "unknown expiry".
	ErrNotJWT = errors.New("jwtx: credential is not a jwt")

	// ErrExpired is returned when the exp claim lies in the past.
	ErrExpired = errors.New("jwtx: credential expired")
)

// DefaultLeeway absorbs clock skew between client and API.
const DefaultLeeway = 30 * time.Second

// Claims are the registered claims of a dashboard access token. Anything
// else the API puts in a token is ignored: identity and permissions come
// from their endpoints.
type Claims struct {
	jwt.RegisteredClaims
}

// Peek parses the token without verifying its signature.
func Peek(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, ErrNotJWT
	}
	return &claims, nil
}

// ExpiresAt returns the exp claim, if the credential is a JWT carrying one.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := Peek(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// CheckExpiry returns ErrExpired when token is a JWT whose exp, plus leeway,
// is before now. Opaque tokens and JWTs without exp pass.
func CheckExpiry(token string, now time.Time, leeway time.Duration) error {
	exp, ok := ExpiresAt(token)
	if !ok {
		return nil
	}
	if now.After(exp.Add(leeway)) {
		return ErrExpired
	}
	return nil
}
