package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect for opaque or malformed tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Info is the unverified view of an access token.
type Info struct {
	Subject   string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect decodes token without checking its signature or validity window.
func Inspect(token string) (Info, error) {
	if token == "" {
		return Info{}, ErrNotJWT
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Info{}, errors.Join(ErrNotJWT, err)
	}

	info := Info{Subject: claims.Subject, SessionID: claims.Session}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expiry returns the exp claim of token. It reports false for opaque tokens and tokens
// without exp.
func Expiry(token string) (time.Time, bool) {
	info, err := Inspect(token)
	if err != nil || info.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return info.ExpiresAt, true
}
