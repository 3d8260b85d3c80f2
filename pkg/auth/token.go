package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification errors. Callers treat all three the same way
// (authentication fails); they are distinguished for diagnostics only.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// Claims is the signed claim set carried by an access token
type Claims struct {
	jwt.RegisteredClaims
}

// TokenID returns the unique token identifier (jti), used as the
// deny-list key when revocation is enabled.
func (c *Claims) TokenID() string {
	return c.ID
}

// RemainingTTL returns how long the token is still valid at the given
// instant, or zero if it has already expired.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TokenCodec signs and verifies compact self-contained access tokens
// (HS256 JWTs). The signing key is fixed at construction; the codec holds
// no mutable state and is safe for concurrent use.
type TokenCodec struct {
	key []byte
	ttl time.Duration
}

// NewTokenCodec creates a codec with the given symmetric signing key and
// the configured token time-to-live.
func NewTokenCodec(key []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key must not be empty")
	}
	return &TokenCodec{key: key, ttl: ttl}, nil
}

// TTL returns the configured token time-to-live
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue mints a signed token for the given subject using the configured TTL
func (c *TokenCodec) Issue(subject string) (string, error) {
	return c.IssueWithTTL(subject, c.ttl)
}

// IssueWithTTL mints a signed token with an explicit TTL. The expiry is
// absolute: issued-at plus ttl.
func (c *TokenCodec) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's structure, signature, and expiry, and returns
// its claims. It returns ErrTokenMalformed, ErrTokenBadSignature, or
// ErrTokenExpired; no other state is consulted.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	switch {
	case err == nil && token.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	default:
		return nil, ErrTokenMalformed
	}
}
