package session

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// tokenCodec signs and verifies the session cookie value. The cookie does
// not carry the raw session ID; it carries an HS256 JWT wrapping it with an
// expiry, so a tampered or replayed-after-expiry cookie is rejected and the
// client falls back to a fresh anonymous session.
type tokenCodec struct {
	key []byte
	ttl time.Duration
}

// sign wraps a session ID in a signed token.
func (c *tokenCodec) sign(sid string) (string, error) {
	now := time.Now()
	claims := jwtlib.RegisteredClaims{
		Subject:   sid,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(c.ttl)),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// verify checks the token signature and expiry and returns the session ID.
func (c *tokenCodec) verify(tokenStr string) (string, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &jwtlib.RegisteredClaims{},
		func(token *jwtlib.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return c.key, nil
		})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	claims, ok := token.Claims.(*jwtlib.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("session token missing subject")
	}
	return claims.Subject, nil
}
