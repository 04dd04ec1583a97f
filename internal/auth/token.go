// Package auth owns portal identity: login against the backend, signed session
// tokens and the inactivity timeout.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var errBadToken = errors.New("invalid session token")

// signer issues HS256 JWTs whose "sid" claim names the portal session.
// Expiry is not carried in the token; Manager.Resolve enforces the idle window.
type signer struct {
	secret []byte
}

func (s signer) sign(sessionID string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sid": sessionID})
	return tok.SignedString(s.secret)
}

// verify returns the session id carried by a well-signed token.
func (s signer) verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || parsed == nil || !parsed.Valid {
		return "", errBadToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errBadToken
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", errBadToken
	}
	return sid, nil
}
