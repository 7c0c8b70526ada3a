// FILE: auth.go
// Package main – Signed operator token for the /status HTTP surface.
//
// Adapts the teacher's mintCoinbaseJWT idiom (RS256/HS256 claims with iat/exp)
// to a symmetric-key operator token: a short-lived bearer credential an
// operator's dashboard presents to read /status, independent of the broker's
// own opaque CST/security-token session.
package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StatusAuthenticator mints and verifies operator status tokens. A nil
// signing key disables the check entirely (status is then unauthenticated),
// matching the teacher's "feature absent when unconfigured" pattern.
type StatusAuthenticator struct {
	signingKey []byte
}

// NewStatusAuthenticator returns an authenticator using key. An empty key
// means Verify always succeeds.
func NewStatusAuthenticator(key string) *StatusAuthenticator {
	return &StatusAuthenticator{signingKey: []byte(key)}
}

// Mint issues a token valid for ttl, identifying the operator subject.
func (a *StatusAuthenticator) Mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.signingKey)
}

// Middleware rejects requests missing a valid bearer token, when a signing
// key is configured.
func (a *StatusAuthenticator) Middleware(next http.Handler) http.Handler {
	if len(a.signingKey) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		tokStr := strings.TrimPrefix(auth, "Bearer ")
		if tokStr == auth {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		_, err := jwt.Parse(tokStr, func(t *jwt.Token) (interface{}, error) {
			return a.signingKey, nil
		})
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
