// Package session implements the Session Gate: the only trust boundary the
// core assumes from outside. It verifies an access token's signature and
// expiry, then confirms the named session is still live before handing back
// the authenticated subject. HTTP middleware and all three socket endpoints
// call through this one gate.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lguibr/pongrt/internal/apperr"
)

// Claims is the access-token payload this core expects. SessionID names the
// session row that Store.IsLive checks; Subject is the user id returned on
// success.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Store answers whether a session id is still usable, independent of the
// token's own expiry (revocation, logout-everywhere, password change).
type Store interface {
	IsLive(ctx context.Context, sessionID string) (bool, error)
}

// Gate verifies access tokens.
type Gate struct {
	secret []byte
	store  Store
}

// New builds a Gate. secret signs and verifies access tokens; store answers
// liveness for the session named inside a token's claims.
func New(secret []byte, store Store) *Gate {
	return &Gate{secret: secret, store: store}
}

// Authenticate verifies tokenString and returns the authenticated subject.
// Every failure mode — malformed token, bad signature, expiry, revoked
// session — collapses to apperr.Authorization so callers never need to
// distinguish them.
func (g *Gate) Authenticate(ctx context.Context, tokenString string) (subject string, err error) {
	if tokenString == "" {
		return "", apperr.Authorization(apperr.CodeUnauthorized, "missing access token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", apperr.Authorization(apperr.CodeUnauthorized, "invalid or expired access token")
	}

	if claims.SessionID == "" || claims.Subject == "" {
		return "", apperr.Authorization(apperr.CodeUnauthorized, "token missing required claims")
	}

	live, err := g.store.IsLive(ctx, claims.SessionID)
	if err != nil {
		return "", apperr.Internal(apperr.CodeInternal, "session liveness lookup failed", err)
	}
	if !live {
		return "", apperr.Authorization(apperr.CodeUnauthorized, "session revoked or expired")
	}

	return claims.Subject, nil
}

// Issue mints an access token for subject/sessionID with the given TTL. It
// lives alongside Authenticate because tests and the login handler both need
// a token-minting path that shares the same secret and claim shape.
func (g *Gate) Issue(subject, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}
