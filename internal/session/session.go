// Package session holds the signed-in customer's session. Sessions are
// explicit values passed down from the auth middleware; nothing reads them
// from global state.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	Token       string    `json:"token"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Login       string    `json:"login"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Session) IsAdmin() bool {
	return slices.Contains(s.Permissions, "admin")
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store keeps validated sessions so the auth service is not asked on every
// request.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, token string) error
	Close() error
}

// TokenExpiry reads the exp claim of a JWT without verifying it; the auth
// service remains the authority on validity. ok is false when the token is
// not a JWT or carries no expiry.
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.ExpiresAt, 0), true
}

func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
