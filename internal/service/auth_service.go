package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"order-tracking-service/internal/backend"
	"order-tracking-service/internal/session"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUserDisabled = errors.New("user disabled")
)

// AuthService resolves bearer tokens into sessions. Tokens are checked
// against the external auth service once and then served from the store
// until they expire.
type AuthService struct {
	authURL string
	client  *http.Client
	store   session.Store
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
}

type AuthUser struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Login       string   `json:"login"`
	Enabled     bool     `json:"enabled"`
}

func NewAuthService(authURL string, store session.Store, ttl time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		authURL: strings.TrimRight(authURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log,
	}
}

// Authenticate returns the session for token, validating it remotely when
// the store has no live entry.
func (a *AuthService) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	s, err := a.store.Get(ctx, token)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		a.log.Warn("session store lookup failed", zap.Error(err))
	}

	user, err := a.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := a.now()
	expires := now.Add(a.ttl)
	if exp, ok := session.TokenExpiry(token); ok {
		if !now.Before(exp) {
			return nil, ErrInvalidToken
		}
		if exp.Before(expires) {
			expires = exp
		}
	}

	s = &session.Session{
		Token:       token,
		UserID:      user.ID,
		Name:        user.Name,
		Login:       user.Login,
		Permissions: user.Permissions,
		ExpiresAt:   expires,
	}
	if err := a.store.Put(ctx, s); err != nil {
		a.log.Warn("session store write failed", zap.Error(err))
	}
	return s, nil
}

// Logout forgets the session so the next request revalidates.
func (a *AuthService) Logout(ctx context.Context, token string) error {
	return a.store.Delete(ctx, token)
}

// ValidateToken asks the auth service for the token's user. An unreachable
// or failing auth service is reported as backend.ErrNetwork, never as an
// invalid token.
func (a *AuthService) ValidateToken(ctx context.Context, token string) (*AuthUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/current", a.authURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: auth request failed: %v", backend.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: auth service answered %d", backend.ErrNetwork, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidToken
	}

	var user AuthUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrUserDisabled
	}
	return &user, nil
}
