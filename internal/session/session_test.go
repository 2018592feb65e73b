package session

import (
	"context"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	s := &Session{Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, m.Put(ctx, s))

	got, err := m.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, m.Delete(ctx, "tok"))
	_, err = m.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ExpiredIsHiddenAndSwept(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, &Session{Token: "old", ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, m.Put(ctx, &Session{Token: "new", ExpiresAt: now.Add(time.Minute)}))

	_, err := m.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, m.Sweep())
	assert.Len(t, m.sessions, 1)

	_, err = m.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestSession_IsAdmin(t *testing.T) {
	assert.True(t, (&Session{Permissions: []string{"user", "admin"}}).IsAdmin())
	assert.False(t, (&Session{Permissions: []string{"user"}}).IsAdmin())
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "u1",
		ExpiresAt: exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(tok)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
}
