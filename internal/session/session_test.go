package session

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/estatecrm/internal/crmapi"
	"github.com/phillip-england/estatecrm/internal/logging"
)

type stubAuth struct {
	token string
	err   error
}

func (s stubAuth) Login(context.Context, string, string) (string, error) {
	return s.token, s.err
}

func TestGateStoresTokenAndRedirects(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	gate := NewGate(stubAuth{token: "tok"}, store, logging.Discard())

	out := gate.Login(context.Background(), "sid-1", "admin", "admin")

	assert.Equal(t, Outcome{Redirect: "/admindashboard"}, out)
	assert.Equal(t, "tok", gate.Token(context.Background(), "sid-1"))
}

func TestGateRejectionUsesServerMessageOrFallback(t *testing.T) {
	store := NewMemoryStore(time.Hour)

	withMsg := NewGate(stubAuth{err: &crmapi.Error{Op: "login", Kind: crmapi.KindRejected, Status: http.StatusUnauthorized, Message: "Incorrect password"}}, store, logging.Discard())
	out := withMsg.Login(context.Background(), "sid", "admin", "x")
	assert.Equal(t, Outcome{Error: "Incorrect password", Email: "admin"}, out)

	bare := NewGate(stubAuth{err: &crmapi.Error{Op: "login", Kind: crmapi.KindRejected, Status: http.StatusUnauthorized}}, store, logging.Discard())
	out = bare.Login(context.Background(), "sid", "admin", "x")
	assert.Equal(t, "Invalid credentials", out.Error)
	assert.Empty(t, out.Redirect)
	assert.Empty(t, bare.Token(context.Background(), "sid"))
}

func TestGateTransportFailureIsServerError(t *testing.T) {
	gate := NewGate(stubAuth{err: &crmapi.Error{Op: "login", Kind: crmapi.KindTransport, Err: errors.New("dial tcp: refused")}}, NewMemoryStore(0), logging.Discard())
	out := gate.Login(context.Background(), "sid", "admin", "admin")
	assert.Equal(t, "Server error", out.Error)
	assert.Empty(t, out.Redirect)
}

func TestGateLogoutClearsToken(t *testing.T) {
	gate := NewGate(stubAuth{token: "tok"}, NewMemoryStore(time.Hour), logging.Discard())
	ctx := context.Background()
	gate.Login(ctx, "sid", "admin", "admin")

	require.NoError(t, gate.Logout(ctx, "sid"))
	assert.Empty(t, gate.Token(ctx, "sid"))
	assert.NoError(t, gate.Logout(ctx, ""))
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "sid", TokenKey, "tok"))
	got, _ := store.Get(ctx, "sid", TokenKey)
	assert.Equal(t, "tok", got)

	now = now.Add(2 * time.Minute)
	got, _ = store.Get(ctx, "sid", TokenKey)
	assert.Empty(t, got)
}

func TestSubjectReadsUnverifiedClaim(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	assert.Equal(t, "admin-1", Subject(token))
	assert.Empty(t, Subject("opaque-token"))
	assert.Empty(t, Subject(""))
}

func TestNewIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
	assert.Len(t, NewID(), 26)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisConfig{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	sid := NewID()
	got, err := store.Get(ctx, sid, TokenKey)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Set(ctx, sid, TokenKey, "tok"))
	got, err = store.Get(ctx, sid, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	require.NoError(t, store.Clear(ctx, sid))
	got, err = store.Get(ctx, sid, TokenKey)
	require.NoError(t, err)
	assert.Empty(t, got)
}
