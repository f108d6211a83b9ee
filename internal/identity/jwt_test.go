package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(dl Denylist) *JWTResolver {
	return NewJWTResolver("test-secret", "filemarket", time.Hour, dl)
}

func TestResolve_RoundTrip(t *testing.T) {
	r := newResolver(nil)

	tok, err := r.Issue("u1", false)
	require.NoError(t, err)

	id, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", IsAdmin: false}, id)

	adminTok, err := r.Issue("root", true)
	require.NoError(t, err)
	id, err = r.Resolve(context.Background(), adminTok)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin)
}

func TestIssue_EmptyUser(t *testing.T) {
	_, err := newResolver(nil).Issue("  ", false)
	assert.Error(t, err)
}

func TestResolve_Unauthenticated(t *testing.T) {
	r := newResolver(nil)
	ctx := context.Background()

	other := NewJWTResolver("other-secret", "filemarket", time.Hour, nil)
	forged, err := other.Issue("u1", true)
	require.NoError(t, err)

	wrongIssuer := NewJWTResolver("test-secret", "someone-else", time.Hour, nil)
	foreign, err := wrongIssuer.Issue("u1", false)
	require.NoError(t, err)

	expiredR := newResolver(nil)
	expiredR.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredR.Issue("u1", false)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"bad-sig":      forged,
		"wrong-issuer": foreign,
		"expired":      expired,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(ctx, tok)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestRevoke_MemoryDenylist(t *testing.T) {
	dl := NewMemoryDenylist()
	r := newResolver(dl)
	ctx := context.Background()

	tok, err := r.Issue("u1", false)
	require.NoError(t, err)
	keep, err := r.Issue("u1", false)
	require.NoError(t, err)

	require.NoError(t, r.Revoke(ctx, tok))

	_, err = r.Resolve(ctx, tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Revocation is per token, not per user.
	id, err := r.Resolve(ctx, keep)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)

	// Revoking garbage is an authentication failure.
	assert.ErrorIs(t, r.Revoke(ctx, "garbage"), ErrUnauthenticated)
}

func TestRevoke_NotConfigured(t *testing.T) {
	r := newResolver(nil)
	tok, err := r.Issue("u1", false)
	require.NoError(t, err)
	assert.Error(t, r.Revoke(context.Background(), tok))
}

type failingDenylist struct{}

func (failingDenylist) Revoke(context.Context, string, time.Time) error {
	return errors.New("connection refused")
}

func (failingDenylist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestResolve_ProviderUnavailable(t *testing.T) {
	r := newResolver(failingDenylist{})
	tok, err := r.Issue("u1", false)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), tok)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthenticated)

	assert.ErrorIs(t, r.Revoke(context.Background(), tok), ErrProviderUnavailable)
}

func TestResolve_RedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	r := newResolver(NewRedisDenylist(rdb))
	tok, err := r.Issue("u1", false)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), tok)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestMemoryDenylist_Expiry(t *testing.T) {
	dl := NewMemoryDenylist()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dl.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, dl.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, dl.Revoke(ctx, "past", now.Add(-time.Minute)))

	revoked, _ := dl.IsRevoked(ctx, "a")
	assert.True(t, revoked)
	revoked, _ = dl.IsRevoked(ctx, "past")
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = dl.IsRevoked(ctx, "a")
	assert.False(t, revoked)

	// A later write sweeps the expired entry.
	require.NoError(t, dl.Revoke(ctx, "b", now.Add(time.Minute)))
	assert.NotContains(t, dl.entries, "a")
}
