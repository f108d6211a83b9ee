// Package identity resolves opaque bearer tokens to a stable user identity.
//
// A Resolver never fails with a generic error for bad credentials: missing,
// malformed, expired, or revoked tokens all return ErrUnauthenticated. Only a
// failure to reach the backing provider (for example the revocation store)
// returns ErrProviderUnavailable, which callers may retry.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrUnauthenticated is returned for missing, invalid, expired or revoked tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrProviderUnavailable is returned when the identity provider cannot be reached.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Identity is the caller behind a token.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// Resolver maps a token to an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Revoker invalidates a token before its natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}
