package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload. Subject carries the user id and ID (jti)
// identifies the token for revocation.
type Claims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver issues and validates HS256 tokens and consults a Denylist for
// revoked token ids.
type JWTResolver struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	denylist Denylist
	now      func() time.Time
}

// NewJWTResolver returns a resolver for tokens signed with secret. A nil
// denylist disables revocation checks.
func NewJWTResolver(secret, issuer string, ttl time.Duration, denylist Denylist) *JWTResolver {
	return &JWTResolver{
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		denylist: denylist,
		now:      time.Now,
	}
}

// Issue mints a token for userID.
func (r *JWTResolver) Issue(userID string, isAdmin bool) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("empty user id")
	}
	now := r.now()
	claims := Claims{
		Admin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

func (r *JWTResolver) parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !tok.Valid || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Resolve validates token and returns its identity.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := r.parse(token)
	if err != nil {
		return Identity{}, err
	}
	if r.denylist != nil && claims.ID != "" {
		revoked, err := r.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		if revoked {
			return Identity{}, ErrUnauthenticated
		}
	}
	return Identity{UserID: claims.Subject, IsAdmin: claims.Admin}, nil
}

// Revoke adds the token's id to the denylist until the token would have
// expired anyway.
func (r *JWTResolver) Revoke(ctx context.Context, token string) error {
	if r.denylist == nil {
		return errors.New("revocation is not configured")
	}
	claims, err := r.parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return ErrUnauthenticated
	}
	if err := r.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}
