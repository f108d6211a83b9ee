// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity from an "Authorization: Bearer"
// header on every request and exposes it to downstream middleware and
// handlers. Resolution happens once per request; nothing is cached across
// requests, so a revoked token stops working on the very next call.
//
// Anonymous requests (no Authorization header) pass through untouched.
// Routes that need a user or an admin add RequireUser or RequireAdmin.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/identity"
)

const (
	ctxKeyUserID  = "userID"
	ctxKeyIsAdmin = "isAdmin"
	ctxKeyToken   = "auth.token"
)

// BearerToken extracts the token from an Authorization header. present is
// true whenever the header was sent, even if it is malformed (token == "").
func BearerToken(r *http.Request) (token string, present bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(rest), true
}

// Authenticate resolves bearer tokens through res.
//
//   - no header: anonymous, continue
//   - malformed header, bad/expired/revoked token: 401 unauthorized
//   - provider unreachable: 503 unavailable
func Authenticate(res identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := BearerToken(c.Request)
		if !present {
			c.Next()
			return
		}
		if token == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "malformed Authorization header")
			return
		}
		id, err := res.Resolve(c.Request.Context(), token)
		switch {
		case errors.Is(err, identity.ErrProviderUnavailable):
			LoggerFrom(c).Warn().Err(err).Msg("identity provider unavailable")
			abortJSON(c, http.StatusServiceUnavailable, "unavailable", "identity provider unavailable")
			return
		case err != nil:
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		c.Set(ctxKeyUserID, id.UserID)
		c.Set(ctxKeyIsAdmin, id.IsAdmin)
		c.Set(ctxKeyToken, token)
		bindUser(c, id.UserID, id.IsAdmin)
		c.Next()
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id.UserID == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !id.IsAdmin {
			abortJSON(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(ctxKeyUserID)
}

// IdentityFrom returns the caller's identity; the zero value is anonymous.
func IdentityFrom(c *gin.Context) identity.Identity {
	return identity.Identity{UserID: c.GetString(ctxKeyUserID), IsAdmin: c.GetBool(ctxKeyIsAdmin)}
}

// TokenFrom returns the raw bearer token accepted by Authenticate.
func TokenFrom(c *gin.Context) string {
	return c.GetString(ctxKeyToken)
}

// abortJSON stops the chain with the shared error envelope.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
