// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on unsafe requests and looks
// up whether the same (user, scope, key) already produced a resource. Scope is
// the resource the request targets; for downloads that is the file id taken
// from the :id route parameter. Only the routes named in IdempotencyOptions
// are looked up, so a key stored for one endpoint never replays on another.
//
// The middleware never serves a cached body itself. It records the prior
// resource id in the context and handlers decide how to replay it (see
// ReplayOf). Replays also skip rate limiting.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // string: resource id produced by the first request
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Routes lists the route templates (as reported by gin's FullPath) whose
	// :id parameter scopes replays. Keys on other routes are validated only.
	Routes []string
	// Scope derives the scope from the request and overrides Routes. An
	// empty scope disables the lookup.
	Scope func(*gin.Context) string
}

// IdempotencyLookup reports the resource id a still-valid earlier request with
// the same (userID, scope, key) produced. TTL is enforced by the lookup.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, found bool, err error)

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// ReplayOf returns the resource id recorded for this request's key when the
// request is a replay.
func ReplayOf(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemReplay)
	return s, s != ""
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// IdempotencyValidator validates and stashes the Idempotency-Key header and,
// for authenticated callers, consults lookup to detect replays. A malformed
// key is rejected with 400. Lookup failures are logged and the request is
// processed as a new one.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	scopeOf := opts.Scope
	if scopeOf == nil {
		routes := make(map[string]bool, len(opts.Routes))
		for _, rt := range opts.Routes {
			routes[rt] = true
		}
		scopeOf = func(c *gin.Context) string {
			if !routes[c.FullPath()] {
				return ""
			}
			return c.Param("id")
		}
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		uid, scope := UserID(c), scopeOf(c)
		if lookup != nil && uid != "" && scope != "" {
			rid, found, err := lookup(c.Request.Context(), uid, scope, key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
			case found && rid != "":
				c.Set(ctxKeyIdemReplay, rid)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
