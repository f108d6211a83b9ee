// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file carries request correlation and panic recovery. RequestID
// propagates or mints X-Request-ID. Recovery turns panics into the JSON 500
// envelope. LoggerFrom hands handlers the request-scoped zerolog.Logger
// installed by RedactingLogger; once Authenticate has resolved the caller,
// that logger also carries user_id.
//
// Order: RequestID, RedactingLogger, Recovery, then Authenticate.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	// maxQueryLogLength caps the raw query bytes written to logs.
	maxQueryLogLength = 2048
	// maxRequestIDLength bounds caller-supplied ids; longer ones are replaced.
	maxRequestIDLength = 128
)

// RequestID reuses the caller's X-Request-ID (when short enough) or mints a
// UUIDv4, echoes it on the response and stores it under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation id set by RequestID.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Recovery logs panics with their stack and answers 500 internal_error when
// nothing was written yet.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// bindUser rebinds the request-scoped logger with the resolved caller. It
// is a no-op when no scoped logger is installed.
func bindUser(c *gin.Context, userID string, isAdmin bool) {
	v, ok := c.Get(loggerKey)
	if !ok {
		return
	}
	lg, ok := v.(*zerolog.Logger)
	if !ok {
		return
	}
	scoped := lg.With().Str("user_id", userID).Bool("admin", isAdmin).Logger()
	c.Set(loggerKey, &scoped)
}

// truncate caps s at max bytes, appending an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
