// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Service errors are classified by services.KindOf and translated here into a
// status and a stable, machine-readable code. Clients branch on the code; the
// message is for humans.
//
// Codes are lowercase snake_case. Most mirror their HTTP status. Two are
// specific to the marketplace:
//   - not_entitled: a download was attempted without an approved purchase
//     (and the file is not free). Clients should offer the purchase flow.
//   - already_finalized: an admin decision lost to an earlier one.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_entitled",
//	  "message": "not entitled to download this file"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filemarket-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeNotEntitled      = "not_entitled"
	ErrCodeAlreadyFinalized = "already_finalized"
)

// statusFor maps a service error to (status, code, message). Internal errors
// never leak their text to the client.
func statusFor(err error) (int, string, string) {
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusBadRequest, ErrCodeValidation, err.Error()
	case services.KindAuthorization:
		switch {
		case errors.Is(err, services.ErrNotEntitled):
			return http.StatusForbidden, ErrCodeNotEntitled, services.ErrNotEntitled.Error()
		case errors.Is(err, services.ErrNotAuthorized):
			return http.StatusForbidden, ErrCodeForbidden, err.Error()
		}
		return http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required"
	case services.KindConflict:
		if errors.Is(err, services.ErrAlreadyFinalized) {
			return http.StatusConflict, ErrCodeAlreadyFinalized, services.ErrAlreadyFinalized.Error()
		}
		return http.StatusConflict, ErrCodeConflict, err.Error()
	case services.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound, err.Error()
	case services.KindUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable, "service temporarily unavailable, retry later"
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal error"
}

// failErr writes the envelope for a service error. The underlying error is
// attached to the gin context so the access log records it.
func failErr(c *gin.Context, err error) {
	status, code, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	fail(c, status, code, msg)
}
