// Package services defines the business logic of the file marketplace: the
// entitlement and purchase state machine, catalog management and audit views.
// This file centralizes service-level error values and groups them into the
// kinds callers use to choose a response.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer via KindOf.
package services

import (
	"errors"

	"github.com/tbourn/go-filemarket-backend/internal/identity"
)

// Validation errors: the request was rejected before touching the ledger.
var (
	// ErrInvalidInput is returned for empty or malformed identifiers.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPaymentMethod is returned when the payment tag is not enabled.
	ErrInvalidPaymentMethod = errors.New("payment method not supported")

	// ErrInvalidDecision is returned for a decision other than approve/decline.
	ErrInvalidDecision = errors.New("decision must be approve or decline")

	// ErrInvalidFile is returned when a catalog write breaks the file
	// invariants (negative price, free file with a price, empty title).
	ErrInvalidFile = errors.New("invalid file")

	// ErrFileIsFree is returned when a purchase is attempted on a free file.
	ErrFileIsFree = errors.New("file is free")
)

// Authorization errors.
var (
	// ErrUnauthenticated is returned when an operation needs a user and none
	// was supplied.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNotAuthorized is returned when a non-admin attempts an admin action.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotEntitled is returned when a download is attempted without an
	// entitlement.
	ErrNotEntitled = errors.New("not entitled to download this file")
)

// Conflict errors: expected outcomes of concurrent or repeated use.
var (
	// ErrDuplicatePurchase is returned when the user already has a pending or
	// approved purchase for the file. The existing purchase is returned
	// alongside it.
	ErrDuplicatePurchase = errors.New("purchase already exists")

	// ErrAlreadyFinalized is returned when deciding a purchase that is no
	// longer pending.
	ErrAlreadyFinalized = errors.New("purchase already finalized")

	// ErrDuplicateCategory is returned when a category slug is taken.
	ErrDuplicateCategory = errors.New("category already exists")
)

// Not-found errors.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// ErrStoreUnavailable wraps store timeouts and outages. It is the only error
// callers should retry.
var ErrStoreUnavailable = errors.New("store unavailable")

// Kind classifies an error for the caller.
type Kind string

// Error kinds.
const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindUnavailable   Kind = "unavailable"
	KindInternal      Kind = "internal"
)

// KindOf maps err to its Kind. Unknown errors are KindInternal; nil is "".
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrInvalidDecision),
		errors.Is(err, ErrInvalidFile),
		errors.Is(err, ErrFileIsFree):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrNotEntitled):
		return KindAuthorization
	case errors.Is(err, ErrDuplicatePurchase),
		errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrDuplicateCategory):
		return KindConflict
	case errors.Is(err, ErrFileNotFound),
		errors.Is(err, ErrPurchaseNotFound),
		errors.Is(err, ErrCategoryNotFound):
		return KindNotFound
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, identity.ErrProviderUnavailable):
		return KindUnavailable
	}
	return KindInternal
}
