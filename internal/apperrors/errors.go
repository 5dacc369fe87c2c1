// Package apperrors holds the sentinel errors shared by the service and API
// layers. Services wrap them with context; handlers map them to status codes
// with errors.Is.
package apperrors

import "errors"

var (
	// ErrNotFound: a chat space, document, conversation or user does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation: client input broke a business rule (empty or oversized
	// message, unsupported file type, bad request body).
	ErrValidation = errors.New("validation failed")

	// ErrForbidden: the caller may not use this resource, e.g. a widget
	// request from a domain outside the allow-list.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized: credentials are missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict: the operation clashes with current state (duplicate email,
	// a processing run already active for the chat space).
	ErrConflict = errors.New("resource conflict")

	// ErrQuotaExceeded: a plan limit (documents, bytes, chat spaces) was hit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrServiceUnavailable: the widget is in maintenance.
	ErrServiceUnavailable = errors.New("service unavailable")

	ErrScrape     = errors.New("scrape failed")
	ErrParse      = errors.New("document parse failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrCompletion = errors.New("completion failed")

	// ErrInternal is the generic fallback; never carries details to clients.
	ErrInternal = errors.New("internal server error")
)
