package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrStaleVersion       = errors.New("stale version conflict")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrStoreUnavailable   = errors.New("document store unavailable")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("bad request")
)

// HTTPStatus maps an error from any layer to the status code the HTTP surface replies with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrStaleVersion):
		return http.StatusConflict
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvariantViolation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
