package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("board b1: %w", ErrUnauthorized), http.StatusForbidden},
		{ErrStaleVersion, http.StatusConflict},
		{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("get: %w", ErrStoreUnavailable), http.StatusServiceUnavailable},
		{ErrInvariantViolation, http.StatusBadRequest},
		{ErrBadRequest, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}
