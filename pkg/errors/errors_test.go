package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("row locked")
	appErr := &AppError{Code: "CONFLICT", Message: "write conflict", Status: http.StatusConflict, Err: inner}

	assert.Contains(t, appErr.Error(), "CONFLICT")
	assert.Contains(t, appErr.Error(), "write conflict")
	assert.Contains(t, appErr.Error(), "row locked")
	assert.Equal(t, inner, appErr.Unwrap())
}

func TestInsufficientStock(t *testing.T) {
	err := InsufficientStock("WIDGET-1", 8, 7)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.Contains(t, err.Message, "requested 8")
	assert.Contains(t, err.Message, "available 7")
}

func TestInvalidQuantity(t *testing.T) {
	err := InvalidQuantity("quantity must be non-negative")

	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, http.StatusBadRequest, err.Status)
}

func TestConcurrentModification(t *testing.T) {
	err := ConcurrentModification("inventory item", "SKU-9")

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found sentinel", ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("get item: %w", ErrNotFound), http.StatusNotFound},
		{"already exists", ErrAlreadyExists, http.StatusConflict},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"invalid quantity", ErrInvalidQuantity, http.StatusBadRequest},
		{"insufficient stock", ErrInsufficientStock, http.StatusUnprocessableEntity},
		{"concurrent modification", ErrConcurrentModification, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"app error wins", NotFound("order", "o-1"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrInsufficientStock, "create order")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "create order")
}
