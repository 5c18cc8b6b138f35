// Package server provides the HTTP REST API for tailoring sessions.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/session"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrInvalidID indicates a malformed session id in the path
type ErrInvalidID struct {
	Value string
}

func (e *ErrInvalidID) Error() string {
	return fmt.Sprintf("invalid session id: %q", e.Value)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		invalidID     *ErrInvalidID
		requestErr    *session.ValidationError
		dispatchErr   *session.DispatchError
		extractionErr *parsing.ExtractionError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &invalidID), errors.As(err, &requestErr):
		return http.StatusBadRequest
	case errors.As(err, &extractionErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dispatchErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
