package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a store, user or token lookup misses.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a user acts on a store they do not own.
	ErrForbidden = errors.New("you must own the store to do that")
	// ErrTokenExpired is returned when a password-reset token is missing or past its expiry.
	ErrTokenExpired = errors.New("reset token is invalid or expired")
	// ErrUnauthorized is returned on failed credential checks.
	ErrUnauthorized = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering with an address already in use.
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError carries per-field messages for a rejected save.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HTTPStatus maps a domain error to the status code handlers should return.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ToResponse converts any error to the JSON body handlers send. Unknown errors
// are masked as internal.
func ToResponse(err error) ErrorResponse {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ErrorResponse{Error: "validation failed", Code: "VALIDATION_FAILED", Fields: ve.Fields}
	case errors.Is(err, ErrNotFound):
		return ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"}
	case errors.Is(err, ErrForbidden):
		return ErrorResponse{Error: err.Error(), Code: "FORBIDDEN"}
	case errors.Is(err, ErrUnauthorized):
		return ErrorResponse{Error: err.Error(), Code: "UNAUTHORIZED"}
	case errors.Is(err, ErrTokenExpired):
		return ErrorResponse{Error: err.Error(), Code: "TOKEN_EXPIRED"}
	case errors.Is(err, ErrEmailTaken):
		return ErrorResponse{Error: err.Error(), Code: "EMAIL_TAKEN"}
	default:
		return ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
	}
}
