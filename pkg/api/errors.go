package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeServerError     ErrorType = "server_error"
)

// Error represents a structured API error with type and message.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an Error for JSON serialization as the top-level
// error response.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// NewUnauthenticatedError creates an Error for missing or invalid credentials.
func NewUnauthenticatedError(message string) *Error {
	return &Error{Type: ErrorTypeUnauthenticated, Message: message}
}

// NewForbiddenError creates an Error for authenticated callers with
// insufficient privileges.
func NewForbiddenError(message string) *Error {
	return &Error{Type: ErrorTypeForbidden, Message: message}
}

// NewTooManyRequestsError creates an Error for rate limiting.
func NewTooManyRequestsError(message string) *Error {
	return &Error{Type: ErrorTypeTooManyRequests, Message: message}
}

// NewInvalidRequestError creates an Error for invalid request parameters.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrorTypeInvalidRequest, Message: message}
}

// NewServerError creates an Error for internal server errors.
func NewServerError(message string) *Error {
	return &Error{Type: ErrorTypeServerError, Message: message}
}

// HTTPStatusFromError maps an error type to the corresponding HTTP status code.
func HTTPStatusFromError(err *Error) int {
	switch err.Type {
	case ErrorTypeUnauthenticated:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes a JSON error response, deriving the HTTP status code
// from the error type. It sets the Content-Type header before writing.
func WriteError(w http.ResponseWriter, apiErr *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatusFromError(apiErr))
	json.NewEncoder(w).Encode(ErrorResponse{Error: apiErr})
}

// WriteJSON writes an arbitrary payload as a JSON response with the given
// status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
