// Package errors defines structured error types for the API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/maruel/flatdb/internal/jsondb"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrMissingField is returned when a required field is missing
	ErrMissingField ErrorCode = "MISSING_FIELD"

	// ErrNotFound is returned when a document is not found
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrCollectionNotFound is returned when no collection has the requested name
	ErrCollectionNotFound ErrorCode = "COLLECTION_NOT_FOUND"
	// ErrUnknownCommand is returned when the command name is not recognized
	ErrUnknownCommand ErrorCode = "UNKNOWN_COMMAND"

	// ErrConfiguration is returned when the collection configuration forbids the operation
	ErrConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrPermission is returned when the collection file is not writable
	ErrPermission ErrorCode = "PERMISSION_ERROR"
	// ErrStorageError is returned when a storage operation fails
	ErrStorageError ErrorCode = "STORAGE_ERROR"

	// ErrInternal is returned when an unexpected server error occurs
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	// ErrUnauthorized is returned when authentication is missing or invalid
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrRateLimited is returned when a client exceeds its request budget
	ErrRateLimited ErrorCode = "RATE_LIMITED"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code, code, and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Predefined error constructors for common cases

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// CollectionNotFound creates a 404 error for an unknown collection name.
func CollectionNotFound(name string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrCollectionNotFound, "collection not found").WithDetail("collection", name)
}

// UnknownCommand creates a 404 error for an unknown command name.
func UnknownCommand(name string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrUnknownCommand, "unknown command").WithDetail("command", name)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrMissingField, fmt.Sprintf("Missing required field: %s", fieldName))
}

// Unauthorized returns a 401 Unauthorized error.
func Unauthorized() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrUnauthorized, "Unauthorized")
}

// TooManyRequests returns a 429 error.
func TooManyRequests() *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrRateLimited, "Too many requests")
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}

// FromStore converts an error returned by a jsondb operation into an API
// error. Errors already carrying a status are returned as is.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	var withStatus ErrorWithStatus
	if stderrors.As(err, &withStatus) {
		return err
	}
	switch {
	case stderrors.Is(err, jsondb.ErrValidation):
		return NewAPIError(http.StatusBadRequest, ErrValidationFailed, err.Error())
	case stderrors.Is(err, jsondb.ErrNotFound):
		return NewAPIError(http.StatusNotFound, ErrNotFound, err.Error())
	case stderrors.Is(err, jsondb.ErrConfiguration):
		return NewAPIError(http.StatusForbidden, ErrConfiguration, err.Error())
	case stderrors.Is(err, jsondb.ErrPermission):
		return NewAPIError(http.StatusInternalServerError, ErrPermission, "collection is not writable").Wrap(err)
	case stderrors.Is(err, jsondb.ErrIO):
		return NewAPIError(http.StatusInternalServerError, ErrStorageError, "storage failure").Wrap(err)
	default:
		return InternalWithError("internal error", err)
	}
}
