package zerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindTransientStore Kind = "transient_store"
	KindNotFound       Kind = "not_found"
	KindUnhandled      Kind = "unhandled"
)

// ValidationError represents a malformed caller input. Its message is safe to return to the caller.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValidationErrorWithCause creates a new validation error with a cause
func NewValidationErrorWithCause(field, message string, cause error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// AuthenticationError means no identity could be resolved for the request.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// NewAuthenticationError creates an error for an unauthenticated request
func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{Reason: reason}
}

// TransientStoreError wraps a failure of the external store that may succeed on retry.
type TransientStoreError struct {
	Operation string
	Table     string
	Cause     error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store error during %s on %s: %v", e.Operation, e.Table, e.Cause)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Cause
}

// NewTransientStoreError creates an error for a retryable store failure
func NewTransientStoreError(operation, table string, cause error) *TransientStoreError {
	return &TransientStoreError{
		Operation: operation,
		Table:     table,
		Cause:     cause,
	}
}

// NotFoundError is returned by use cases when a requested resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFoundError creates an error for a missing resource
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// UnhandledError marks a failure the caller cannot act on.
type UnhandledError struct {
	Message string
	Cause   error
}

func (e *UnhandledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *UnhandledError) Unwrap() error {
	return e.Cause
}

// NewUnhandledError creates an internal error
func NewUnhandledError(message string, cause error) *UnhandledError {
	return &UnhandledError{Message: message, Cause: cause}
}

// KindOf classifies err. An UnhandledError anywhere in the chain wins over the kind of its cause;
// anything not recognised is KindUnhandled.
func KindOf(err error) Kind {
	var (
		unhandledErr  *UnhandledError
		validationErr *ValidationError
		authErr       *AuthenticationError
		storeErr      *TransientStoreError
		notFoundErr   *NotFoundError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &unhandledErr):
		return KindUnhandled
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &authErr):
		return KindAuthentication
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &storeErr):
		return KindTransientStore
	default:
		return KindUnhandled
	}
}

// HTTPStatus maps an error kind to the status code returned to callers.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CallerMessage returns the caller-safe text of a validation or not-found error found in the chain,
// without any text added by wrapping. It returns "" for every other error.
func CallerMessage(err error) string {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
	)
	switch KindOf(err) {
	case KindValidation:
		if errors.As(err, &validationErr) {
			return validationErr.Message
		}
	case KindNotFound:
		if errors.As(err, &notFoundErr) {
			return notFoundErr.Error()
		}
	}
	return ""
}

// IsRetryable reports whether err is worth another attempt against the store.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientStore
}
