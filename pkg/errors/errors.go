package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Admission workflow errors.
var (
	ErrForbiddenTransition    = New("FORBIDDEN_TRANSITION", http.StatusConflict, "state transition not allowed")
	ErrUnknownState           = New("UNKNOWN_STATE", http.StatusBadRequest, "unknown admission state")
	ErrUnauthorizedValidation = New("UNAUTHORIZED_VALIDATION", http.StatusForbidden, "You are not authorized to validate this registration.")
	ErrPublish                = New("EPC_PUBLISH_FAILED", http.StatusBadGateway, "An error occurred while injecting the registration into EPC. Please try again later.")
)

// File upload errors.
var (
	ErrTooManyFiles           = New("TOO_MANY_FILES", http.StatusBadRequest, "too many files")
	ErrTooLongFilename        = New("TOO_LONG_FILENAME", http.StatusBadRequest, "file name too long")
	ErrTooLargeFileSize       = New("TOO_LARGE_FILE_SIZE", http.StatusRequestEntityTooLarge, "file too large")
	ErrInvalidFileCategory    = New("INVALID_FILE_CATEGORY", http.StatusBadRequest, "The status of the admission must be Accepted to upload an invoice.")
	ErrUnallowedFileExtension = New("UNALLOWED_FILE_EXTENSION", http.StatusUnsupportedMediaType, "file extension not allowed")
	ErrFileNotUploaded        = New("FILE_NOT_UPLOADED", http.StatusBadRequest, "A problem occured : the document is not uploaded")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// FieldError builds a validation error attached to one input field.
func FieldError(field, message string) *Error {
	e := Clone(ErrValidation, message)
	e.Fields = map[string]string{field: message}
	return e
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}
