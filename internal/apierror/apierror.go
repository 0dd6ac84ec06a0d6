package apierror

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	// ErrValidation marks malformed input rejected before any work is done.
	// Always recoverable by the caller correcting the input.
	ErrValidation ErrorCode = "VALIDATION"
	// ErrNotFound marks a missing entity or an unknown key, surfaced with a
	// message naming the offender.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrConflict marks an attempt to register something that already exists.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrDependencyUnavailable marks a collaborator failure (rate oracle,
	// text extraction) propagated rather than masked.
	ErrDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrInternal              ErrorCode = "INTERNAL"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the error code carried by err, or ErrInternal when err is
// not an APIError.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternal
}

// Is reports whether err is an APIError with the given code.
func Is(err error, code ErrorCode) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
