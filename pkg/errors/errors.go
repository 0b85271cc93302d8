package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternalError for anything else.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeConflict          = "CONFLICT"
)

// Queue error codes
const (
	ErrCodeAlreadyQueued = "ALREADY_QUEUED"
	ErrCodeNotEligible   = "NOT_ELIGIBLE"
	ErrCodeWrongServer   = "WRONG_SERVER"
	ErrCodeNotOwner      = "NOT_OWNER"
	ErrCodeNotWaiting    = "NOT_WAITING"
)

// Match error codes
const (
	ErrCodeMatchNotFound     = "MATCH_NOT_FOUND"
	ErrCodeNotParticipant    = "NOT_PARTICIPANT"
	ErrCodeAcceptanceExpired = "ACCEPTANCE_EXPIRED"
	ErrCodeAlreadyResolved   = "ALREADY_RESOLVED"
	ErrCodeTimeoutNotReached = "TIMEOUT_NOT_REACHED"
)
