// Package errors defines the coded errors the session manager returns to its callers.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode categorizes an AppError.
type ErrorCode string

const (
	// ErrCodeLoginRejected covers a failed sign-in: bad credentials, incomplete input or no network.
	ErrCodeLoginRejected ErrorCode = "login_rejected"
	// ErrCodeRegistrationRejected covers a failed account creation.
	ErrCodeRegistrationRejected ErrorCode = "registration_rejected"
	// ErrCodeInvalidCredential means the server no longer accepts the stored credential.
	ErrCodeInvalidCredential ErrorCode = "invalid_credential"
	// ErrCodeTransient means the server could not be reached; the session is kept.
	ErrCodeTransient ErrorCode = "transient"
	// ErrCodeTimeout means the caller's deadline passed first.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled means the caller gave up.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError carries a code and a message that can be shown to the user. The cause stays
// reachable through errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// FromContext maps context cancellation and deadline errors to their codes.
// It returns nil for any other error.
func FromContext(err error) *AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "operation timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "operation canceled")
	default:
		return nil
	}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsLoginRejected reports whether err is a rejected sign-in.
func IsLoginRejected(err error) bool { return CodeOf(err) == ErrCodeLoginRejected }

// IsRegistrationRejected reports whether err is a rejected registration.
func IsRegistrationRejected(err error) bool { return CodeOf(err) == ErrCodeRegistrationRejected }

// IsInvalidCredential reports whether the stored credential was refused.
func IsInvalidCredential(err error) bool { return CodeOf(err) == ErrCodeInvalidCredential }

// IsTransient reports whether err is a connectivity failure.
func IsTransient(err error) bool { return CodeOf(err) == ErrCodeTransient }

// IsTimeout reports whether err is a deadline failure.
func IsTimeout(err error) bool { return CodeOf(err) == ErrCodeTimeout }
