// Package apperr defines the error kinds shared across services. The HTTP
// boundary maps each kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication = errors.New("authentication failure")
	ErrAuthorization  = errors.New("authorization failure")
	ErrValidation     = errors.New("validation failure")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrRemoteStore    = errors.New("remote store failure")
)

// Error carries a kind, a user-visible message and an optional cause
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Authentication(message string) *Error { return New(ErrAuthentication, message) }
func Authorization(message string) *Error  { return New(ErrAuthorization, message) }
func Validation(message string) *Error     { return New(ErrValidation, message) }
func NotFound(message string) *Error       { return New(ErrNotFound, message) }
func Conflict(message string) *Error       { return New(ErrConflict, message) }

// Message returns the user-visible message of err, or fallback when err
// carries none
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
