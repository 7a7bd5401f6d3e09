package store

import (
	"errors"
	"fmt"
)

// ErrQueryConsumed is returned when Execute is called twice on one Query
var ErrQueryConsumed = errors.New("store: query already executed")

// ErrInvalidQuery is returned when a query was built inconsistently
var ErrInvalidQuery = errors.New("store: invalid query")

// Error is a failed store call. Status is zero for transport failures.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a store error with the given status
func IsStatus(err error, status int) bool {
	var se *Error
	return errors.As(err, &se) && se.Status == status
}
