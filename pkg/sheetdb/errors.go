package sheetdb

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("student not found")

	// ErrMalformedResponse is returned when a response does not match the sheet schema.
	ErrMalformedResponse = errors.New("malformed response from sheet api")
)

// NetworkError covers transport failures and non-success statuses.
type NetworkError struct {
	Op         string
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sheetdb %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sheetdb %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Transient reports whether the same request may succeed if sent again.
func (e *NetworkError) Transient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// IsNetworkError reports whether err is, or wraps, a NetworkError.
func IsNetworkError(err error) bool {
	var nerr *NetworkError
	return errors.As(err, &nerr)
}

func isTransient(err error) bool {
	var nerr *NetworkError
	return errors.As(err, &nerr) && nerr.Transient()
}
