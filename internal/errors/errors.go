package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the medscan client
var (
	// Session errors
	ErrAuthRequired = errors.New("authentication required")
	ErrAuthRejected = errors.New("authentication rejected")

	// Transport errors
	ErrNetwork         = errors.New("network error")
	ErrInvalidResponse = errors.New("invalid response")

	// Image picker outcomes
	ErrPermissionDenied = errors.New("permission denied")
	ErrCancelled        = errors.New("cancelled")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// RequestFailedError is returned for any non-auth 4xx/5xx response.
type RequestFailedError struct {
	StatusCode int
	Message    string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 response.
func (e *RequestFailedError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatusCode returns the HTTP status carried by err, or 0 if there is none.
func StatusCode(err error) int {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.StatusCode
	}
	return 0
}
