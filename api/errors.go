package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionInvalidated is the signal that the refresh protocol has been
// exhausted: the stored tokens have been cleared and the caller must treat the
// user as logged out.
var ErrSessionInvalidated = errors.New("session invalidated")

// APIError is a non-2xx response from the server, carrying the server-provided
// message verbatim for display.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// NetworkError is a transport-level failure: the request never produced a
// server response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// StorageError is a token store read/write failure observed on the request
// path.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "storage error: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError is malformed input caught before any network call. It is
// resolved by the caller and never reaches the session layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

// ServerMessage extracts the display message from an error chain, or returns
// empty when the error carries none (network and storage failures).
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
