package swapi

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is wrapped in a TransportError when the breaker rejects a
// request without sending it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// TransportError means the remote source could not be reached or answered
// with a server-side failure.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport: GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError means a response arrived but could not be parsed.
type FormatError struct {
	URL string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format: GET %s: %v", e.URL, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// NotFoundError means the requested page or id does not exist.
type NotFoundError struct {
	Resource ResourceType
	Page     int
	ID       int
}

func (e *NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s page %d not found", e.Resource, e.Page)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsFormat reports whether err carries a FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
