package transport

import (
	"errors"
	"fmt"
)

// ErrExchangeRejected is matched by every *StatusError.
var ErrExchangeRejected = errors.New("transport: exchange rejected")

// StatusError is a non-2xx response from the refresh endpoint, or an authorization
// rejection of an issued request.
type StatusError struct {
	StatusCode int
	// Code is the OAuth2-style error field when the server sent one.
	Code string
	Body string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("transport: status %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("transport: status %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrExchangeRejected
}
