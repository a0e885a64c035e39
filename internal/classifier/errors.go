package classifier

import (
	"errors"
	"fmt"
)

// Failure categories for classifier calls. The workflow treats them all the
// same; they stay distinct here for logging and for callers that care.
var (
	ErrNetwork           = errors.New("classifier unreachable")
	ErrServer            = errors.New("classifier returned an error status")
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// StatusError is a non-2xx response. It matches ErrServer under errors.Is.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// Is reports ErrServer so callers can branch on the category.
func (e *StatusError) Is(target error) bool {
	return target == ErrServer
}

// LoginError is a rejected /login call.
type LoginError struct {
	StatusCode int
	Message    string
}

func (e *LoginError) Error() string {
	return e.Message
}
