package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// RequestError is returned when the server rejects the request parameters.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return e.Reason
}
