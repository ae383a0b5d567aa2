// Package common defines shared constants and sentinel errors used across
// Gatekeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("unique constraint violated")

	// Service-level errors. ErrorInternal is the generic "system error" reported
	// to callers; the underlying cause is logged, never returned.
	ErrorInternal = errors.New("internal error")

	// Caller input errors. Concrete failures are *ParamsError values that
	// match ErrorInvalidParams.
	ErrorInvalidParams = errors.New("invalid parameters")

	// Auth errors.
	ErrorNotAuthenticated = errors.New("not authenticated")
	ErrorNoAuthorization  = errors.New("no authorization")
)

// ParamsError is a user-correctable input failure with a human-readable reason.
type ParamsError struct {
	Reason string
}

// NewParamsError returns a *ParamsError carrying reason.
func NewParamsError(reason string) error {
	return &ParamsError{Reason: reason}
}

func (e *ParamsError) Error() string {
	return e.Reason
}

// Is reports ErrorInvalidParams as the kind of every ParamsError.
func (e *ParamsError) Is(target error) bool {
	return target == ErrorInvalidParams
}
