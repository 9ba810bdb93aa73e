package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories for unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrEndpointGone marks a push endpoint the push service reported
	// as permanently invalid (404/410). Internal to dispatch; never
	// surfaced to HTTP callers.
	ErrEndpointGone = errors.New("push endpoint gone")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
