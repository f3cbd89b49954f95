package entity

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrAuthentication    = errors.New("authentication error")
	ErrUpstreamSearch    = errors.New("upstream search failure")
	ErrNoOptionsFound    = errors.New("no transit options found")
	ErrTimeout           = errors.New("timed out")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownProvider   = errors.New("unknown survey provider")
	ErrMalformedPayload  = errors.New("malformed payload")
)

// ValidationError describes a malformed inbound payload
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UpstreamSearchError is a single backend failure. It is logged and excluded
// from the candidate pool, never surfaced to the client.
type UpstreamSearchError struct {
	Backend string
	Err     error
}

func (e *UpstreamSearchError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *UpstreamSearchError) Unwrap() []error { return []error{ErrUpstreamSearch, e.Err} }

// MalformedPayload marks a body that is not the provider's JSON envelope.
// It matches both ErrValidation and ErrMalformedPayload.
func MalformedPayload(err error) error {
	return fmt.Errorf("%w: %w: %v", ErrValidation, ErrMalformedPayload, err)
}
