package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential is returned when a provider is constructed without an API key.
	ErrNoCredential = errors.New("provider: no credential configured")
	// ErrInvalidShape marks a parsed payload missing a required field.
	ErrInvalidShape = errors.New("provider: payload has unexpected shape")
	// ErrThrottled is returned when the outbound call budget is exhausted.
	ErrThrottled = errors.New("provider: outbound call throttled")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("provider: empty response")
)

// ExtractionError reports that no usable JSON payload could be recovered
// from a provider response.
type ExtractionError struct {
	Provider Name
	Raw      string
	Cause    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("provider %s: extract JSON: %v", e.Provider, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// StatusError is a non-success HTTP status from a provider API.
type StatusError struct {
	Provider   Name
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s: unexpected status %d", e.Provider, e.StatusCode)
}
