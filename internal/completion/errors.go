package completion

import (
	"errors"
	"fmt"
)

// Error kinds reported by Kind.
const (
	KindConfiguration = "configuration"
	KindNetwork       = "network"
	KindAPI           = "api"
	KindParse         = "parse"
	KindUnknown       = "unknown"
)

// ConfigurationError means the client cannot be used at all.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// NetworkError is a transport failure, or an unexpected failure after the
// fallback chain was exhausted.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error: " + e.Message
	}
	return fmt.Sprintf("network error: %s: %v", e.Message, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// ParseError means the provider answered but the content was missing, not
// JSON, or did not match the schema. Content holds the raw text.
type ParseError struct {
	Message string
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse error: " + e.Message
	}
	return fmt.Sprintf("parse error: %s: %v", e.Message, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	var (
		cfgErr   *ConfigurationError
		netErr   *NetworkError
		apiErr   *APIError
		parseErr *ParseError
	)

	switch {
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &apiErr):
		return KindAPI
	case errors.As(err, &parseErr):
		return KindParse
	default:
		return KindUnknown
	}
}

// normalizeError returns err untouched when it already belongs to the
// taxonomy and wraps anything else as a NetworkError.
func normalizeError(err error) error {
	if Kind(err) != KindUnknown {
		return err
	}

	if isTransportError(err) {
		return &NetworkError{Message: "request to provider failed", Err: err}
	}

	return &NetworkError{Message: "unexpected error", Err: err}
}
