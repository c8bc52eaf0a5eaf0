// Package types holds the provider error contract shared between the
// market data client and its callers.
package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common error codes
const (
	ErrorCodeRateLimit    = "RATE_LIMIT_EXCEEDED"
	ErrorCodeUnauthorized = "UNAUTHORIZED"
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeBadRequest   = "BAD_REQUEST"
	ErrorCodeServerError  = "SERVER_ERROR"
	ErrorCodeBadPayload   = "BAD_PAYLOAD"
	ErrorCodeNoData       = "NO_DATA"
)

// ProviderError represents an error from the market data provider
type ProviderError struct {
	Provider  string    `json:"provider"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (pe *ProviderError) Error() string {
	return pe.Provider + ": " + pe.Message
}

// IsRetryable returns whether the error is retryable
func (pe *ProviderError) IsRetryable() bool {
	return pe.Retryable
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now(),
	}
}

// FromHTTPStatus builds a provider error for a non-2xx response. Server
// errors and throttling are retryable; other client errors are not.
func FromHTTPStatus(provider string, status int) *ProviderError {
	message := fmt.Sprintf("unexpected status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return NewProviderError(provider, ErrorCodeRateLimit, message, true)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(provider, ErrorCodeUnauthorized, message, false)
	case status == http.StatusNotFound:
		return NewProviderError(provider, ErrorCodeNotFound, message, false)
	case status >= 500:
		return NewProviderError(provider, ErrorCodeServerError, message, true)
	case status >= 400:
		return NewProviderError(provider, ErrorCodeBadRequest, message, false)
	default:
		return NewProviderError(provider, ErrorCodeServerError, message, true)
	}
}

// IsRetryableError reports whether err should be retried. Errors that are
// not provider errors are treated as transient network failures.
func IsRetryableError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}
