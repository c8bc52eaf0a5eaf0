package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		code      string
		retryable bool
	}{
		{http.StatusTooManyRequests, ErrorCodeRateLimit, true},
		{http.StatusUnauthorized, ErrorCodeUnauthorized, false},
		{http.StatusForbidden, ErrorCodeUnauthorized, false},
		{http.StatusNotFound, ErrorCodeNotFound, false},
		{http.StatusBadRequest, ErrorCodeBadRequest, false},
		{http.StatusInternalServerError, ErrorCodeServerError, true},
		{http.StatusBadGateway, ErrorCodeServerError, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := FromHTTPStatus("yahoo", tt.status)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Contains(t, err.Error(), "yahoo:")
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	t.Run("provider error carries its own flag", func(t *testing.T) {
		err := NewProviderError("yahoo", ErrorCodeNotFound, "no such symbol", false)
		assert.False(t, IsRetryableError(err))
	})

	t.Run("wrapped provider error is unwrapped", func(t *testing.T) {
		inner := NewProviderError("yahoo", ErrorCodeRateLimit, "throttled", true)
		wrapped := fmt.Errorf("fetch AAPL: %w", inner)
		assert.True(t, IsRetryableError(wrapped))
	})

	t.Run("plain errors default to retryable", func(t *testing.T) {
		assert.True(t, IsRetryableError(errors.New("connection reset")))
	})
}
